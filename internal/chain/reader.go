package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vultisig/schedpay/internal/conv"
	"github.com/vultisig/schedpay/internal/metrics"
	"github.com/vultisig/schedpay/reconcile"
)

// maxTrackedMonths bounds per-index flag reads when a contract reports a nonsense total.
const maxTrackedMonths = 600

// SnapshotReader reads the state of one payment contract.
type SnapshotReader interface {
	// ReadSnapshot never fails as a whole: fields that could not be read are left nil.
	// totalHint is the installment count known from the record store; 0 marks a one-off
	// contract, for which only the released and cancelled flags are read.
	ReadSnapshot(ctx context.Context, contract string, totalHint int) *reconcile.ChainSnapshot
}

type EvmReader struct {
	logger      *logrus.Logger
	name        string
	client      Caller
	abi         abi.ABI
	fromBlock   uint64
	concurrency int
	metrics     metrics.ChainMetrics
}

func NewEvmReader(
	logger *logrus.Logger,
	name string,
	client Caller,
	fromBlock uint64,
	concurrency int,
	chainMetrics metrics.ChainMetrics,
) (*EvmReader, error) {
	parsed, err := parsePaymentABI()
	if err != nil {
		return nil, fmt.Errorf("parsePaymentABI: %w", err)
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	if chainMetrics == nil {
		chainMetrics = metrics.NewNilChainMetrics()
	}
	return &EvmReader{
		logger:      logger.WithField("pkg", "chain.EvmReader").Logger,
		name:        name,
		client:      client,
		abi:         parsed,
		fromBlock:   fromBlock,
		concurrency: concurrency,
		metrics:     chainMetrics,
	}, nil
}

func (r *EvmReader) ReadSnapshot(c context.Context, contract string, totalHint int) *reconcile.ChainSnapshot {
	ctx, cancel := context.WithTimeout(c, defaultTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		r.metrics.RecordSnapshotRead(r.name, time.Since(start).Seconds())
	}()

	snap := &reconcile.ChainSnapshot{}
	if !common.IsHexAddress(contract) {
		r.fail(contract, "address", fmt.Errorf("invalid contract address"))
		return snap
	}
	addr := common.HexToAddress(contract)

	// Pin every read to one block so flags, counters and logs agree with each other.
	var at *big.Int
	head, err := r.client.BlockNumber(ctx)
	if err != nil {
		r.fail(contract, "block_number", err)
	} else {
		snap.BlockNumber = head
		at = new(big.Int).SetUint64(head)
	}

	if totalHint <= 0 {
		eg := &errgroup.Group{}
		eg.Go(func() error {
			snap.Released = r.readBool(ctx, addr, at, "released")
			return nil
		})
		eg.Go(func() error {
			snap.Cancelled = r.readBool(ctx, addr, at, "cancelled")
			return nil
		})
		_ = eg.Wait()
		return snap
	}

	eg := &errgroup.Group{}
	eg.Go(func() error {
		snap.TotalMonths = r.readUint(ctx, addr, at, "totalMonths")
		return nil
	})
	eg.Go(func() error {
		snap.ExecutedMonths = r.readUint(ctx, addr, at, "executedMonths")
		return nil
	})
	eg.Go(func() error {
		snap.NextMonthToProcess = r.readUint(ctx, addr, at, "nextMonthToProcess")
		return nil
	})
	eg.Go(func() error {
		snap.Cancelled = r.readBool(ctx, addr, at, "cancelled")
		return nil
	})
	eg.Go(func() error {
		snap.Logs = r.readLogs(ctx, addr, at)
		return nil
	})
	_ = eg.Wait()

	total := totalHint
	if snap.TotalMonths != nil && *snap.TotalMonths > total {
		total = *snap.TotalMonths
	}
	if total > maxTrackedMonths {
		total = maxTrackedMonths
	}
	snap.MonthExecuted = r.readMonthFlags(ctx, addr, at, total)

	return snap
}

func (r *EvmReader) readMonthFlags(ctx context.Context, addr common.Address, at *big.Int, total int) []*bool {
	if total <= 0 {
		return nil
	}
	flags := make([]*bool, total)
	eg := &errgroup.Group{}
	eg.SetLimit(r.concurrency)
	for i := 0; i < total; i++ {
		eg.Go(func() error {
			flags[i] = r.readBool(ctx, addr, at, "monthExecuted", big.NewInt(int64(i)))
			return nil
		})
	}
	_ = eg.Wait()
	return flags
}

func (r *EvmReader) call(ctx context.Context, addr common.Address, at *big.Int, method string, args ...interface{}) ([]interface{}, error) {
	data, err := r.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("abi.Pack: %w", err)
	}
	out, err := r.client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: data}, at)
	if err != nil {
		return nil, fmt.Errorf("r.client.CallContract: %w", err)
	}
	values, err := r.abi.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("abi.Unpack: %w", err)
	}
	if len(values) == 0 {
		return nil, errors.New("empty output")
	}
	return values, nil
}

func (r *EvmReader) readUint(ctx context.Context, addr common.Address, at *big.Int, method string) *int {
	values, err := r.call(ctx, addr, at, method)
	if err != nil {
		r.fail(addr.Hex(), method, err)
		return nil
	}
	v, ok := values[0].(*big.Int)
	if !ok || !v.IsInt64() || v.Sign() < 0 {
		r.fail(addr.Hex(), method, fmt.Errorf("unexpected value %v", values[0]))
		return nil
	}
	return conv.Ptr(int(v.Int64()))
}

func (r *EvmReader) readBool(ctx context.Context, addr common.Address, at *big.Int, method string, args ...interface{}) *bool {
	values, err := r.call(ctx, addr, at, method, args...)
	if err != nil {
		r.fail(addr.Hex(), method, err)
		return nil
	}
	v, ok := values[0].(bool)
	if !ok {
		r.fail(addr.Hex(), method, fmt.Errorf("unexpected value %v", values[0]))
		return nil
	}
	return conv.Ptr(v)
}

func (r *EvmReader) readLogs(ctx context.Context, addr common.Address, at *big.Int) []reconcile.PaymentLog {
	executedID := r.abi.Events[eventExecuted].ID
	failedID := r.abi.Events[eventFailed].ID

	raw, err := r.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(r.fromBlock),
		ToBlock:   at,
		Addresses: []common.Address{addr},
		Topics:    [][]common.Hash{{executedID, failedID}},
	})
	if err != nil {
		r.fail(addr.Hex(), "logs", err)
		return nil
	}

	logs := make([]reconcile.PaymentLog, 0, len(raw))
	for _, l := range raw {
		entry, er := r.decodeLog(l, executedID, failedID)
		if er != nil {
			r.logger.WithFields(logrus.Fields{
				"chain":    r.name,
				"contract": addr.Hex(),
				"tx_hash":  l.TxHash.Hex(),
			}).WithError(er).Warn("skipping undecodable payment log")
			continue
		}
		if entry != nil {
			logs = append(logs, *entry)
		}
	}
	return logs
}

func (r *EvmReader) decodeLog(l types.Log, executedID, failedID common.Hash) (*reconcile.PaymentLog, error) {
	if l.Removed || len(l.Topics) == 0 {
		return nil, nil
	}

	var (
		event  string
		status reconcile.LogStatus
	)
	switch l.Topics[0] {
	case executedID:
		event, status = eventExecuted, reconcile.LogExecuted
	case failedID:
		event, status = eventFailed, reconcile.LogFailed
	default:
		return nil, nil
	}

	values, err := r.abi.Unpack(event, l.Data)
	if err != nil {
		return nil, fmt.Errorf("abi.Unpack: %w", err)
	}
	if len(values) == 0 {
		return nil, errors.New("empty event data")
	}
	month, ok := values[0].(*big.Int)
	if !ok || !month.IsInt64() {
		return nil, fmt.Errorf("unexpected month number %v", values[0])
	}
	return &reconcile.PaymentLog{
		Status:      status,
		MonthNumber: month.Int64(),
		BlockNumber: l.BlockNumber,
		LogIndex:    l.Index,
	}, nil
}

func (r *EvmReader) fail(contract, field string, err error) {
	r.metrics.RecordSnapshotReadError(r.name, field)
	r.logger.WithFields(logrus.Fields{
		"chain":    r.name,
		"contract": contract,
		"field":    field,
	}).WithError(err).Warn("snapshot read failed")
}

// NilReader is used when no RPC is configured for a chain.
type NilReader struct{}

func (NilReader) ReadSnapshot(context.Context, string, int) *reconcile.ChainSnapshot {
	return nil
}

var _ SnapshotReader = (*EvmReader)(nil)
var _ SnapshotReader = NilReader{}
