package chain

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/vultisig/vultisig-go/common"

	"github.com/vultisig/schedpay/config"
	"github.com/vultisig/schedpay/internal/metrics"
)

// Readers maps every configured chain to its snapshot reader.
type Readers map[common.Chain]SnapshotReader

// For returns the reader of a chain by name, or NilReader when the chain is unknown
// or has no RPC configured.
func (r Readers) For(name string) (SnapshotReader, error) {
	ch, err := common.FromString(name)
	if err != nil {
		return NilReader{}, fmt.Errorf("common.FromString: %w", err)
	}
	reader, ok := r[ch]
	if !ok {
		return NilReader{}, fmt.Errorf("no rpc configured for chain %s", ch.String())
	}
	return reader, nil
}

func NewReaders(
	ctx context.Context,
	logger *logrus.Logger,
	cfg config.RpcConfig,
	chainMetrics metrics.ChainMetrics,
) (Readers, error) {
	readers := make(Readers)

	evmChains := map[common.Chain]config.RpcItem{
		common.Ethereum:  cfg.Ethereum,
		common.Avalanche: cfg.Avalanche,
		common.BscChain:  cfg.BscChain,
		common.Arbitrum:  cfg.Arbitrum,
		common.Base:      cfg.Base,
		common.Optimism:  cfg.Optimism,
		common.Polygon:   cfg.Polygon,
	}

	for chainID, item := range evmChains {
		if item.URL == "" {
			continue
		}
		client, err := Dial(ctx, logger, item.URL, cfg.Retries)
		if err != nil {
			return nil, fmt.Errorf("failed to create EVM RPC client for %s: %w", chainID.String(), err)
		}
		reader, err := NewEvmReader(logger, chainID.String(), client, item.FromBlock, cfg.Concurrency, chainMetrics)
		if err != nil {
			return nil, fmt.Errorf("failed to create snapshot reader for %s: %w", chainID.String(), err)
		}
		readers[chainID] = reader
	}

	return readers, nil
}
