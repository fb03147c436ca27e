package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

const defaultTimeout = 30 * time.Second

// Caller is the subset of ethclient.Client the snapshot reader needs.
type Caller interface {
	ethereum.ContractCaller
	ethereum.LogFilterer
	BlockNumber(ctx context.Context) (uint64, error)
}

// Dial connects to an EVM JSON-RPC endpoint. Transport errors and 5xx responses are
// retried up to retries times before a read is reported as failed.
func Dial(c context.Context, logger *logrus.Logger, rpcURL string, retries int) (*ethclient.Client, error) {
	ctx, cancel := context.WithTimeout(c, defaultTimeout)
	defer cancel()

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = retries
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.Logger = logger.WithField("pkg", "chain.rpc")

	rc, err := rpc.DialOptions(ctx, rpcURL, rpc.WithHTTPClient(retryClient.StandardClient()))
	if err != nil {
		return nil, fmt.Errorf("rpc.DialOptions: %w", err)
	}
	return ethclient.NewClient(rc), nil
}
