package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vultisig/schedpay/internal/chain"
	"github.com/vultisig/schedpay/internal/storage"
	"github.com/vultisig/schedpay/reconcile"
)

const keyPrefix = "schedpay:snapshot"

// KV is the subset of storage.RedisStorage the cache needs.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, expiry time.Duration) error
}

// SnapshotCache keeps recent chain snapshots so repeated reconciliations of the
// same contract within ttl do not hit the RPC. Cache errors never fail a read.
type SnapshotCache struct {
	logger *logrus.Logger
	kv     KV
	ttl    time.Duration
}

func NewSnapshotCache(logger *logrus.Logger, kv KV, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{
		logger: logger.WithField("pkg", "cache.SnapshotCache").Logger,
		kv:     kv,
		ttl:    ttl,
	}
}

func Key(chainName, contract string, totalHint int) string {
	return fmt.Sprintf("%s:%s:%s:%d", keyPrefix, strings.ToLower(chainName), strings.ToLower(contract), totalHint)
}

func (c *SnapshotCache) enabled() bool {
	return c != nil && c.kv != nil && c.ttl > 0
}

func (c *SnapshotCache) get(ctx context.Context, key string) (*reconcile.ChainSnapshot, bool) {
	raw, err := c.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrCacheMiss) {
			c.logger.WithError(err).WithField("key", key).Warn("snapshot cache get failed")
		}
		return nil, false
	}
	var snap reconcile.ChainSnapshot
	if err = json.Unmarshal(raw, &snap); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("snapshot cache entry corrupt")
		return nil, false
	}
	return &snap, true
}

func (c *SnapshotCache) put(ctx context.Context, key string, snap *reconcile.ChainSnapshot) {
	raw, err := json.Marshal(snap)
	if err != nil {
		c.logger.WithError(err).Warn("failed to marshal snapshot")
		return
	}
	if err = c.kv.Set(ctx, key, raw, c.ttl); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("snapshot cache set failed")
	}
}

// Wrap returns a reader that consults the cache before the live reader.
func (c *SnapshotCache) Wrap(chainName string, reader chain.SnapshotReader) chain.SnapshotReader {
	if !c.enabled() {
		return reader
	}
	return &cachedReader{cache: c, chain: chainName, next: reader}
}

type cachedReader struct {
	cache *SnapshotCache
	chain string
	next  chain.SnapshotReader
}

func (r *cachedReader) ReadSnapshot(ctx context.Context, contract string, totalHint int) *reconcile.ChainSnapshot {
	key := Key(r.chain, contract, totalHint)
	if snap, ok := r.cache.get(ctx, key); ok {
		return snap
	}

	snap := r.next.ReadSnapshot(ctx, contract, totalHint)
	if snap != nil {
		r.cache.put(ctx, key, snap)
	}
	return snap
}
