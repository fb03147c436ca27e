package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vultisig/schedpay/internal/cache"
	"github.com/vultisig/schedpay/internal/chain"
	"github.com/vultisig/schedpay/internal/metrics"
	"github.com/vultisig/schedpay/internal/storage"
	"github.com/vultisig/schedpay/reconcile"
)

const defaultReadConcurrency = 8

// ReaderSource resolves a chain name to its snapshot reader. chain.Readers implements it.
type ReaderSource interface {
	For(chainName string) (chain.SnapshotReader, error)
}

type Options struct {
	// PreferredLead is the beneficiary listed first in batch timelines.
	PreferredLead string
}

// Transition is the outcome of persisting a fresh rollup.
type Transition struct {
	From    reconcile.PaymentStatus
	To      reconcile.PaymentStatus
	Changed bool
}

type Reconciler struct {
	logger      *logrus.Logger
	store       storage.AgreementStore
	readers     ReaderSource
	cache       *cache.SnapshotCache
	engine      reconcile.Engine
	metrics     metrics.ReconcileMetrics
	now         func() time.Time
	concurrency int
}

func NewReconciler(
	logger *logrus.Logger,
	store storage.AgreementStore,
	readers ReaderSource,
	snapshotCache *cache.SnapshotCache,
	engine reconcile.Engine,
	reconcileMetrics metrics.ReconcileMetrics,
) *Reconciler {
	if reconcileMetrics == nil {
		reconcileMetrics = metrics.NewNilReconcileMetrics()
	}
	return &Reconciler{
		logger:      logger.WithField("pkg", "service.Reconciler").Logger,
		store:       store,
		readers:     readers,
		cache:       snapshotCache,
		engine:      engine,
		metrics:     reconcileMetrics,
		now:         time.Now,
		concurrency: defaultReadConcurrency,
	}
}

// WithClock replaces the wall clock, mostly for tests.
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

// Reconcile loads an agreement, snapshots its contract(s) and resolves it.
func (r *Reconciler) Reconcile(ctx context.Context, id uuid.UUID, opts Options) (reconcile.Resolution, error) {
	a, err := r.store.GetAgreement(ctx, id)
	if err != nil {
		r.metrics.RecordError("load")
		return reconcile.Resolution{}, fmt.Errorf("r.store.GetAgreement: %w", err)
	}
	return r.resolve(ctx, a, opts)
}

// Refresh reconciles an agreement and persists its rollup when it moved forward.
func (r *Reconciler) Refresh(ctx context.Context, id uuid.UUID) (Transition, error) {
	a, err := r.store.GetAgreement(ctx, id)
	if err != nil {
		r.metrics.RecordError("load")
		return Transition{}, fmt.Errorf("r.store.GetAgreement: %w", err)
	}
	res, err := r.resolve(ctx, a, Options{})
	if err != nil {
		return Transition{}, err
	}

	from, ok := reconcile.NormalizePaymentStatus(a.DBStatus)
	if !ok {
		from = reconcile.PaymentPending
	}
	t := Transition{From: from, To: res.Status}
	if !reconcile.CanAdvance(from, res.Status) {
		return t, nil
	}

	t.Changed, err = r.store.SetStatus(ctx, id, res.Status)
	if err != nil {
		r.metrics.RecordError("persist")
		return Transition{}, fmt.Errorf("r.store.SetStatus: %w", err)
	}
	return t, nil
}

func (r *Reconciler) resolve(ctx context.Context, a reconcile.Agreement, opts Options) (reconcile.Resolution, error) {
	now := r.now()

	if !a.IsBatch() {
		snap := r.reader(a.Chain).ReadSnapshot(ctx, a.ContractAddress, a.TotalMonths)
		res := r.engine.Reconcile(a, snap, now)
		kind := "single"
		if a.IsRecurring() {
			kind = "recurring"
		}
		r.record(kind, res)
		return res, nil
	}

	children, err := r.store.GetChildren(ctx, a.ID)
	if err != nil {
		r.metrics.RecordError("load")
		return reconcile.Resolution{}, fmt.Errorf("r.store.GetChildren: %w", err)
	}

	snaps := r.readBatch(ctx, a, children)
	beneficiaries := make([]reconcile.Beneficiary, 0, len(children))
	for _, child := range children {
		beneficiaries = append(beneficiaries, reconcile.Beneficiary{
			Agreement: child,
			Snapshot:  snaps[contractKey(chainOf(child, a), child.ContractAddress)],
		})
	}

	res, err := r.engine.ReconcileBatch(a, beneficiaries, now, opts.PreferredLead)
	if err != nil {
		r.metrics.RecordError("aggregate")
		return reconcile.Resolution{}, fmt.Errorf("r.engine.ReconcileBatch: %w", err)
	}
	r.record("batch", res)
	return res, nil
}

// readBatch reads each distinct contract of a batch once.
func (r *Reconciler) readBatch(ctx context.Context, parent reconcile.Agreement, children []reconcile.Agreement) map[string]*reconcile.ChainSnapshot {
	type target struct {
		chain, contract string
		hint            int
	}
	targets := make(map[string]target)
	for _, child := range children {
		key := contractKey(chainOf(child, parent), child.ContractAddress)
		hint := max(child.TotalMonths, parent.TotalMonths)
		if t, ok := targets[key]; ok {
			t.hint = max(t.hint, hint)
			targets[key] = t
			continue
		}
		targets[key] = target{chain: chainOf(child, parent), contract: child.ContractAddress, hint: hint}
	}

	var mu sync.Mutex
	out := make(map[string]*reconcile.ChainSnapshot, len(targets))

	eg := &errgroup.Group{}
	eg.SetLimit(r.concurrency)
	for key, t := range targets {
		eg.Go(func() error {
			snap := r.reader(t.chain).ReadSnapshot(ctx, t.contract, t.hint)
			mu.Lock()
			out[key] = snap
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()
	return out
}

// reader falls back to a DB-only resolution when the chain has no RPC.
func (r *Reconciler) reader(chainName string) chain.SnapshotReader {
	reader, err := r.readers.For(chainName)
	if err != nil {
		r.logger.WithError(err).WithField("chain", chainName).Warn("no snapshot reader, resolving from record only")
		return chain.NilReader{}
	}
	return r.cache.Wrap(chainName, reader)
}

func (r *Reconciler) record(kind string, res reconcile.Resolution) {
	labels := make([]string, len(res.Statuses))
	for i, s := range res.Statuses {
		labels[i] = string(s)
	}
	r.metrics.RecordResolution(kind, string(res.Status), labels)
}

func chainOf(child, parent reconcile.Agreement) string {
	if child.Chain != "" {
		return child.Chain
	}
	return parent.Chain
}

func contractKey(chainName, contract string) string {
	return strings.ToLower(chainName) + ":" + strings.ToLower(contract)
}
