package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var (
	engine = NewEngine(DefaultCadence)
	now    = time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)
)

func TestResolve_counterOnly(t *testing.T) {
	a := newAgreement(3, now.Add(-10*day))
	snap := &ChainSnapshot{
		TotalMonths:    intPtr(3),
		ExecutedMonths: intPtr(1),
		Cancelled:      boolPtr(false),
	}

	got := engine.Resolve(a, snap, now)
	require.Equal(t, statuses(StatusExecuted, StatusPending, StatusPending), got)
}

func TestResolve_dbOverridesChain(t *testing.T) {
	a := newAgreement(3, now.Add(-10*day))
	a.MonthlyStatuses = map[string]string{"1": "failed"}
	snap := &ChainSnapshot{
		TotalMonths:    intPtr(3),
		ExecutedMonths: intPtr(1),
		Cancelled:      boolPtr(false),
	}

	got := engine.Resolve(a, snap, now)
	require.Equal(t, statuses(StatusFailed, StatusPending, StatusPending), got)
}

func TestResolve_cancelledGuardsFutureInstallments(t *testing.T) {
	cancelledAt := now
	// installment 2 falls due ten days after the cancellation
	first := cancelledAt.Add(10*day - 2*DefaultCadence)
	a := newAgreement(3, first)
	snap := &ChainSnapshot{
		TotalMonths:    intPtr(3),
		ExecutedMonths: intPtr(0),
		Cancelled:      boolPtr(true),
		MonthExecuted:  []*bool{boolPtr(false), nil, nil},
	}

	got := engine.Resolve(a, snap, cancelledAt)
	require.Equal(t, StatusCancelled, got[0])
	require.Equal(t, StatusCancelled, got[1])
	require.Equal(t, StatusPending, got[2])
}

func TestResolve_futureCancellationNeverCancelled(t *testing.T) {
	a := newAgreement(12, now.Add(-45*day))
	snap := &ChainSnapshot{TotalMonths: intPtr(12), Cancelled: boolPtr(true)}

	got := engine.Resolve(a, snap, now)
	for i, st := range got {
		if engine.DueTime(a, i) > now.Unix() {
			require.Equal(t, StatusPending, st, "index %d", i)
		} else {
			require.Equal(t, StatusCancelled, st, "index %d", i)
		}
	}
}

func TestResolve_precedence(t *testing.T) {
	a := newAgreement(6, now.Add(-130*day))
	a.MonthlyStatuses = map[string]string{"0": "cancelled", "4": "pending"}
	snap := &ChainSnapshot{
		TotalMonths:    intPtr(6),
		ExecutedMonths: intPtr(2),
		Cancelled:      boolPtr(true),
		MonthExecuted:  []*bool{boolPtr(true), nil, boolPtr(true), nil, nil, nil},
		Logs: []PaymentLog{
			{Status: LogFailed, MonthNumber: 0, BlockNumber: 5},
			{Status: LogFailed, MonthNumber: 2, BlockNumber: 6},
			{Status: LogExecuted, MonthNumber: 4, BlockNumber: 7},
		},
	}

	got := engine.Resolve(a, snap, now)
	require.Equal(t, statuses(
		StatusCancelled, // db entry
		StatusExecuted,  // counter confirms it
		StatusFailed,    // log beats the flag
		StatusCancelled, // past due on a cancelled contract
		StatusExecuted,  // pending db entry yields to the log
		StatusPending,   // still in the future
	), got)
}

func TestResolve_lengthIsMaxOfSources(t *testing.T) {
	a := newAgreement(2, now)
	require.Len(t, engine.Resolve(a, &ChainSnapshot{TotalMonths: intPtr(4)}, now), 4)
	require.Len(t, engine.Resolve(a, &ChainSnapshot{TotalMonths: intPtr(1)}, now), 2)
	require.Len(t, engine.Resolve(a, nil, now), 2)
}

func TestResolve_missingChainData(t *testing.T) {
	a := newAgreement(3, now.Add(-100*day))
	snap := &ChainSnapshot{MonthExecuted: []*bool{nil}}

	got := engine.Resolve(a, snap, now)
	require.Equal(t, statuses(StatusPending, StatusPending, StatusPending), got)
	require.Equal(t, statuses(StatusPending, StatusPending, StatusPending), engine.Resolve(a, nil, now))
}

func TestResolve_idempotent(t *testing.T) {
	a := newAgreement(4, now.Add(-70*day))
	a.MonthlyStatuses = map[string]string{"1": "released"}
	snap := &ChainSnapshot{
		TotalMonths:    intPtr(4),
		ExecutedMonths: intPtr(2),
		Cancelled:      boolPtr(true),
		Logs:           []PaymentLog{{Status: LogFailed, MonthNumber: 2, BlockNumber: 9}},
	}

	first := engine.Resolve(a, snap, now)
	second := engine.Resolve(a, snap, now)
	require.Equal(t, first, second)
}

func TestResolve_monotonic(t *testing.T) {
	a := newAgreement(3, now.Add(-70*day))
	s1 := &ChainSnapshot{
		TotalMonths:    intPtr(3),
		ExecutedMonths: intPtr(1),
		Logs: []PaymentLog{
			{Status: LogExecuted, MonthNumber: 0, BlockNumber: 2},
			{Status: LogFailed, MonthNumber: 1, BlockNumber: 3},
		},
	}

	// s2 knows everything s1 knows plus a cancellation and a keeper that lags behind.
	s2 := &ChainSnapshot{
		TotalMonths:        intPtr(3),
		ExecutedMonths:     intPtr(1),
		NextMonthToProcess: intPtr(2),
		Cancelled:          boolPtr(true),
		MonthExecuted:      []*bool{boolPtr(true), nil, nil},
		Logs: []PaymentLog{
			{Status: LogExecuted, MonthNumber: 0, BlockNumber: 2},
			{Status: LogFailed, MonthNumber: 1, BlockNumber: 3},
		},
	}
	a2 := a
	a2.MonthlyStatuses = map[string]string{"0": "pending", "1": "pending"}

	before := engine.Resolve(a, s1, now)
	after := engine.Resolve(a2, s2, now)
	for i := range before {
		if before[i].IsTerminal() {
			require.Equal(t, before[i], after[i], "index %d regressed", i)
		}
	}
	require.Equal(t, StatusExecuted, after[0])
	require.Equal(t, StatusFailed, after[1])
}

func TestResolve_doesNotMutateInputs(t *testing.T) {
	a := newAgreement(3, now.Add(-70*day))
	a.MonthlyStatuses = map[string]string{"1": "failed"}
	snap := &ChainSnapshot{
		TotalMonths: intPtr(3),
		Logs: []PaymentLog{
			{Status: LogExecuted, MonthNumber: 3, BlockNumber: 9},
			{Status: LogExecuted, MonthNumber: 2, BlockNumber: 4},
		},
	}
	logs := append([]PaymentLog(nil), snap.Logs...)

	_ = engine.Resolve(a, snap, now)
	require.Equal(t, map[string]string{"1": "failed"}, a.MonthlyStatuses)
	require.Equal(t, logs, snap.Logs)
}

func TestResolveSingle(t *testing.T) {
	past := now.Add(-day)
	future := now.Add(day)

	tests := []struct {
		name     string
		dbStatus string
		first    time.Time
		snap     *ChainSnapshot
		want     InstallmentStatus
	}{
		{"completed in db", "completed", past, nil, StatusExecuted},
		{"failed in db", "FAILED", past, &ChainSnapshot{Released: boolPtr(true)}, StatusFailed},
		{"released on chain", "active", past, &ChainSnapshot{Released: boolPtr(true)}, StatusExecuted},
		{"cancelled before due", "pending", future, &ChainSnapshot{Cancelled: boolPtr(true)}, StatusPending},
		{"cancelled after due", "pending", past, &ChainSnapshot{Cancelled: boolPtr(true)}, StatusCancelled},
		{"cancelled in db", "cancelled", future, nil, StatusCancelled},
		{"nothing known", "garbage", past, nil, StatusPending},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := newAgreement(0, tc.first)
			a.DBStatus = tc.dbStatus
			require.Equal(t, tc.want, engine.ResolveSingle(a, tc.snap, now))
			require.Equal(t, []InstallmentStatus{tc.want}, engine.Resolve(a, tc.snap, now))
		})
	}
}

func TestAgreementStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []InstallmentStatus
		dbStatus string
		want     PaymentStatus
	}{
		{"all terminal", statuses(StatusExecuted, StatusFailed), "active", PaymentCompleted},
		{"all cancelled", statuses(StatusCancelled, StatusCancelled), "active", PaymentCancelled},
		{"some processed", statuses(StatusExecuted, StatusPending), "pending", PaymentActive},
		{"nothing processed", statuses(StatusPending, StatusPending), "Pending", PaymentPending},
		{"nothing processed keeps db", statuses(StatusPending, StatusCancelled), "cancelled", PaymentCancelled},
		{"malformed db", statuses(StatusPending), "???", PaymentPending},
		{"empty", nil, "active", PaymentActive},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, AgreementStatus(tc.statuses, tc.dbStatus))
		})
	}
}

func TestNewEngine_defaultsCadence(t *testing.T) {
	require.Equal(t, DefaultCadence, NewEngine(0).Cadence())
	require.Equal(t, time.Minute, NewEngine(time.Minute).Cadence())
}
