package reconcile

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	first := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	a := newAgreement(3, first)
	custom := decimal.RequireFromString("250.5")
	a.FirstMonthAmount = &custom
	a.IsFirstMonthCustom = true

	got := engine.Expand(a, statuses(StatusExecuted, StatusCancelled, StatusPending))
	require.Len(t, got, 3)

	require.True(t, first.Equal(got[0].DueTime))
	require.True(t, first.Add(2*DefaultCadence).Equal(got[2].DueTime))
	require.True(t, custom.Equal(got[0].Amount))
	require.True(t, a.MonthlyAmount.Equal(got[1].Amount))

	require.True(t, got[0].IsHistorical)
	require.False(t, got[1].IsHistorical)
	require.False(t, got[2].IsHistorical)
	require.Len(t, History(got), 1)
}

func TestExpand_customAmountIgnoredWhenFlagUnset(t *testing.T) {
	a := newAgreement(2, now)
	custom := decimal.RequireFromString("1")
	a.FirstMonthAmount = &custom

	got := engine.Expand(a, statuses(StatusPending, StatusPending))
	require.True(t, a.MonthlyAmount.Equal(got[0].Amount))
}

func TestExpand_singleAgreement(t *testing.T) {
	a := newAgreement(0, now)
	got := engine.Expand(a, statuses(StatusExecuted))
	require.Len(t, got, 1)
	require.Equal(t, 0, got[0].MonthIndex)
	require.True(t, got[0].IsHistorical)

	require.Len(t, engine.Expand(a, nil), 1)
}

func TestExpand_testCadence(t *testing.T) {
	e := NewEngine(5 * time.Minute)
	a := newAgreement(2, now)
	got := e.Expand(a, statuses(StatusPending, StatusPending))
	require.Equal(t, now.Add(5*time.Minute).Unix(), got[1].DueTime.Unix())
}

func TestExpandBatch_leadFirst(t *testing.T) {
	a := newAgreement(1, now)
	res := BatchResult{
		Status: statuses(StatusMixed),
		Detail: [][]BeneficiaryOutcome{{
			{Address: "0xA", Status: StatusExecuted},
			{Address: "0xB", Status: StatusCancelled},
			{Address: "0xC", Status: StatusExecuted},
		}},
	}

	got := engine.ExpandBatch(a, res, "0xc")
	require.Equal(t, []string{"0xC", "0xA", "0xB"}, addresses(got[0].BeneficiaryBreakdown))
	require.True(t, got[0].IsHistorical)
	// detail itself is left untouched
	require.Equal(t, "0xA", res.Detail[0][0].Address)

	got = engine.ExpandBatch(a, res, "")
	require.Equal(t, []string{"0xA", "0xB", "0xC"}, addresses(got[0].BeneficiaryBreakdown))
}

func TestProgressOf(t *testing.T) {
	p := ProgressOf(statuses(StatusExecuted, StatusExecuted, StatusFailed, StatusMixed, StatusCancelled, StatusPending))
	require.Equal(t, Progress{Total: 6, Executed: 2, Failed: 1, Mixed: 1, Cancelled: 1, Pending: 1}, p)
}

func TestReconcile_endToEnd(t *testing.T) {
	a := newAgreement(3, now.Add(-40*day))
	res := engine.Reconcile(a, &ChainSnapshot{TotalMonths: intPtr(3), ExecutedMonths: intPtr(1)}, now)

	require.Equal(t, PaymentActive, res.Status)
	require.Equal(t, statuses(StatusExecuted, StatusPending, StatusPending), res.Statuses)
	require.Equal(t, 1, res.Progress.Executed)
	require.Len(t, res.Timeline, 3)
}

func addresses(outcomes []BeneficiaryOutcome) []string {
	out := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		out = append(out, o.Address)
	}
	return out
}
