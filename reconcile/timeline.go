package reconcile

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ResolvedInstallment is one dated entry of an agreement timeline.
type ResolvedInstallment struct {
	MonthIndex           int                  `json:"month_index"`
	DueTime              time.Time            `json:"due_time"`
	Amount               decimal.Decimal      `json:"amount"`
	Status               InstallmentStatus    `json:"status"`
	IsHistorical         bool                 `json:"is_historical"`
	BeneficiaryBreakdown []BeneficiaryOutcome `json:"beneficiary_breakdown,omitempty"`
}

// Expand dates and prices every installment. Entries are returned for pending and
// cancelled installments too; History filters them out.
func (e Engine) Expand(a Agreement, statuses []InstallmentStatus) []ResolvedInstallment {
	total := a.TotalMonths
	if len(statuses) > total {
		total = len(statuses)
	}
	if total == 0 {
		total = 1
	}

	out := make([]ResolvedInstallment, total)
	for i := range out {
		st := StatusPending
		if i < len(statuses) {
			st = statuses[i]
		}
		out[i] = ResolvedInstallment{
			MonthIndex:   i,
			DueTime:      time.Unix(e.DueTime(a, i), 0).UTC(),
			Amount:       a.AmountAt(i),
			Status:       st,
			IsHistorical: st.IsHistorical(),
		}
	}
	return out
}

// ExpandBatch expands the aggregate statuses of a batch and attaches each installment's
// beneficiary breakdown, listing preferredLead first when it is part of the batch.
func (e Engine) ExpandBatch(a Agreement, res BatchResult, preferredLead string) []ResolvedInstallment {
	out := e.Expand(a, res.Status)
	for i := range out {
		if i >= len(res.Detail) {
			break
		}
		out[i].BeneficiaryBreakdown = leadFirst(res.Detail[i], preferredLead)
	}
	return out
}

func leadFirst(detail []BeneficiaryOutcome, lead string) []BeneficiaryOutcome {
	out := make([]BeneficiaryOutcome, len(detail))
	copy(out, detail)
	if lead == "" {
		return out
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.EqualFold(out[i].Address, lead) && !strings.EqualFold(out[j].Address, lead)
	})
	return out
}

// History keeps only installments that already happened.
func History(timeline []ResolvedInstallment) []ResolvedInstallment {
	out := make([]ResolvedInstallment, 0, len(timeline))
	for _, it := range timeline {
		if it.IsHistorical {
			out = append(out, it)
		}
	}
	return out
}

// Progress counts installments by status for progress bars.
type Progress struct {
	Total     int `json:"total"`
	Executed  int `json:"executed"`
	Failed    int `json:"failed"`
	Mixed     int `json:"mixed"`
	Cancelled int `json:"cancelled"`
	Pending   int `json:"pending"`
}

func ProgressOf(statuses []InstallmentStatus) Progress {
	p := Progress{Total: len(statuses)}
	for _, st := range statuses {
		switch st {
		case StatusExecuted:
			p.Executed++
		case StatusFailed:
			p.Failed++
		case StatusMixed:
			p.Mixed++
		case StatusCancelled:
			p.Cancelled++
		default:
			p.Pending++
		}
	}
	return p
}
