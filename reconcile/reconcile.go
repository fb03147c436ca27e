// Package reconcile decides the execution status of every installment of a scheduled payment
// from the keeper's database record and a snapshot of the payment contract.
//
// Everything in this package is a pure function of its inputs: no I/O, no clocks, no shared
// state. Callers gather records and snapshots, inject the current time and may cache results
// by agreement and snapshot version.
package reconcile

import (
	"fmt"
	"time"
)

// Resolution is the full reconciliation outcome for one agreement.
type Resolution struct {
	AgreementID   string                `json:"agreement_id"`
	Status        PaymentStatus         `json:"status"`
	Statuses      []InstallmentStatus   `json:"statuses"`
	Progress      Progress              `json:"progress"`
	Timeline      []ResolvedInstallment `json:"timeline"`
	Beneficiaries []BeneficiaryStatuses `json:"beneficiaries,omitempty"`
}

// Reconcile resolves a single-payee agreement end to end.
func (e Engine) Reconcile(a Agreement, s *ChainSnapshot, now time.Time) Resolution {
	statuses := e.Resolve(a, s, now)
	return Resolution{
		AgreementID: a.ID.String(),
		Status:      AgreementStatus(statuses, a.DBStatus),
		Statuses:    statuses,
		Progress:    ProgressOf(statuses),
		Timeline:    e.Expand(a, statuses),
	}
}

// Beneficiary pairs a batch child record with the snapshot of its contract.
type Beneficiary struct {
	Agreement Agreement
	Snapshot  *ChainSnapshot
}

// ReconcileBatch resolves every beneficiary of a batch against the shared installment count
// and aggregates them under the parent agreement.
func (e Engine) ReconcileBatch(parent Agreement, children []Beneficiary, now time.Time, preferredLead string) (Resolution, error) {
	total := parent.TotalMonths
	for _, c := range children {
		if n := InstallmentCount(c.Agreement, c.Snapshot); n > total {
			total = n
		}
	}

	perBeneficiary := make([]BeneficiaryStatuses, 0, len(children))
	rollups := make([]PaymentStatus, 0, len(children))
	for _, c := range children {
		child := c.Agreement
		// Children share the parent's schedule even when their own record lags behind.
		child.TotalMonths = total
		if child.FirstPaymentTime == 0 {
			child.FirstPaymentTime = parent.FirstPaymentTime
		}
		statuses := e.Resolve(child, c.Snapshot, now)
		perBeneficiary = append(perBeneficiary, BeneficiaryStatuses{
			Address:  child.PayeeAddress,
			Statuses: statuses,
		})
		rollups = append(rollups, AgreementStatus(statuses, child.DBStatus))
	}

	res, err := Aggregate(perBeneficiary)
	if err != nil {
		return Resolution{}, fmt.Errorf("aggregate batch %s: %w", parent.ID, err)
	}

	return Resolution{
		AgreementID:   parent.ID.String(),
		Status:        BatchStatus(res.Status, rollups, parent.DBStatus),
		Statuses:      res.Status,
		Progress:      ProgressOf(res.Status),
		Timeline:      e.ExpandBatch(parent, res, preferredLead),
		Beneficiaries: perBeneficiary,
	}, nil
}
