package reconcile

import (
	"errors"
	"fmt"
)

// ErrShapeMismatch is returned when beneficiaries of one batch resolve to different
// installment counts. It signals a caller bug, not a data problem.
var ErrShapeMismatch = errors.New("beneficiary status lists differ in length")

// BeneficiaryStatuses is the resolved status list of one batch beneficiary.
type BeneficiaryStatuses struct {
	Address  string              `json:"address"`
	Statuses []InstallmentStatus `json:"statuses"`
}

type BeneficiaryOutcome struct {
	Address string            `json:"address"`
	Status  InstallmentStatus `json:"status"`
}

// BatchResult overlays one aggregate status per installment on the untouched
// per-beneficiary outcomes. Detail[i] lists every beneficiary at installment i.
type BatchResult struct {
	Status []InstallmentStatus    `json:"status"`
	Detail [][]BeneficiaryOutcome `json:"detail"`
}

// Aggregate merges the per-beneficiary status lists of a batch into one status per installment.
func Aggregate(beneficiaries []BeneficiaryStatuses) (BatchResult, error) {
	if len(beneficiaries) == 0 {
		return BatchResult{}, nil
	}

	total := len(beneficiaries[0].Statuses)
	for _, b := range beneficiaries[1:] {
		if len(b.Statuses) != total {
			return BatchResult{}, fmt.Errorf("%w: %s has %d, %s has %d",
				ErrShapeMismatch, beneficiaries[0].Address, total, b.Address, len(b.Statuses))
		}
	}

	res := BatchResult{
		Status: make([]InstallmentStatus, total),
		Detail: make([][]BeneficiaryOutcome, total),
	}
	column := make([]InstallmentStatus, len(beneficiaries))
	for i := 0; i < total; i++ {
		detail := make([]BeneficiaryOutcome, len(beneficiaries))
		for j, b := range beneficiaries {
			column[j] = b.Statuses[i]
			detail[j] = BeneficiaryOutcome{Address: b.Address, Status: b.Statuses[i]}
		}
		res.Status[i] = aggregateColumn(column)
		res.Detail[i] = detail
	}
	return res, nil
}

func aggregateColumn(column []InstallmentStatus) InstallmentStatus {
	var executed, cancelled, failed int
	for _, st := range column {
		switch st {
		case StatusExecuted:
			executed++
		case StatusCancelled:
			cancelled++
		case StatusFailed:
			failed++
		}
	}

	switch {
	case failed > 0:
		return StatusFailed
	case cancelled == len(column):
		return StatusCancelled
	case cancelled > 0 && executed > 0:
		return StatusMixed
	case cancelled > 0:
		return StatusCancelled
	case executed == len(column):
		return StatusExecuted
	default:
		return StatusPending
	}
}

// BatchStatus rolls a batch up into the parent agreement label.
// beneficiaryRollups holds AgreementStatus of every beneficiary.
func BatchStatus(aggregate []InstallmentStatus, beneficiaryRollups []PaymentStatus, dbStatus string) PaymentStatus {
	if len(aggregate) == 0 {
		return fallbackStatus(dbStatus)
	}

	processed := 0
	for _, st := range aggregate {
		if st.IsHistorical() {
			processed++
		}
	}
	if processed == len(aggregate) {
		return PaymentCompleted
	}

	if len(beneficiaryRollups) > 0 {
		allCancelled := true
		for _, r := range beneficiaryRollups {
			if r != PaymentCancelled {
				allCancelled = false
				break
			}
		}
		if allCancelled {
			return PaymentCancelled
		}
	}

	if processed > 0 {
		return PaymentActive
	}
	return fallbackStatus(dbStatus)
}
