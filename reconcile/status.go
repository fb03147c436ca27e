package reconcile

import "strings"

// InstallmentStatus is the resolved execution state of one installment.
type InstallmentStatus string

const (
	StatusExecuted  InstallmentStatus = "executed"
	StatusFailed    InstallmentStatus = "failed"
	StatusPending   InstallmentStatus = "pending"
	StatusCancelled InstallmentStatus = "cancelled"
	// StatusMixed is only produced by batch aggregation.
	StatusMixed InstallmentStatus = "mixed"
)

// IsTerminal reports whether the installment was processed by the keeper (executed or failed).
func (s InstallmentStatus) IsTerminal() bool {
	return s == StatusExecuted || s == StatusFailed
}

// IsHistorical reports whether the installment belongs to the past-activity view.
func (s InstallmentStatus) IsHistorical() bool {
	return s.IsTerminal() || s == StatusMixed
}

// NormalizeStatus maps a persisted monthly status to an InstallmentStatus.
// "released" is the keeper's vocabulary for an executed installment.
func NormalizeStatus(raw string) (InstallmentStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "released", "executed":
		return StatusExecuted, true
	case "failed":
		return StatusFailed, true
	case "pending":
		return StatusPending, true
	case "cancelled":
		return StatusCancelled, true
	default:
		return "", false
	}
}

// PaymentStatus is the agreement-level lifecycle label.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentActive    PaymentStatus = "active"
	PaymentCompleted PaymentStatus = "completed"
	PaymentCancelled PaymentStatus = "cancelled"
	PaymentFailed    PaymentStatus = "failed"
)

func NormalizePaymentStatus(raw string) (PaymentStatus, bool) {
	switch s := PaymentStatus(strings.ToLower(strings.TrimSpace(raw))); s {
	case PaymentPending, PaymentActive, PaymentCompleted, PaymentCancelled, PaymentFailed:
		return s, true
	default:
		return "", false
	}
}

// IsFinal reports whether no further installment can change the label.
func (s PaymentStatus) IsFinal() bool {
	return s == PaymentCompleted || s == PaymentCancelled || s == PaymentFailed
}

func fallbackStatus(dbStatus string) PaymentStatus {
	if s, ok := NormalizePaymentStatus(dbStatus); ok {
		return s
	}
	return PaymentPending
}

// CanAdvance reports whether a persisted label may move from one status to another.
// Final labels never change and an active agreement never returns to pending.
func CanAdvance(from, to PaymentStatus) bool {
	if from == to || from.IsFinal() {
		return false
	}
	return !(from == PaymentActive && to == PaymentPending)
}
