package reconcile

import "time"

// Engine resolves, aggregates and expands installment statuses.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	cadence time.Duration
}

// NewEngine returns an Engine spacing installments by cadence.
// A non-positive cadence falls back to DefaultCadence.
func NewEngine(cadence time.Duration) Engine {
	if cadence <= 0 {
		cadence = DefaultCadence
	}
	return Engine{cadence: cadence}
}

func (e Engine) Cadence() time.Duration {
	return e.cadence
}

// DueTime returns the unix second at which the installment at index falls due.
func (e Engine) DueTime(a Agreement, index int) int64 {
	return a.FirstPaymentTime + int64(index)*int64(e.cadence/time.Second)
}

// InstallmentCount is the number of installments the agreement resolves to.
func InstallmentCount(a Agreement, s *ChainSnapshot) int {
	n := a.TotalMonths
	if t := s.totalMonths(); t > n {
		n = t
	}
	if n < 0 {
		return 0
	}
	return n
}

// Resolve returns one status per installment, merging the keeper's record with the chain snapshot.
// A nil snapshot means nothing could be read from the chain.
func (e Engine) Resolve(a Agreement, s *ChainSnapshot, now time.Time) []InstallmentStatus {
	total := InstallmentCount(a, s)
	if total == 0 {
		return []InstallmentStatus{e.ResolveSingle(a, s, now)}
	}

	var logs []PaymentLog
	if s != nil {
		logs = s.Logs
	}
	db := StatusesByIndex(a.MonthlyStatuses, total)
	events := EventsByIndex(logs, total)
	executed := s.executedMonths()
	nowUnix := now.Unix()

	out := make([]InstallmentStatus, total)
	for i := range out {
		dbStatus, hasDB := db[i]
		if hasDB && dbStatus != StatusPending {
			out[i] = dbStatus
			continue
		}

		// A pending keeper record never hides a confirmed execution.
		if st, ok := events[i]; ok {
			out[i] = st
			continue
		}
		if s.monthExecuted(i) || i < executed {
			out[i] = StatusExecuted
			continue
		}
		if !hasDB && s.cancelled() {
			if e.DueTime(a, i) > nowUnix {
				out[i] = StatusPending
			} else {
				out[i] = StatusCancelled
			}
			continue
		}
		out[i] = StatusPending
	}
	return out
}

// ResolveSingle resolves a one-off agreement: the keeper's lifecycle status first, then the
// contract's released and cancelled flags.
func (e Engine) ResolveSingle(a Agreement, s *ChainSnapshot, now time.Time) InstallmentStatus {
	if st, ok := NormalizePaymentStatus(a.DBStatus); ok {
		switch st {
		case PaymentCompleted:
			return StatusExecuted
		case PaymentFailed:
			return StatusFailed
		case PaymentCancelled:
			return StatusCancelled
		}
	}
	if s.released() {
		return StatusExecuted
	}
	if s.cancelled() {
		if a.FirstPaymentTime > now.Unix() {
			return StatusPending
		}
		return StatusCancelled
	}
	return StatusPending
}

// AgreementStatus rolls installment statuses up into the agreement label.
// dbStatus is only used when nothing has been processed yet.
func AgreementStatus(statuses []InstallmentStatus, dbStatus string) PaymentStatus {
	total := len(statuses)
	if total == 0 {
		return fallbackStatus(dbStatus)
	}

	var terminal, cancelled int
	for _, st := range statuses {
		switch {
		case st.IsTerminal():
			terminal++
		case st == StatusCancelled:
			cancelled++
		}
	}

	switch {
	case cancelled == total:
		return PaymentCancelled
	case terminal == total:
		return PaymentCompleted
	case terminal > 0:
		return PaymentActive
	default:
		return fallbackStatus(dbStatus)
	}
}
