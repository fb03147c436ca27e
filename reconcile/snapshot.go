package reconcile

// LogStatus is the outcome carried by a payment contract event.
type LogStatus string

const (
	LogExecuted LogStatus = "executed"
	LogFailed   LogStatus = "failed"
)

// PaymentLog is one MonthlyPaymentExecuted or MonthlyPaymentFailed event.
// MonthNumber is the raw value emitted by the contract, 0- or 1-based.
type PaymentLog struct {
	Status      LogStatus `json:"status"`
	MonthNumber int64     `json:"month_number"`
	BlockNumber uint64    `json:"block_number"`
	LogIndex    uint      `json:"log_index"`
}

// ChainSnapshot is a point-in-time read of a payment contract.
// A nil field means the read failed or was not attempted.
type ChainSnapshot struct {
	BlockNumber        uint64       `json:"block_number"`
	TotalMonths        *int         `json:"total_months"`
	ExecutedMonths     *int         `json:"executed_months"`
	NextMonthToProcess *int         `json:"next_month_to_process"`
	Cancelled          *bool        `json:"cancelled"`
	Released           *bool        `json:"released"`
	MonthExecuted      []*bool      `json:"month_executed"`
	Logs               []PaymentLog `json:"logs"`
}

func (s *ChainSnapshot) totalMonths() int {
	if s == nil || s.TotalMonths == nil || *s.TotalMonths < 0 {
		return 0
	}
	return *s.TotalMonths
}

func (s *ChainSnapshot) executedMonths() int {
	if s == nil || s.ExecutedMonths == nil {
		return 0
	}
	return *s.ExecutedMonths
}

func (s *ChainSnapshot) cancelled() bool {
	return s != nil && s.Cancelled != nil && *s.Cancelled
}

func (s *ChainSnapshot) released() bool {
	return s != nil && s.Released != nil && *s.Released
}

func (s *ChainSnapshot) monthExecuted(index int) bool {
	if s == nil || index < 0 || index >= len(s.MonthExecuted) {
		return false
	}
	v := s.MonthExecuted[index]
	return v != nil && *v
}
