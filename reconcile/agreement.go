package reconcile

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultCadence is the production spacing between installments.
const DefaultCadence = 30 * 24 * time.Hour

type BeneficiaryShare struct {
	Address string          `json:"address"`
	Amount  decimal.Decimal `json:"amount"`
}

// Agreement is the persisted record of one scheduled, recurring or batch payment.
// The engine treats it as read-only.
type Agreement struct {
	ID                 uuid.UUID          `json:"id"`
	Chain              string             `json:"chain"`
	TxHash             string             `json:"tx_hash,omitempty"`
	ContractAddress    string             `json:"contract_address"`
	PayerAddress       string             `json:"payer_address"`
	PayeeAddress       string             `json:"payee_address,omitempty"`
	Beneficiaries      []BeneficiaryShare `json:"beneficiaries,omitempty"`
	TokenSymbol        string             `json:"token_symbol"`
	TotalMonths        int                `json:"total_months"`
	ExecutedMonths     int                `json:"executed_months"`
	FirstPaymentTime   int64              `json:"first_payment_time"`
	MonthlyAmount      decimal.Decimal    `json:"monthly_amount"`
	FirstMonthAmount   *decimal.Decimal   `json:"first_month_amount,omitempty"`
	IsFirstMonthCustom bool               `json:"is_first_month_custom"`
	Cancellable        bool               `json:"cancellable"`
	DBStatus           string             `json:"status"`
	MonthlyStatuses    map[string]string  `json:"monthly_statuses,omitempty"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

func (a Agreement) IsBatch() bool {
	return len(a.Beneficiaries) > 0
}

// IsRecurring is false for one-off agreements, which carry total_months = 0.
func (a Agreement) IsRecurring() bool {
	return a.TotalMonths > 0
}

// AmountAt returns the amount due for the installment at index.
func (a Agreement) AmountAt(index int) decimal.Decimal {
	if index == 0 && a.IsFirstMonthCustom && a.FirstMonthAmount != nil && !a.FirstMonthAmount.IsZero() {
		return *a.FirstMonthAmount
	}
	return a.MonthlyAmount
}
