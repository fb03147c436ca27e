package reconcile

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const day = 24 * time.Hour

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func newAgreement(total int, firstPayment time.Time) Agreement {
	return Agreement{
		ID:               uuid.New(),
		PayeeAddress:     "0x00000000000000000000000000000000000000b1",
		TotalMonths:      total,
		FirstPaymentTime: firstPayment.Unix(),
		MonthlyAmount:    decimal.RequireFromString("100"),
		DBStatus:         "active",
	}
}

func statuses(s ...InstallmentStatus) []InstallmentStatus {
	return s
}
