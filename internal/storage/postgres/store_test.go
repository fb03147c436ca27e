package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vultisig/schedpay/internal/storage"
	"github.com/vultisig/schedpay/reconcile"
)

func TestParseMonthlyStatuses(t *testing.T) {
	got := parseMonthlyStatuses([]byte(`{"0":"executed","1":7,"2":"failed","x":null}`))
	assert.Equal(t, map[string]string{"0": "executed", "2": "failed"}, got)

	assert.Nil(t, parseMonthlyStatuses(nil))
	assert.Nil(t, parseMonthlyStatuses([]byte(`[1,2]`)))
}

type testConfig struct {
	DatabaseDSN string `envconfig:"DATABASE_DSN" required:"true"`
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	if os.Getenv("INTEGRATION_TESTS") != "true" {
		t.Skip("integration tests disabled")
	}

	var cfg testConfig
	require.NoError(t, envconfig.Process("", &cfg))

	s, err := NewStore(context.Background(), logrus.New(), cfg.DatabaseDSN)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestStore_Integration(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := decimal.RequireFromString("250.5")
	parent := reconcile.Agreement{
		ID:                 uuid.New(),
		Chain:              "Ethereum",
		ContractAddress:    "0x00000000000000000000000000000000000000a1",
		PayerAddress:       "0x00000000000000000000000000000000000000b1",
		TokenSymbol:        "USDC",
		TotalMonths:        3,
		FirstPaymentTime:   1735689600,
		MonthlyAmount:      decimal.RequireFromString("100"),
		FirstMonthAmount:   &first,
		IsFirstMonthCustom: true,
		MonthlyStatuses:    map[string]string{"0": "executed"},
	}
	require.NoError(t, s.InsertAgreement(ctx, parent, nil))

	for _, payee := range []string{"0xc1", "0xc2"} {
		child := parent
		child.ID = uuid.New()
		child.PayeeAddress = payee
		child.MonthlyStatuses = nil
		require.NoError(t, s.InsertAgreement(ctx, child, &parent.ID))
	}

	got, err := s.GetAgreement(ctx, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, "pending", got.DBStatus)
	assert.True(t, got.MonthlyAmount.Equal(parent.MonthlyAmount))
	require.NotNil(t, got.FirstMonthAmount)
	assert.True(t, got.FirstMonthAmount.Equal(first))
	assert.Equal(t, map[string]string{"0": "executed"}, got.MonthlyStatuses)
	require.Len(t, got.Beneficiaries, 2)
	assert.True(t, got.IsBatch())

	children, err := s.GetChildren(ctx, parent.ID)
	require.NoError(t, err)
	assert.Len(t, children, 2)

	open, err := storage.AllFromRowsStream(s.GetOpenAgreements(ctx))
	require.NoError(t, err)
	assert.Contains(t, open, parent.ID)
	for _, c := range children {
		assert.NotContains(t, open, c.ID)
	}

	moved, err := s.SetStatus(ctx, parent.ID, reconcile.PaymentActive)
	require.NoError(t, err)
	assert.True(t, moved)

	moved, err = s.SetStatus(ctx, parent.ID, reconcile.PaymentPending)
	require.NoError(t, err)
	assert.False(t, moved)

	moved, err = s.SetStatus(ctx, parent.ID, reconcile.PaymentCompleted)
	require.NoError(t, err)
	assert.True(t, moved)

	moved, err = s.SetStatus(ctx, parent.ID, reconcile.PaymentActive)
	require.NoError(t, err)
	assert.False(t, moved)

	_, err = s.GetAgreement(ctx, uuid.New())
	require.ErrorIs(t, err, ErrNotFound)
}
