package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/vultisig/schedpay/internal/storage"
	"github.com/vultisig/schedpay/reconcile"
)

var _ storage.AgreementStore = (*Store)(nil)

var ErrNotFound = errors.New("agreement not found")

const defaultTimeout = 10 * time.Second

const agreementColumns = `id,
	chain,
	COALESCE(tx_hash, ''),
	contract_address,
	payer_address,
	COALESCE(payee_address, ''),
	token_symbol,
	total_months,
	executed_months,
	first_payment_time,
	monthly_amount::text,
	first_month_amount::text,
	is_first_month_custom,
	cancellable,
	status::text,
	monthly_statuses,
	updated_at`

type Store struct {
	logger *logrus.Logger
	pool   *pgxpool.Pool
}

func NewRepo(logger *logrus.Logger, pool *pgxpool.Pool) *Store {
	return &Store{
		logger: logger.WithField("pkg", "postgres.Store").Logger,
		pool:   pool,
	}
}

// NewStore connects, pings and migrates.
func NewStore(c context.Context, logger *logrus.Logger, dsn string) (*Store, error) {
	ctx, cancel := context.WithTimeout(c, defaultTimeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pool.Ping: %w", err)
	}
	if err = NewMigrationManager(logger, pool).Migrate(); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return NewRepo(logger, pool), nil
}

func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) GetAgreement(c context.Context, id uuid.UUID) (reconcile.Agreement, error) {
	ctx, cancel := context.WithTimeout(c, defaultTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, `SELECT `+agreementColumns+` FROM payments WHERE id = $1 LIMIT 1`, id)
	if err != nil {
		return reconcile.Agreement{}, fmt.Errorf("s.pool.Query: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err = rows.Err(); err != nil {
			return reconcile.Agreement{}, fmt.Errorf("rows.Err: %w", err)
		}
		return reconcile.Agreement{}, ErrNotFound
	}
	a, err := AgreementFromRow(rows)
	if err != nil {
		return reconcile.Agreement{}, fmt.Errorf("AgreementFromRow: %w", err)
	}
	rows.Close()

	children, err := s.GetChildren(ctx, id)
	if err != nil {
		return reconcile.Agreement{}, fmt.Errorf("s.GetChildren: %w", err)
	}
	for _, child := range children {
		a.Beneficiaries = append(a.Beneficiaries, reconcile.BeneficiaryShare{
			Address: child.PayeeAddress,
			Amount:  child.MonthlyAmount,
		})
	}
	return a, nil
}

func (s *Store) GetChildren(ctx context.Context, parentID uuid.UUID) ([]reconcile.Agreement, error) {
	children, err := storage.AllFromRowsStream(storage.GetRowsStream[reconcile.Agreement](
		ctx,
		s.pool,
		AgreementFromRow,
		`SELECT `+agreementColumns+` FROM payments WHERE parent_id = $1 ORDER BY created_at, id`,
		parentID,
	))
	if err != nil {
		return nil, fmt.Errorf("storage.AllFromRowsStream: %w", err)
	}
	return children, nil
}

func (s *Store) GetOpenAgreements(ctx context.Context) <-chan storage.RowsStream[uuid.UUID] {
	return storage.GetRowsStream[uuid.UUID](
		ctx,
		s.pool,
		func(rows pgx.Rows) (uuid.UUID, error) {
			var id uuid.UUID
			err := rows.Scan(&id)
			return id, err
		},
		`SELECT id FROM payments
		 WHERE parent_id IS NULL
		 AND status IN ('pending', 'active')
		 ORDER BY updated_at`,
	)
}

// SetStatus never leaves a final status and never moves active back to pending.
func (s *Store) SetStatus(c context.Context, id uuid.UUID, status reconcile.PaymentStatus) (bool, error) {
	ctx, cancel := context.WithTimeout(c, defaultTimeout)
	defer cancel()

	tag, err := s.pool.Exec(
		ctx,
		`UPDATE payments SET status = $1::payment_status,
                             updated_at = now()
                         WHERE id = $2
                         AND status <> $1::payment_status
                         AND status NOT IN ('completed', 'cancelled', 'failed')
                         AND NOT (status = 'active' AND $1::payment_status = 'pending')`,
		string(status),
		id,
	)
	if err != nil {
		return false, fmt.Errorf("s.pool.Exec: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// InsertAgreement stores a record. A non-nil parentID makes it a batch child.
func (s *Store) InsertAgreement(c context.Context, a reconcile.Agreement, parentID *uuid.UUID) error {
	ctx, cancel := context.WithTimeout(c, defaultTimeout)
	defer cancel()

	monthly, err := json.Marshal(a.MonthlyStatuses)
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}
	if a.MonthlyStatuses == nil {
		monthly = []byte("{}")
	}
	var firstMonth *string
	if a.FirstMonthAmount != nil {
		v := a.FirstMonthAmount.String()
		firstMonth = &v
	}
	status := a.DBStatus
	if status == "" {
		status = string(reconcile.PaymentPending)
	}

	_, err = s.pool.Exec(ctx, `INSERT INTO payments (
                        id,
                        parent_id,
                        chain,
                        tx_hash,
                        contract_address,
                        payer_address,
                        payee_address,
                        token_symbol,
                        total_months,
                        executed_months,
                        first_payment_time,
                        monthly_amount,
                        first_month_amount,
                        is_first_month_custom,
                        cancellable,
                        status,
                        monthly_statuses
) VALUES (
          $1, $2, $3, NULLIF($4, ''), $5, $6, NULLIF($7, ''), $8, $9, $10, $11,
          $12::numeric, $13::numeric, $14, $15, $16::payment_status, $17::jsonb
)`,
		a.ID,
		parentID,
		a.Chain,
		a.TxHash,
		a.ContractAddress,
		a.PayerAddress,
		a.PayeeAddress,
		a.TokenSymbol,
		a.TotalMonths,
		a.ExecutedMonths,
		a.FirstPaymentTime,
		a.MonthlyAmount.String(),
		firstMonth,
		a.IsFirstMonthCustom,
		a.Cancellable,
		status,
		string(monthly),
	)
	if err != nil {
		return fmt.Errorf("s.pool.Exec: %w", err)
	}
	return nil
}

func AgreementFromRow(rows pgx.Rows) (reconcile.Agreement, error) {
	var (
		a          reconcile.Agreement
		monthly    string
		firstMonth *string
		statuses   []byte
	)
	err := rows.Scan(
		&a.ID,
		&a.Chain,
		&a.TxHash,
		&a.ContractAddress,
		&a.PayerAddress,
		&a.PayeeAddress,
		&a.TokenSymbol,
		&a.TotalMonths,
		&a.ExecutedMonths,
		&a.FirstPaymentTime,
		&monthly,
		&firstMonth,
		&a.IsFirstMonthCustom,
		&a.Cancellable,
		&a.DBStatus,
		&statuses,
		&a.UpdatedAt,
	)
	if err != nil {
		return reconcile.Agreement{}, fmt.Errorf("rows.Scan: %w", err)
	}

	a.MonthlyAmount, err = decimal.NewFromString(monthly)
	if err != nil {
		return reconcile.Agreement{}, fmt.Errorf("monthly_amount: %w", err)
	}
	if firstMonth != nil {
		v, er := decimal.NewFromString(*firstMonth)
		if er != nil {
			return reconcile.Agreement{}, fmt.Errorf("first_month_amount: %w", er)
		}
		a.FirstMonthAmount = &v
	}
	a.MonthlyStatuses = parseMonthlyStatuses(statuses)
	return a, nil
}

// parseMonthlyStatuses keeps string values only. Anything else is left for the
// resolver to treat as absent.
func parseMonthlyStatuses(raw []byte) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil
	}
	out := make(map[string]string, len(generic))
	for k, v := range generic {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
