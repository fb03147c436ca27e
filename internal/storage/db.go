package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/vultisig/schedpay/reconcile"
)

// AgreementStore is the persisted side of reconciliation.
type AgreementStore interface {
	// GetAgreement returns a top-level or child record. A batch parent carries its
	// beneficiaries.
	GetAgreement(ctx context.Context, id uuid.UUID) (reconcile.Agreement, error)
	GetChildren(ctx context.Context, parentID uuid.UUID) ([]reconcile.Agreement, error)
	// GetOpenAgreements streams top-level records whose status is not final.
	GetOpenAgreements(ctx context.Context) <-chan RowsStream[uuid.UUID]
	// SetStatus moves a record forward. It reports false when the record is
	// already in a final state or missing.
	SetStatus(ctx context.Context, id uuid.UUID, status reconcile.PaymentStatus) (bool, error)
}
