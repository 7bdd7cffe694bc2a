package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/akylbek/payment-system/callback-engine/internal/models"
)

type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) InitDB() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS payments (
			reference_id VARCHAR(255) PRIMARY KEY,
			transaction_id VARCHAR(255),
			amount_cents BIGINT NOT NULL,
			currency_code VARCHAR(3) NOT NULL,
			status VARCHAR(50) NOT NULL,
			processor VARCHAR(100) NOT NULL,
			completion_signalled BOOLEAN NOT NULL DEFAULT FALSE,
			properties JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_status ON payments(status)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_transaction_id ON payments(transaction_id)`,
	}

	for _, query := range queries {
		if _, err := r.db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}

func (r *PaymentRepository) Create(ctx context.Context, p *models.Payment) error {
	props, err := json.Marshal(propertiesOrEmpty(p.Properties))
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO payments (reference_id, transaction_id, amount_cents, currency_code, status, processor, properties)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7)
		ON CONFLICT (reference_id) DO NOTHING
	`, p.ReferenceID, p.TransactionID, p.AmountCents, p.CurrencyCode, p.Status, p.Processor, props)
	return err
}

func (r *PaymentRepository) GetByReferenceID(ctx context.Context, referenceID string) (*models.Payment, error) {
	var (
		p             models.Payment
		transactionID sql.NullString
		props         []byte
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT reference_id, transaction_id, amount_cents, currency_code, status, processor, completion_signalled, properties, created_at, updated_at
		FROM payments WHERE reference_id = $1
	`, referenceID).Scan(
		&p.ReferenceID, &transactionID, &p.AmountCents, &p.CurrencyCode,
		&p.Status, &p.Processor, &p.CompletionSignalled, &props,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.TransactionID = transactionID.String
	if err := json.Unmarshal(props, &p.Properties); err != nil {
		return nil, err
	}
	return &p, nil
}

// TransitionStatus is the persistence half of the idempotency guard: the
// UPDATE only matches while the stored status still equals from, so of two
// concurrent duplicate deliveries exactly one sees a row count of 1.
func (r *PaymentRepository) TransitionStatus(ctx context.Context, referenceID string, from, to models.PaymentStatus) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE payments
		SET status = $1, updated_at = NOW()
		WHERE reference_id = $2 AND status = $3
	`, to, referenceID, from)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *PaymentRepository) SetTransactionID(ctx context.Context, referenceID, transactionID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE payments SET transaction_id = $1, updated_at = NOW()
		WHERE reference_id = $2 AND transaction_id IS NULL
	`, transactionID, referenceID)
	return err
}

func (r *PaymentRepository) SaveProperties(ctx context.Context, referenceID string, properties map[string]string) error {
	props, err := json.Marshal(propertiesOrEmpty(properties))
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE payments SET properties = properties || $1::jsonb, updated_at = NOW()
		WHERE reference_id = $2
	`, props, referenceID)
	return err
}

func (r *PaymentRepository) MarkCompletionSignalled(ctx context.Context, referenceID string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE payments SET completion_signalled = TRUE, updated_at = NOW()
		WHERE reference_id = $1 AND completion_signalled = FALSE
	`, referenceID)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func propertiesOrEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
