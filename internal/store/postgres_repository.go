/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It contains all the necessary SQL queries to interact with the database tables
 * related to recipients, transfers and transfer recipient line items.
 *
 * Concurrency-sensitive writes are expressed as single conditional UPDATE
 * statements so that competing update channels (initial provider response,
 * webhook, reconciliation sweeps) can race safely: a terminal recipient status
 * is sticky, and re-persisting an unchanged transfer status is a no-op.
 *
 * @dependencies
 * - context, time, errors: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shonubijerry/blacktax/internal/domain"
)

var (
	ErrRecipientNotFound         = errors.New("recipient not found")
	ErrDuplicateEmail            = errors.New("recipient with this email already exists")
	ErrTransferNotFound          = errors.New("transfer not found")
	ErrTransferRecipientNotFound = errors.New("transfer recipient not found")
	ErrDuplicateReference        = errors.New("transfer reference already exists")
)

const uniqueViolation = "23505"

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == uniqueViolation && strings.Contains(pgErr.ConstraintName, constraint)
}

// CreateRecipient inserts a new recipient row. The caller assigns the ID.
func (r *PostgresRepository) CreateRecipient(ctx context.Context, recipient *domain.Recipient) error {
	query := `
		INSERT INTO recipients (id, name, email, phone, account_number, bank_code, bank_name, is_active)
		VALUES ($1, $2, lower(btrim($3)), $4, $5, $6, $7, TRUE)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		recipient.ID,
		recipient.Name,
		recipient.Email,
		recipient.Phone,
		recipient.AccountNumber,
		recipient.BankCode,
		recipient.BankName,
	).Scan(&recipient.CreatedAt, &recipient.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "email") {
			return ErrDuplicateEmail
		}
		return err
	}
	recipient.IsActive = true
	return nil
}

// FindRecipientByID retrieves an active recipient by its ID.
func (r *PostgresRepository) FindRecipientByID(ctx context.Context, recipientID uuid.UUID) (*domain.Recipient, error) {
	var recipient domain.Recipient
	query := `
		SELECT id, name, email, phone, account_number, bank_code, bank_name,
		       provider_recipient_code, is_active, created_at, updated_at
		FROM recipients
		WHERE id = $1 AND is_active
	`
	err := r.db.QueryRow(ctx, query, recipientID).Scan(
		&recipient.ID,
		&recipient.Name,
		&recipient.Email,
		&recipient.Phone,
		&recipient.AccountNumber,
		&recipient.BankCode,
		&recipient.BankName,
		&recipient.ProviderRecipientCode,
		&recipient.IsActive,
		&recipient.CreatedAt,
		&recipient.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrRecipientNotFound
		}
		return nil, err
	}
	return &recipient, nil
}

// FindActiveRecipientsByIDs returns the active recipients among the given IDs.
// Callers compare the result length against the request to detect unknown or
// inactive recipients.
func (r *PostgresRepository) FindActiveRecipientsByIDs(ctx context.Context, recipientIDs []uuid.UUID) ([]domain.Recipient, error) {
	query := `
		SELECT id, name, email, phone, account_number, bank_code, bank_name,
		       provider_recipient_code, is_active, created_at, updated_at
		FROM recipients
		WHERE id = ANY($1) AND is_active
	`
	rows, err := r.db.Query(ctx, query, recipientIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recipients []domain.Recipient
	for rows.Next() {
		var recipient domain.Recipient
		if err := rows.Scan(
			&recipient.ID,
			&recipient.Name,
			&recipient.Email,
			&recipient.Phone,
			&recipient.AccountNumber,
			&recipient.BankCode,
			&recipient.BankName,
			&recipient.ProviderRecipientCode,
			&recipient.IsActive,
			&recipient.CreatedAt,
			&recipient.UpdatedAt,
		); err != nil {
			return nil, err
		}
		recipients = append(recipients, recipient)
	}
	return recipients, rows.Err()
}

// ListRecipients returns a page of active recipients plus the total count.
func (r *PostgresRepository) ListRecipients(ctx context.Context, opts domain.RecipientListOptions) ([]domain.Recipient, int, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit < 1 {
		opts.Limit = 20
	}
	search := "%" + strings.TrimSpace(opts.Search) + "%"

	var total int
	countQuery := `
		SELECT count(*) FROM recipients
		WHERE is_active AND (name ILIKE $1 OR email ILIKE $1)
	`
	if err := r.db.QueryRow(ctx, countQuery, search).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, name, email, phone, account_number, bank_code, bank_name,
		       provider_recipient_code, is_active, created_at, updated_at
		FROM recipients
		WHERE is_active AND (name ILIKE $1 OR email ILIKE $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, search, opts.Limit, (opts.Page-1)*opts.Limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var recipients []domain.Recipient
	for rows.Next() {
		var recipient domain.Recipient
		if err := rows.Scan(
			&recipient.ID,
			&recipient.Name,
			&recipient.Email,
			&recipient.Phone,
			&recipient.AccountNumber,
			&recipient.BankCode,
			&recipient.BankName,
			&recipient.ProviderRecipientCode,
			&recipient.IsActive,
			&recipient.CreatedAt,
			&recipient.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		recipients = append(recipients, recipient)
	}
	return recipients, total, rows.Err()
}

// UpdateRecipient persists the full mutable field set of an active recipient,
// including a possibly cleared provider recipient code.
func (r *PostgresRepository) UpdateRecipient(ctx context.Context, recipient *domain.Recipient) error {
	query := `
		UPDATE recipients
		SET name = $2, email = lower(btrim($3)), phone = $4, account_number = $5,
		    bank_code = $6, bank_name = $7, provider_recipient_code = $8, updated_at = NOW()
		WHERE id = $1 AND is_active
	`
	result, err := r.db.Exec(ctx, query,
		recipient.ID,
		recipient.Name,
		recipient.Email,
		recipient.Phone,
		recipient.AccountNumber,
		recipient.BankCode,
		recipient.BankName,
		recipient.ProviderRecipientCode,
	)
	if err != nil {
		if isUniqueViolation(err, "email") {
			return ErrDuplicateEmail
		}
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrRecipientNotFound
	}
	return nil
}

// DeactivateRecipient soft-deletes a recipient. Transfer history keeps
// referencing the row.
func (r *PostgresRepository) DeactivateRecipient(ctx context.Context, recipientID uuid.UUID) error {
	query := `UPDATE recipients SET is_active = FALSE, updated_at = NOW() WHERE id = $1 AND is_active`
	result, err := r.db.Exec(ctx, query, recipientID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrRecipientNotFound
	}
	return nil
}

// SetProviderRecipientCode caches the provider-issued recipient handle.
func (r *PostgresRepository) SetProviderRecipientCode(ctx context.Context, recipientID uuid.UUID, code string) error {
	query := `UPDATE recipients SET provider_recipient_code = $2, updated_at = NOW() WHERE id = $1`
	result, err := r.db.Exec(ctx, query, recipientID, code)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrRecipientNotFound
	}
	return nil
}

// CreateTransfer inserts the aggregate row in its initial PENDING state.
func (r *PostgresRepository) CreateTransfer(ctx context.Context, transfer *domain.Transfer) error {
	query := `
		INSERT INTO transfers (id, reference, total_amount, status, mode, callback_url, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		transfer.ID,
		transfer.Reference,
		transfer.TotalAmount,
		transfer.Status,
		transfer.Mode,
		transfer.CallbackURL,
		transfer.Description,
	).Scan(&transfer.CreatedAt, &transfer.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "reference") {
			return ErrDuplicateReference
		}
		return err
	}
	return nil
}

// CreateTransferRecipient inserts one recipient line item with its initial outcome.
func (r *PostgresRepository) CreateTransferRecipient(ctx context.Context, item *domain.TransferRecipient) error {
	query := `
		INSERT INTO transfer_recipients
			(id, transfer_id, recipient_id, amount, status, provider_transfer_code,
			 provider_reference, transferred_at, failure_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`
	return r.db.QueryRow(ctx, query,
		item.ID,
		item.TransferID,
		item.RecipientID,
		item.Amount,
		item.Status,
		item.ProviderTransferCode,
		item.ProviderReference,
		item.TransferredAt,
		item.FailureReason,
	).Scan(&item.CreatedAt, &item.UpdatedAt)
}

func (r *PostgresRepository) scanTransfer(row pgx.Row, transfer *domain.Transfer) error {
	return row.Scan(
		&transfer.ID,
		&transfer.Reference,
		&transfer.TotalAmount,
		&transfer.Status,
		&transfer.Mode,
		&transfer.CallbackURL,
		&transfer.Description,
		&transfer.ProviderBatchCode,
		&transfer.CreatedAt,
		&transfer.UpdatedAt,
	)
}

const transferColumns = `id, reference, total_amount, status, mode, callback_url, description, provider_batch_code, created_at, updated_at`

// FindTransferByID loads a transfer with all its recipient line items and
// their recipient identities.
func (r *PostgresRepository) FindTransferByID(ctx context.Context, transferID uuid.UUID) (*domain.TransferWithRecipients, error) {
	var result domain.TransferWithRecipients
	query := fmt.Sprintf(`SELECT %s FROM transfers WHERE id = $1`, transferColumns)
	if err := r.scanTransfer(r.db.QueryRow(ctx, query, transferID), &result.Transfer); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTransferNotFound
		}
		return nil, err
	}

	items, err := r.loadTransferRecipients(ctx, []uuid.UUID{transferID})
	if err != nil {
		return nil, err
	}
	result.Recipients = items[transferID]
	return &result, nil
}

// loadTransferRecipients fetches the line items (with recipient identity) for
// a set of transfers in one query, grouped by transfer ID.
func (r *PostgresRepository) loadTransferRecipients(ctx context.Context, transferIDs []uuid.UUID) (map[uuid.UUID][]domain.TransferRecipient, error) {
	query := `
		SELECT tr.id, tr.transfer_id, tr.recipient_id, tr.amount, tr.status,
		       tr.provider_transfer_code, tr.provider_reference, tr.transferred_at,
		       tr.failure_reason, tr.created_at, tr.updated_at,
		       rec.name, rec.email
		FROM transfer_recipients tr
		JOIN recipients rec ON rec.id = tr.recipient_id
		WHERE tr.transfer_id = ANY($1)
		ORDER BY tr.created_at ASC
	`
	rows, err := r.db.Query(ctx, query, transferIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	grouped := make(map[uuid.UUID][]domain.TransferRecipient)
	for rows.Next() {
		var item domain.TransferRecipient
		var summary domain.RecipientSummary
		if err := rows.Scan(
			&item.ID,
			&item.TransferID,
			&item.RecipientID,
			&item.Amount,
			&item.Status,
			&item.ProviderTransferCode,
			&item.ProviderReference,
			&item.TransferredAt,
			&item.FailureReason,
			&item.CreatedAt,
			&item.UpdatedAt,
			&summary.Name,
			&summary.Email,
		); err != nil {
			return nil, err
		}
		summary.ID = item.RecipientID
		item.Recipient = &summary
		grouped[item.TransferID] = append(grouped[item.TransferID], item)
	}
	return grouped, rows.Err()
}

// ListTransfers returns a page of transfers (newest first) with nested
// recipient outcomes, plus the total count for the filter.
func (r *PostgresRepository) ListTransfers(ctx context.Context, opts domain.TransferListOptions) ([]domain.TransferWithRecipients, int, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit < 1 {
		opts.Limit = 20
	}

	var (
		args       []interface{}
		conditions []string
	)
	if opts.Status != nil {
		args = append(args, *opts.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM transfers %s`, where), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, opts.Limit, (opts.Page-1)*opts.Limit)
	query := fmt.Sprintf(`
		SELECT %s FROM transfers %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, transferColumns, where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var transfers []domain.TransferWithRecipients
	var ids []uuid.UUID
	for rows.Next() {
		var transfer domain.TransferWithRecipients
		if err := r.scanTransfer(rows, &transfer.Transfer); err != nil {
			return nil, 0, err
		}
		transfers = append(transfers, transfer)
		ids = append(ids, transfer.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if len(ids) > 0 {
		grouped, err := r.loadTransferRecipients(ctx, ids)
		if err != nil {
			return nil, 0, err
		}
		for i := range transfers {
			transfers[i].Recipients = grouped[transfers[i].ID]
		}
	}
	return transfers, total, nil
}

// SetTransferBatchCode persists the provider batch code returned by a bulk
// transfer call, so the wide sweep can resolve the whole batch in one lookup.
func (r *PostgresRepository) SetTransferBatchCode(ctx context.Context, transferID uuid.UUID, batchCode string) error {
	query := `UPDATE transfers SET provider_batch_code = $2, updated_at = NOW() WHERE id = $1`
	result, err := r.db.Exec(ctx, query, transferID, batchCode)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrTransferNotFound
	}
	return nil
}

// FindTransferRecipients loads all line items of a transfer without recipient identity.
func (r *PostgresRepository) FindTransferRecipients(ctx context.Context, transferID uuid.UUID) ([]domain.TransferRecipient, error) {
	query := `
		SELECT id, transfer_id, recipient_id, amount, status, provider_transfer_code,
		       provider_reference, transferred_at, failure_reason, created_at, updated_at
		FROM transfer_recipients
		WHERE transfer_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.db.Query(ctx, query, transferID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.TransferRecipient
	for rows.Next() {
		var item domain.TransferRecipient
		if err := rows.Scan(
			&item.ID,
			&item.TransferID,
			&item.RecipientID,
			&item.Amount,
			&item.Status,
			&item.ProviderTransferCode,
			&item.ProviderReference,
			&item.TransferredAt,
			&item.FailureReason,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// FindTransferRecipientByProviderKeys locates a line item by the provider
// transfer code first, falling back to the correlation reference. At least one
// key must be non-empty.
func (r *PostgresRepository) FindTransferRecipientByProviderKeys(ctx context.Context, transferCode, providerReference string) (*domain.TransferRecipient, error) {
	lookup := func(query, key string) (*domain.TransferRecipient, error) {
		var item domain.TransferRecipient
		err := r.db.QueryRow(ctx, query, key).Scan(
			&item.ID,
			&item.TransferID,
			&item.RecipientID,
			&item.Amount,
			&item.Status,
			&item.ProviderTransferCode,
			&item.ProviderReference,
			&item.TransferredAt,
			&item.FailureReason,
			&item.CreatedAt,
			&item.UpdatedAt,
		)
		if err != nil {
			if err == pgx.ErrNoRows {
				return nil, ErrTransferRecipientNotFound
			}
			return nil, err
		}
		return &item, nil
	}

	const columns = `id, transfer_id, recipient_id, amount, status, provider_transfer_code,
		provider_reference, transferred_at, failure_reason, created_at, updated_at`

	if strings.TrimSpace(transferCode) != "" {
		item, err := lookup(fmt.Sprintf(`SELECT %s FROM transfer_recipients WHERE provider_transfer_code = $1`, columns), transferCode)
		if err == nil || !errors.Is(err, ErrTransferRecipientNotFound) {
			return item, err
		}
	}
	if strings.TrimSpace(providerReference) != "" {
		return lookup(fmt.Sprintf(`SELECT %s FROM transfer_recipients WHERE provider_reference = $1`, columns), providerReference)
	}
	return nil, ErrTransferRecipientNotFound
}

// ApplyRecipientStatus performs the atomic read-modify-write for a recipient
// status change. Terminal states are sticky: the row is only touched while its
// current status is still PENDING or PROCESSING, and a same-status write is
// skipped to avoid timestamp churn.
func (r *PostgresRepository) ApplyRecipientStatus(ctx context.Context, itemID uuid.UUID, update domain.StatusUpdate) (bool, error) {
	query := `
		UPDATE transfer_recipients
		SET status = $2,
		    transferred_at = CASE WHEN $2 = 'SUCCESS' THEN NOW() ELSE transferred_at END,
		    failure_reason = CASE WHEN $2 = 'FAILED' THEN $3 ELSE failure_reason END,
		    updated_at = NOW()
		WHERE id = $1
		  AND status IN ('PENDING', 'PROCESSING')
		  AND status <> $2
	`
	result, err := r.db.Exec(ctx, query, itemID, update.Status, update.FailureReason)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

// UpdateTransferStatus persists the aggregate status. Writes are skipped when
// the status is unchanged or already terminal, so the aggregator stays
// idempotent and terminal transfers never move backward.
func (r *PostgresRepository) UpdateTransferStatus(ctx context.Context, transferID uuid.UUID, status domain.Status) (bool, error) {
	query := `
		UPDATE transfers
		SET status = $2, updated_at = NOW()
		WHERE id = $1
		  AND status <> $2
		  AND status NOT IN ('SUCCESS', 'FAILED')
	`
	result, err := r.db.Exec(ctx, query, transferID, status)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

// FindSweepCandidates returns non-terminal transfers created after the cutoff,
// each carrying only the recipient rows that still need a provider lookup.
func (r *PostgresRepository) FindSweepCandidates(ctx context.Context, createdAfter time.Time) ([]domain.TransferWithRecipients, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM transfers
		WHERE status IN ('PENDING', 'PROCESSING') AND created_at >= $1
		ORDER BY created_at ASC
	`, transferColumns)

	rows, err := r.db.Query(ctx, query, createdAfter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transfers []domain.TransferWithRecipients
	var ids []uuid.UUID
	for rows.Next() {
		var transfer domain.TransferWithRecipients
		if err := r.scanTransfer(rows, &transfer.Transfer); err != nil {
			return nil, err
		}
		transfers = append(transfers, transfer)
		ids = append(ids, transfer.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return transfers, nil
	}

	itemQuery := `
		SELECT id, transfer_id, recipient_id, amount, status, provider_transfer_code,
		       provider_reference, transferred_at, failure_reason, created_at, updated_at
		FROM transfer_recipients
		WHERE transfer_id = ANY($1) AND status IN ('PENDING', 'PROCESSING')
		ORDER BY created_at ASC
	`
	itemRows, err := r.db.Query(ctx, itemQuery, ids)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()

	grouped := make(map[uuid.UUID][]domain.TransferRecipient)
	for itemRows.Next() {
		var item domain.TransferRecipient
		if err := itemRows.Scan(
			&item.ID,
			&item.TransferID,
			&item.RecipientID,
			&item.Amount,
			&item.Status,
			&item.ProviderTransferCode,
			&item.ProviderReference,
			&item.TransferredAt,
			&item.FailureReason,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		grouped[item.TransferID] = append(grouped[item.TransferID], item)
	}
	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	for i := range transfers {
		transfers[i].Recipients = grouped[transfers[i].ID]
	}
	return transfers, nil
}
