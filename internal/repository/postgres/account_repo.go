package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"saot-service/internal/domain/account"
	xerrors "saot-service/internal/pkg/errors"
)

type AccountRepository struct {
	db *pgxpool.Pool
}

func NewAccountRepository(db *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `
	id, name, email, telegram_username, password_hash, avatar_url, role,
	enrolled_courses, paid_courses, progress, phone, bio, location,
	created_at, updated_at
`

func (r *AccountRepository) scanAccount(row pgx.Row) (*account.Account, error) {
	var acc account.Account
	var progress []byte
	err := row.Scan(
		&acc.ID, &acc.Name, &acc.Email, &acc.TelegramUsername, &acc.PasswordHash,
		&acc.AvatarURL, &acc.Role,
		&acc.EnrolledCourses, &acc.PaidCourses, &progress,
		&acc.Phone, &acc.Bio, &acc.Location,
		&acc.CreatedAt, &acc.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}
	if len(progress) > 0 {
		if err := json.Unmarshal(progress, &acc.Progress); err != nil {
			return nil, fmt.Errorf("failed to decode progress: %w", err)
		}
	}
	return &acc, nil
}

// ========== Create ==========

func (r *AccountRepository) Create(ctx context.Context, acc *account.Account) error {
	progress, err := json.Marshal(acc.Progress)
	if err != nil {
		return fmt.Errorf("failed to encode progress: %w", err)
	}

	query := `
		INSERT INTO accounts (
			id, name, email, telegram_username, password_hash, avatar_url, role,
			enrolled_courses, paid_courses, progress, phone, bio, location,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,NOW(),NOW())
		RETURNING created_at, updated_at
	`
	err = r.db.QueryRow(ctx, query,
		acc.ID, acc.Name, acc.Email, acc.TelegramUsername, acc.PasswordHash,
		acc.AvatarURL, acc.Role,
		acc.EnrolledCourses, acc.PaidCourses, progress,
		acc.Phone, acc.Bio, acc.Location,
	).Scan(&acc.CreatedAt, &acc.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return xerrors.ErrDuplicateAccount
	}
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// ========== Lookup ==========

func (r *AccountRepository) FindByIdentifier(ctx context.Context, identifier string) (*account.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE LOWER(email) = LOWER($1) OR LOWER(telegram_username) = LOWER($1)
	`
	return r.scanAccount(r.db.QueryRow(ctx, query, strings.TrimSpace(identifier)))
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*account.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE id = $1
	`
	return r.scanAccount(r.db.QueryRow(ctx, query, id))
}

// ========== Update ==========

func (r *AccountRepository) Update(ctx context.Context, acc *account.Account) error {
	progress, err := json.Marshal(acc.Progress)
	if err != nil {
		return fmt.Errorf("failed to encode progress: %w", err)
	}

	query := `
		UPDATE accounts SET
			name = $2, avatar_url = $3, phone = $4, bio = $5, location = $6,
			progress = $7, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query,
		acc.ID, acc.Name, acc.AvatarURL, acc.Phone, acc.Bio, acc.Location, progress,
	)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

func (r *AccountRepository) SetEntitlements(ctx context.Context, id string, enrolled, paid []string) error {
	query := `
		UPDATE accounts SET
			enrolled_courses = $2, paid_courses = $3, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, id, enrolled, paid)
	if err != nil {
		return fmt.Errorf("failed to set entitlements: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}
