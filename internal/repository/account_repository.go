package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/maheshrc27/instaflow/internal/models"
	"github.com/maheshrc27/instaflow/pkg/utils"
)

type AccountRepository interface {
	Create(ctx context.Context, a *models.Account) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Account, error)
	List(ctx context.Context) ([]*models.Account, error)
}

// accountRepository stores session bundles encrypted with the service secret.
type accountRepository struct {
	db  *sql.DB
	key []byte
}

func NewAccountRepository(db *sql.DB, secretKey string) AccountRepository {
	return &accountRepository{db: db, key: []byte(secretKey)}
}

func (r *accountRepository) Create(ctx context.Context, a *models.Account) (int64, error) {
	query := `
		INSERT INTO instagram_accounts (username, session_data, profile_pic, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	sealed, err := r.seal(a.Session)
	if err != nil {
		return 0, err
	}

	err = r.db.QueryRowContext(ctx, query, a.Username, sealed, nullString(a.ProfilePic), a.IsActive).
		Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return a.ID, nil
}

func (r *accountRepository) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	query := `SELECT id, username, session_data, profile_pic, is_active, created_at FROM instagram_accounts WHERE id = $1`

	var (
		a          models.Account
		sealed     sql.NullString
		profilePic sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(&a.ID, &a.Username, &sealed, &profilePic, &a.IsActive, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	a.ProfilePic = profilePic.String

	session, err := r.open(sealed.String)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt session for account %d: %w", id, err)
	}
	a.Session = session
	return &a, nil
}

// List returns accounts without their session data.
func (r *accountRepository) List(ctx context.Context) ([]*models.Account, error) {
	query := `SELECT id, username, profile_pic, is_active, created_at FROM instagram_accounts ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		var (
			a          models.Account
			profilePic sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.Username, &profilePic, &a.IsActive, &a.CreatedAt); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		a.ProfilePic = profilePic.String
		accounts = append(accounts, &a)
	}
	return accounts, rows.Err()
}

func (r *accountRepository) seal(session models.Session) (sql.NullString, error) {
	if len(session) == 0 {
		return sql.NullString{}, nil
	}
	plain, err := json.Marshal(session)
	if err != nil {
		return sql.NullString{}, err
	}
	sealed, err := utils.Encrypt(plain, r.key)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encrypt session: %w", err)
	}
	return sql.NullString{String: sealed, Valid: true}, nil
}

func (r *accountRepository) open(sealed string) (models.Session, error) {
	if sealed == "" {
		return models.Session{}, nil
	}
	plain, err := utils.Decrypt(sealed, r.key)
	if err != nil {
		return nil, err
	}
	var session models.Session
	if err := json.Unmarshal([]byte(plain), &session); err != nil {
		return nil, err
	}
	return session, nil
}
