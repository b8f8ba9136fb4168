package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/guildkeeper/internal/common"
	"github.com/dmitrijs2005/guildkeeper/internal/dbx"
	"github.com/dmitrijs2005/guildkeeper/internal/server/models"
)

// SQLRepository stores credentials in the "credentials" table created by
// the embedded goose migrations.
type SQLRepository struct {
	db      *sql.DB
	dialect dbx.Dialect
}

func NewSQLRepository(db *sql.DB, dialect dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect}
}

func (r *SQLRepository) GetAll(ctx context.Context) (map[string]*models.Credential, error) {
	query := `SELECT user_id, username, password_hash FROM credentials`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*models.Credential)
	for rows.Next() {
		c := &models.Credential{}
		if err := rows.Scan(&c.UserID, &c.Username, &c.PasswordHash); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out[c.UserID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *SQLRepository) GetByID(ctx context.Context, userID string) (*models.Credential, error) {
	query := r.dialect.Rebind(
		`SELECT user_id, username, password_hash FROM credentials
		 WHERE user_id = ?`)

	c := &models.Credential{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&c.UserID, &c.Username, &c.PasswordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

// Create inserts the credential unless a row for the user id exists. The
// conflict is detected by the database, not by a prior read.
func (r *SQLRepository) Create(ctx context.Context, c *models.Credential) error {
	query := r.dialect.Rebind(
		`INSERT INTO credentials (user_id, username, password_hash)
		 VALUES (?, ?, ?)
		 ON CONFLICT (user_id) DO NOTHING`)

	res, err := r.db.ExecContext(ctx, query, c.UserID, c.Username, c.PasswordHash)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorAlreadyExists
	}
	return nil
}

func (r *SQLRepository) PutAll(ctx context.Context, creds map[string]*models.Credential) error {
	query := r.dialect.Rebind(
		`INSERT INTO credentials (user_id, username, password_hash)
		 VALUES (?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE
		 SET username = excluded.username, password_hash = excluded.password_hash`)

	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, c := range creds {
			if _, err := tx.ExecContext(ctx, query, c.UserID, c.Username, c.PasswordHash); err != nil {
				return fmt.Errorf("db error: %w", err)
			}
		}
		return nil
	})
}

func (r *SQLRepository) Update(ctx context.Context, c *models.Credential) error {
	query := r.dialect.Rebind(
		`UPDATE credentials SET username = ?, password_hash = ?
		 WHERE user_id = ?`)

	res, err := r.db.ExecContext(ctx, query, c.Username, c.PasswordHash, c.UserID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireAffected(res)
}

func (r *SQLRepository) Delete(ctx context.Context, userID string) error {
	query := r.dialect.Rebind(`DELETE FROM credentials WHERE user_id = ?`)

	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
