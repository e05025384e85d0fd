package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "consentgate/pkg/domain"
	"consentgate/pkg/platform/sentinel"
)

// PostgresDirectory reads the platform users table. The consent subsystem
// never writes users.
type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) Get(ctx context.Context, userID id.UserID) (User, error) {
	query := `SELECT id, title, email FROM users WHERE id = $1`
	var (
		u   User
		uid uuid.UUID
	)
	err := d.db.QueryRowContext(ctx, query, uuid.UUID(userID)).Scan(&uid, &u.Title, &u.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, sentinel.ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	u.ID = id.UserID(uid)
	return u, nil
}

func (d *PostgresDirectory) Scan(ctx context.Context, fn func(User) error) error {
	rows, err := d.db.QueryContext(ctx, `SELECT id, title, email FROM users ORDER BY id`)
	if err != nil {
		return fmt.Errorf("scan users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			u   User
			uid uuid.UUID
		)
		if err := rows.Scan(&uid, &u.Title, &u.Email); err != nil {
			return fmt.Errorf("scan user row: %w", err)
		}
		u.ID = id.UserID(uid)
		if err := fn(u); err != nil {
			return err
		}
	}
	return rows.Err()
}
