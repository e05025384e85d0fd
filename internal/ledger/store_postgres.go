package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "consentgate/pkg/domain"
)

// PostgresStore persists ledger entries in the consent_ledger table keyed by
// (user_id, term_id, kind).
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Put(ctx context.Context, userID id.UserID, termID id.TermID, kind Kind, date time.Time) error {
	query := `
		INSERT INTO consent_ledger (user_id, term_id, kind, recorded_on)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, term_id, kind) DO UPDATE SET recorded_on = EXCLUDED.recorded_on
	`
	_, err := s.db.ExecContext(ctx, query, uuid.UUID(userID), uuid.UUID(termID), string(kind), date)
	if err != nil {
		return fmt.Errorf("put ledger entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, userID id.UserID, termID id.TermID, kind Kind) error {
	query := `DELETE FROM consent_ledger WHERE user_id = $1 AND term_id = $2 AND kind = $3`
	if _, err := s.db.ExecContext(ctx, query, uuid.UUID(userID), uuid.UUID(termID), string(kind)); err != nil {
		return fmt.Errorf("delete ledger entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) Entries(ctx context.Context, userID id.UserID, kind Kind) (map[id.TermID]time.Time, error) {
	query := `SELECT term_id, recorded_on FROM consent_ledger WHERE user_id = $1 AND kind = $2`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(userID), string(kind))
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	out := make(map[id.TermID]time.Time)
	for rows.Next() {
		var (
			termID uuid.UUID
			date   time.Time
		)
		if err := rows.Scan(&termID, &date); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		out[id.TermID(termID)] = date.UTC()
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountByTerm(ctx context.Context, kind Kind) (map[id.TermID]int, error) {
	query := `SELECT term_id, COUNT(*) FROM consent_ledger WHERE kind = $1 GROUP BY term_id`
	rows, err := s.db.QueryContext(ctx, query, string(kind))
	if err != nil {
		return nil, fmt.Errorf("count ledger entries: %w", err)
	}
	defer rows.Close()

	out := make(map[id.TermID]int)
	for rows.Next() {
		var (
			termID uuid.UUID
			count  int
		)
		if err := rows.Scan(&termID, &count); err != nil {
			return nil, fmt.Errorf("scan ledger count: %w", err)
		}
		out[id.TermID(termID)] = count
	}
	return out, rows.Err()
}

func (s *PostgresStore) ScanRevocations(ctx context.Context, fn func(userID id.UserID, revoked map[id.TermID]time.Time) error) error {
	// Ordered by user so each user's rows arrive contiguously and can be
	// flushed as one map without buffering the whole table.
	query := `
		SELECT user_id, term_id, recorded_on
		FROM consent_ledger
		WHERE kind = $1
		ORDER BY user_id
	`
	rows, err := s.db.QueryContext(ctx, query, string(KindRevoked))
	if err != nil {
		return fmt.Errorf("scan revocations: %w", err)
	}
	defer rows.Close()

	var (
		current  uuid.UUID
		haveUser bool
		revoked  map[id.TermID]time.Time
	)
	flush := func() error {
		if !haveUser {
			return nil
		}
		return fn(id.UserID(current), revoked)
	}
	for rows.Next() {
		var (
			userID uuid.UUID
			termID uuid.UUID
			date   time.Time
		)
		if err := rows.Scan(&userID, &termID, &date); err != nil {
			return fmt.Errorf("scan revocation row: %w", err)
		}
		if !haveUser || userID != current {
			if err := flush(); err != nil {
				return err
			}
			current = userID
			haveUser = true
			revoked = make(map[id.TermID]time.Time)
		}
		revoked[id.TermID(termID)] = date.UTC()
	}
	if err := rows.Err(); err != nil {
		return err
	}
	return flush()
}
