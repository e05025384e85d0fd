package terms

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "consentgate/pkg/domain"
	"consentgate/pkg/platform/sentinel"
)

// PostgresStore persists terms in the terms table.
//
// Enforced visibility maps onto the listing_visible column: terms hidden
// from listings resolve only under VisibilityBypass, which is what internal
// enforcement uses.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const termColumns = `id, title, body, revoke_body, collapse_text, lang,
	effective_date, state, check_password_on_revoke, check_typed_on_revoke,
	listing_visible`

func (s *PostgresStore) Save(ctx context.Context, term Term) error {
	query := `
		INSERT INTO terms (id, title, body, revoke_body, collapse_text, lang,
			effective_date, state, check_password_on_revoke, check_typed_on_revoke)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			body = EXCLUDED.body,
			revoke_body = EXCLUDED.revoke_body,
			collapse_text = EXCLUDED.collapse_text,
			lang = EXCLUDED.lang,
			effective_date = EXCLUDED.effective_date,
			state = EXCLUDED.state,
			check_password_on_revoke = EXCLUDED.check_password_on_revoke,
			check_typed_on_revoke = EXCLUDED.check_typed_on_revoke
	`
	var effective sql.NullTime
	if !term.EffectiveDate.IsZero() {
		effective = sql.NullTime{Time: DateOf(term.EffectiveDate), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(term.ID), term.Title, term.Body, term.RevokeBody,
		term.CollapseText, term.Lang, effective, string(term.State),
		term.CheckPasswordOnRevoke, term.CheckTypedOnRevoke,
	)
	if err != nil {
		return fmt.Errorf("save term: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, termID id.TermID, vis Visibility) (Term, error) {
	query := `SELECT ` + termColumns + ` FROM terms WHERE id = $1`
	row := s.db.QueryRowContext(ctx, query, uuid.UUID(termID))
	term, listingVisible, err := scanTerm(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Term{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Term{}, fmt.Errorf("get term: %w", err)
	}
	if vis == VisibilityEnforced && !listingVisible {
		return Term{}, sentinel.ErrNotFound
	}
	return term, nil
}

func (s *PostgresStore) ListByState(ctx context.Context, state WorkflowState, vis Visibility) ([]Term, error) {
	query := `SELECT ` + termColumns + ` FROM terms WHERE state = $1`
	if vis == VisibilityEnforced {
		query += ` AND listing_visible`
	}
	rows, err := s.db.QueryContext(ctx, query, string(state))
	if err != nil {
		return nil, fmt.Errorf("list terms: %w", err)
	}
	defer rows.Close()

	var out []Term
	for rows.Next() {
		term, _, err := scanTerm(rows)
		if err != nil {
			return nil, fmt.Errorf("scan term: %w", err)
		}
		out = append(out, term)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Delete(ctx context.Context, termID id.TermID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM terms WHERE id = $1`, uuid.UUID(termID))
	if err != nil {
		return fmt.Errorf("delete term: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTerm(row rowScanner) (Term, bool, error) {
	var (
		term           Term
		termID         uuid.UUID
		effective      sql.NullTime
		state          string
		listingVisible bool
	)
	err := row.Scan(&termID, &term.Title, &term.Body, &term.RevokeBody,
		&term.CollapseText, &term.Lang, &effective, &state,
		&term.CheckPasswordOnRevoke, &term.CheckTypedOnRevoke, &listingVisible)
	if err != nil {
		return Term{}, false, err
	}
	term.ID = id.TermID(termID)
	term.State = WorkflowState(state)
	if effective.Valid {
		term.EffectiveDate = DateOf(effective.Time.In(time.UTC))
	}
	return term, listingVisible, nil
}
