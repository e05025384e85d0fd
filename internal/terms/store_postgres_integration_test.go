//go:build integration

package terms_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"consentgate/internal/terms"
	id "consentgate/pkg/domain"
	"consentgate/pkg/platform/sentinel"
	"consentgate/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *terms.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = terms.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "terms")
	s.Require().NoError(err)
}

func newTerm(title string) terms.Term {
	return terms.Term{
		ID:            id.TermID(uuid.New()),
		Title:         title,
		Body:          "<p>body</p>",
		State:         terms.StateEnabled,
		EffectiveDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (s *PostgresStoreSuite) TestSaveAndGetRoundTrip() {
	ctx := context.Background()
	term := newTerm("Privacy policy")
	term.RevokeBody = "<p>consequences</p>"
	term.CollapseText = true
	term.Lang = "sv"
	term.CheckTypedOnRevoke = true

	s.Require().NoError(s.store.Save(ctx, term))

	got, err := s.store.Get(ctx, term.ID, terms.VisibilityBypass)
	s.Require().NoError(err)
	s.Equal(term, got)
}

func (s *PostgresStoreSuite) TestSaveIsUpsert() {
	ctx := context.Background()
	term := newTerm("Privacy policy")
	s.Require().NoError(s.store.Save(ctx, term))

	term.State = terms.StateDisabled
	term.Title = "Privacy policy v2"
	s.Require().NoError(s.store.Save(ctx, term))

	got, err := s.store.Get(ctx, term.ID, terms.VisibilityBypass)
	s.Require().NoError(err)
	s.Equal(terms.StateDisabled, got.State)
	s.Equal("Privacy policy v2", got.Title)
}

func (s *PostgresStoreSuite) TestZeroEffectiveDateRoundTrips() {
	ctx := context.Background()
	term := newTerm("No date yet")
	term.EffectiveDate = time.Time{}

	s.Require().NoError(s.store.Save(ctx, term))

	got, err := s.store.Get(ctx, term.ID, terms.VisibilityBypass)
	s.Require().NoError(err)
	s.True(got.EffectiveDate.IsZero())
	s.False(got.IsActive(time.Now()))
}

func (s *PostgresStoreSuite) TestEnforcedVisibilityHidesUnlistedTerms() {
	ctx := context.Background()
	term := newTerm("Hidden from listings")
	s.Require().NoError(s.store.Save(ctx, term))

	_, err := s.postgres.DB.ExecContext(ctx,
		`UPDATE terms SET listing_visible = FALSE WHERE id = $1`, uuid.UUID(term.ID))
	s.Require().NoError(err)

	_, err = s.store.Get(ctx, term.ID, terms.VisibilityEnforced)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	got, err := s.store.Get(ctx, term.ID, terms.VisibilityBypass)
	s.Require().NoError(err)
	s.Equal(term.ID, got.ID)

	listed, err := s.store.ListByState(ctx, terms.StateEnabled, terms.VisibilityEnforced)
	s.Require().NoError(err)
	s.Empty(listed)

	all, err := s.store.ListByState(ctx, terms.StateEnabled, terms.VisibilityBypass)
	s.Require().NoError(err)
	s.Len(all, 1)
}

func (s *PostgresStoreSuite) TestDelete() {
	ctx := context.Background()
	term := newTerm("Short-lived")
	s.Require().NoError(s.store.Save(ctx, term))

	s.Require().NoError(s.store.Delete(ctx, term.ID))
	_, err := s.store.Get(ctx, term.ID, terms.VisibilityBypass)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	s.Require().ErrorIs(s.store.Delete(ctx, term.ID), sentinel.ErrNotFound)
}
