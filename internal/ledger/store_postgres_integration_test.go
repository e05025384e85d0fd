//go:build integration

package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"consentgate/internal/ledger"
	id "consentgate/pkg/domain"
	"consentgate/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *ledger.PostgresStore
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
	s.store = ledger.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "consent_ledger")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestPutIsUpsert() {
	ctx := context.Background()
	userID := id.UserID(uuid.New())
	termID := id.TermID(uuid.New())
	day1 := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)

	s.Require().NoError(s.store.Put(ctx, userID, termID, ledger.KindAgreed, day1))
	s.Require().NoError(s.store.Put(ctx, userID, termID, ledger.KindAgreed, day2))

	agreed, err := s.store.Entries(ctx, userID, ledger.KindAgreed)
	s.Require().NoError(err)
	s.Require().Len(agreed, 1)
	s.Equal(day2, agreed[termID])
}

func (s *PostgresStoreSuite) TestKindsAreIndependent() {
	ctx := context.Background()
	userID := id.UserID(uuid.New())
	termID := id.TermID(uuid.New())
	day := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

	s.Require().NoError(s.store.Put(ctx, userID, termID, ledger.KindAgreed, day))
	s.Require().NoError(s.store.Put(ctx, userID, termID, ledger.KindRevoked, day))
	s.Require().NoError(s.store.Delete(ctx, userID, termID, ledger.KindAgreed))

	agreed, err := s.store.Entries(ctx, userID, ledger.KindAgreed)
	s.Require().NoError(err)
	s.Empty(agreed)

	revoked, err := s.store.Entries(ctx, userID, ledger.KindRevoked)
	s.Require().NoError(err)
	s.Len(revoked, 1)
}

func (s *PostgresStoreSuite) TestScanRevocationsGroupsByUser() {
	ctx := context.Background()
	u1 := id.UserID(uuid.New())
	u2 := id.UserID(uuid.New())
	termA := id.TermID(uuid.New())
	termB := id.TermID(uuid.New())
	day1 := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)

	s.Require().NoError(s.store.Put(ctx, u1, termA, ledger.KindRevoked, day1))
	s.Require().NoError(s.store.Put(ctx, u1, termB, ledger.KindRevoked, day2))
	s.Require().NoError(s.store.Put(ctx, u2, termB, ledger.KindRevoked, day2))
	s.Require().NoError(s.store.Put(ctx, u2, termA, ledger.KindAgreed, day1))

	got := make(map[id.UserID]map[id.TermID]time.Time)
	err := s.store.ScanRevocations(ctx, func(userID id.UserID, revoked map[id.TermID]time.Time) error {
		got[userID] = revoked
		return nil
	})
	s.Require().NoError(err)
	s.Equal(map[id.UserID]map[id.TermID]time.Time{
		u1: {termA: day1, termB: day2},
		u2: {termB: day2},
	}, got)
}

func (s *PostgresStoreSuite) TestDeleteIsIdempotent() {
	ctx := context.Background()
	s.Require().NoError(s.store.Delete(ctx, id.UserID(uuid.New()), id.TermID(uuid.New()), ledger.KindAgreed))
}
