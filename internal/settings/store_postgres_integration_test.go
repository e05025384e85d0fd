//go:build integration

package settings_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"consentgate/internal/settings"
	id "consentgate/pkg/domain"
	"consentgate/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *settings.PostgresStore
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
	s.store = settings.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "site_settings")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestAbsentRowReadsAsZeroConfiguration() {
	cfg, err := s.store.Load(context.Background())
	s.Require().NoError(err)
	s.Equal(settings.Settings{}, cfg)
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	cfg := settings.Settings{
		DataController:       "Example Org",
		ConsentManagerIDs:    []id.UserID{id.UserID(uuid.New()), id.UserID(uuid.New())},
		EmailConsentManagers: true,
		TermsFolderID:        id.FolderID(uuid.New()),
	}

	s.Require().NoError(s.store.Save(ctx, cfg))

	got, err := s.store.Load(ctx)
	s.Require().NoError(err)
	s.Equal(cfg, got)
}

func (s *PostgresStoreSuite) TestSaveReplacesTheSingleton() {
	ctx := context.Background()
	s.Require().NoError(s.store.Save(ctx, settings.Settings{
		DataController:       "First Org",
		ConsentManagerIDs:    []id.UserID{id.UserID(uuid.New())},
		EmailConsentManagers: true,
	}))
	s.Require().NoError(s.store.Save(ctx, settings.Settings{DataController: "Second Org"}))

	got, err := s.store.Load(ctx)
	s.Require().NoError(err)
	s.Equal("Second Org", got.DataController)
	s.Empty(got.ConsentManagerIDs)
	s.False(got.EmailConsentManagers)

	var count int
	s.Require().NoError(s.postgres.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM site_settings`).Scan(&count))
	s.Equal(1, count)
}
