package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	id "consentgate/pkg/domain"
)

// PostgresStore persists the singleton as the single row of site_settings.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Load(ctx context.Context) (Settings, error) {
	query := `
		SELECT data_controller, consent_manager_ids, email_consent_managers, terms_folder_id
		FROM site_settings WHERE singleton
	`
	var (
		out        Settings
		managerIDs []uuid.UUID
		folderID   uuid.NullUUID
	)
	err := s.db.QueryRowContext(ctx, query).Scan(
		&out.DataController, pq.Array(&managerIDs), &out.EmailConsentManagers, &folderID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		// Lazily created: absence reads as the zero configuration.
		return Settings{}, nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}
	for _, m := range managerIDs {
		out.ConsentManagerIDs = append(out.ConsentManagerIDs, id.UserID(m))
	}
	if folderID.Valid {
		out.TermsFolderID = id.FolderID(folderID.UUID)
	}
	return out, nil
}

func (s *PostgresStore) Save(ctx context.Context, settings Settings) error {
	query := `
		INSERT INTO site_settings (singleton, data_controller, consent_manager_ids, email_consent_managers, terms_folder_id)
		VALUES (TRUE, $1, $2, $3, $4)
		ON CONFLICT (singleton) DO UPDATE SET
			data_controller = EXCLUDED.data_controller,
			consent_manager_ids = EXCLUDED.consent_manager_ids,
			email_consent_managers = EXCLUDED.email_consent_managers,
			terms_folder_id = EXCLUDED.terms_folder_id
	`
	managerIDs := make([]uuid.UUID, 0, len(settings.ConsentManagerIDs))
	for _, m := range settings.ConsentManagerIDs {
		managerIDs = append(managerIDs, uuid.UUID(m))
	}
	var folderID uuid.NullUUID
	if !settings.TermsFolderID.IsNil() {
		folderID = uuid.NullUUID{UUID: uuid.UUID(settings.TermsFolderID), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, query,
		settings.DataController, pq.Array(managerIDs), settings.EmailConsentManagers, folderID,
	)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
