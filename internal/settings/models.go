// Package settings holds the site-wide consent configuration: the data
// controller identity, the designated consent managers and the email-notify
// toggle. One row per site; created lazily on first access.
package settings

import (
	"context"

	id "consentgate/pkg/domain"
)

// Settings is the singleton site consent configuration.
type Settings struct {
	DataController       string
	ConsentManagerIDs    []id.UserID
	EmailConsentManagers bool
	// TermsFolderID marks the content folder holding term documents; the
	// guard layer refuses to delete or move it.
	TermsFolderID id.FolderID
}

// Store loads and saves the singleton. Load never fails on absence: a zero
// Settings value is returned the first time and persisted on first Save.
type Store interface {
	Load(ctx context.Context) (Settings, error)
	Save(ctx context.Context, s Settings) error
}
