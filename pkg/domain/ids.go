package domain

import (
	"github.com/google/uuid"

	dErrors "consentgate/pkg/domain-errors"
)

// Typed UUID wrappers so a TermID can never be passed where a UserID is
// expected. Construct via the Parse* functions at trust boundaries; direct
// casting bypasses validation.
type (
	// UserID identifies a user in the surrounding identity substrate.
	UserID uuid.UUID

	// TermID identifies one versioned terms-of-service document.
	TermID uuid.UUID

	// FolderID identifies a content-tree folder (the designated terms folder).
	FolderID uuid.UUID

	// SessionID identifies a browser session.
	SessionID uuid.UUID
)

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id is not a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be the nil UUID")
	}
	return u, nil
}

// ParseUserID constructs a UserID from external input.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s)
	return UserID(u), err
}

// ParseTermID constructs a TermID from external input.
func ParseTermID(s string) (TermID, error) {
	u, err := parseUUID(s)
	return TermID(u), err
}

// ParseFolderID constructs a FolderID from external input.
func ParseFolderID(s string) (FolderID, error) {
	u, err := parseUUID(s)
	return FolderID(u), err
}

// ParseSessionID constructs a SessionID from external input.
func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID(s)
	return SessionID(u), err
}

func (id UserID) String() string    { return uuid.UUID(id).String() }
func (id TermID) String() string    { return uuid.UUID(id).String() }
func (id FolderID) String() string  { return uuid.UUID(id).String() }
func (id SessionID) String() string { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id TermID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id FolderID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
