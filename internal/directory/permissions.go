package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	id "consentgate/pkg/domain"
)

// PostgresPermissions answers the system-manage permission from the platform
// users table. Users flagged system_manager are exempt from consent
// enforcement.
type PostgresPermissions struct {
	db *sql.DB
}

func NewPostgresPermissions(db *sql.DB) *PostgresPermissions {
	return &PostgresPermissions{db: db}
}

func (p *PostgresPermissions) HasManagePermission(ctx context.Context, userID id.UserID) (bool, error) {
	var manager bool
	err := p.db.QueryRowContext(ctx,
		`SELECT system_manager FROM users WHERE id = $1`, uuid.UUID(userID),
	).Scan(&manager)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("permission lookup: %w", err)
	}
	return manager, nil
}

// StaticPermissions grants the manage permission to a fixed set of users.
// Test and local use.
type StaticPermissions struct {
	mu       sync.RWMutex
	managers map[id.UserID]bool
}

func NewStaticPermissions(managers ...id.UserID) *StaticPermissions {
	p := &StaticPermissions{managers: make(map[id.UserID]bool)}
	for _, m := range managers {
		p.managers[m] = true
	}
	return p
}

func (p *StaticPermissions) Grant(userID id.UserID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.managers[userID] = true
}

func (p *StaticPermissions) HasManagePermission(_ context.Context, userID id.UserID) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.managers[userID], nil
}
