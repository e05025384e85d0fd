// Package guard holds the referential-integrity predicates the surrounding
// content-management system consults before deleting or moving content. Pure
// predicates: they return the blocking objects and never mutate anything.
package guard

import (
	"context"
	"fmt"

	"consentgate/internal/settings"
	"consentgate/internal/terms"
	id "consentgate/pkg/domain"
)

// Block names one object that prevents the requested operation.
type Block struct {
	ID     string
	Reason string
}

// ProtectEnabledTerm blocks delete/move of a term whose workflow still has it
// enabled; live obligations must not disappear out from under users.
func ProtectEnabledTerm(_ context.Context, t terms.Term) []Block {
	if t.State == terms.StateEnabled {
		return []Block{{
			ID:     t.ID.String(),
			Reason: "this would delete enabled terms of service",
		}}
	}
	return nil
}

// FolderGuard blocks delete/move of the folder designated as the terms base
// in the site consent settings.
type FolderGuard struct {
	settings settings.Store
}

func NewFolderGuard(settingsStore settings.Store) *FolderGuard {
	return &FolderGuard{settings: settingsStore}
}

// Registry aggregates the guards consulted at the delete/move boundary.
type Registry struct {
	folders *FolderGuard
}

func NewRegistry(folders *FolderGuard) *Registry {
	return &Registry{folders: folders}
}

func (r *Registry) CheckTerm(ctx context.Context, t terms.Term) []Block {
	return ProtectEnabledTerm(ctx, t)
}

func (r *Registry) CheckFolder(ctx context.Context, folderID id.FolderID) ([]Block, error) {
	return r.folders.ProtectTermsFolder(ctx, folderID)
}

func (g *FolderGuard) ProtectTermsFolder(ctx context.Context, folderID id.FolderID) ([]Block, error) {
	cfg, err := g.settings.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if !cfg.TermsFolderID.IsNil() && cfg.TermsFolderID == folderID {
		return []Block{{
			ID:     folderID.String(),
			Reason: "deleting the folder marked as base for terms of service isn't allowed",
		}}, nil
	}
	return nil, nil
}
