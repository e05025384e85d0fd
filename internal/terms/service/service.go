// Package service holds the consent lifecycle state machine. A Manager is
// cheap and request-scoped in spirit: all cross-request state lives in the
// injected stores and the session check-cache, so one instance can safely
// serve every request.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"consentgate/internal/directory"
	"consentgate/internal/ledger"
	"consentgate/internal/notify"
	"consentgate/internal/session"
	"consentgate/internal/settings"
	"consentgate/internal/terms"
	"consentgate/internal/terms/metrics"
	id "consentgate/pkg/domain"
	"consentgate/pkg/platform/sentinel"
	"consentgate/pkg/requestcontext"
)

// PermissionChecker answers whether an actor holds system-manage rights.
// Holders are exempt from consent enforcement.
type PermissionChecker interface {
	HasManagePermission(ctx context.Context, userID id.UserID) (bool, error)
}

// RevocationPublisher fans out AgreementsRevoked events. Implemented by
// notify.Bus.
type RevocationPublisher interface {
	Publish(ctx context.Context, event notify.AgreementsRevoked)
}

// Config carries the two enforcement timings.
type Config struct {
	// GracePeriod is how long a user may keep browsing after missing consent
	// is first detected. Zero means immediate lockout.
	GracePeriod time.Duration
	// CheckInterval is how long a passed check stays cached per session.
	CheckInterval time.Duration
}

const (
	DefaultGracePeriod   = 600 * time.Second
	DefaultCheckInterval = 3600 * time.Second
)

// Manager decides, per request, whether a user must be challenged to accept
// terms, enforces the grace period, and runs the accept/revoke transitions
// with their side effects.
type Manager struct {
	terms     terms.Store
	ledger    ledger.Store
	settings  settings.Store
	cache     session.CheckCache
	perms     PermissionChecker
	directory directory.Directory
	publisher RevocationPublisher
	cfg       Config
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

type Option func(*Manager)

func WithMetrics(m *metrics.Metrics) Option {
	return func(mgr *Manager) { mgr.metrics = m }
}

func WithConfig(cfg Config) Option {
	return func(mgr *Manager) { mgr.cfg = cfg }
}

func NewManager(
	termStore terms.Store,
	ledgerStore ledger.Store,
	settingsStore settings.Store,
	cache session.CheckCache,
	perms PermissionChecker,
	dir directory.Directory,
	publisher RevocationPublisher,
	logger *slog.Logger,
	opts ...Option,
) *Manager {
	m := &Manager{
		terms:     termStore,
		ledger:    ledgerStore,
		settings:  settingsStore,
		cache:     cache,
		perms:     perms,
		directory: dir,
		publisher: publisher,
		cfg:       Config{GracePeriod: DefaultGracePeriod, CheckInterval: DefaultCheckInterval},
		logger:    logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.cfg.CheckInterval <= 0 {
		m.cfg.CheckInterval = DefaultCheckInterval
	}
	return m
}

// CheckTerms is the per-request entry point. It returns nil when the user may
// proceed, a *terms.NeedsAcceptanceError while the grace period runs, and a
// *terms.NotAcceptedError once it has elapsed. The caller must treat the
// latter as a forced logout.
func (m *Manager) CheckTerms(ctx context.Context) error {
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		return nil
	}
	sessionID := requestcontext.SessionID(ctx)
	now := requestcontext.Now(ctx)

	checkAgain, err := m.cache.CheckAgainAt(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("read check cache: %w", err)
	}
	if !checkAgain.IsZero() && now.Before(checkAgain) {
		m.metrics.IncrementCheck("cached")
		return nil
	}

	// Holders of system-manage rights are never challenged, but their
	// recheck timer is still refreshed so the exemption stays cheap.
	manage, err := m.perms.HasManagePermission(ctx, userID)
	if err != nil {
		return fmt.Errorf("permission check: %w", err)
	}
	if manage {
		m.metrics.IncrementCheck("skipped_manager")
		return m.markChecked(ctx, sessionID, now)
	}

	pending, err := m.FindTOS(ctx, true)
	if err != nil {
		return fmt.Errorf("find pending terms: %w", err)
	}
	if len(pending) > 0 {
		m.logger.DebugContext(ctx, "terms need acceptance",
			"user_id", userID.String(),
			"pending", len(pending),
		)
		return m.checkGracePeriod(ctx, sessionID, now, pending)
	}

	if err := m.cache.ClearGraceExpiresAt(ctx, sessionID); err != nil {
		return fmt.Errorf("clear grace period: %w", err)
	}
	m.metrics.IncrementCheck("ok")
	return m.markChecked(ctx, sessionID, now)
}

func (m *Manager) markChecked(ctx context.Context, sessionID id.SessionID, now time.Time) error {
	if err := m.cache.SetCheckAgainAt(ctx, sessionID, now.Add(m.cfg.CheckInterval)); err != nil {
		return fmt.Errorf("mark checked: %w", err)
	}
	m.logger.DebugContext(ctx, "marked terms checked",
		"user_id", requestcontext.UserID(ctx).String(),
	)
	return nil
}

// checkGracePeriod starts the countdown on first entry and escalates from the
// soft to the fatal signal once it runs out.
func (m *Manager) checkGracePeriod(ctx context.Context, sessionID id.SessionID, now time.Time, pending []terms.Term) error {
	expiry, err := m.cache.GraceExpiresAt(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("read grace period: %w", err)
	}
	if expiry.IsZero() {
		expiry = now.Add(m.cfg.GracePeriod)
		if err := m.cache.SetGraceExpiresAt(ctx, sessionID, expiry); err != nil {
			return fmt.Errorf("start grace period: %w", err)
		}
		m.metrics.IncrementGracePeriods()
		m.logger.DebugContext(ctx, "started grace period",
			"user_id", requestcontext.UserID(ctx).String(),
			"grace_seconds", m.cfg.GracePeriod.Seconds(),
		)
	}
	if !now.Before(expiry) {
		m.metrics.IncrementCheck("not_accepted")
		return &terms.NotAcceptedError{Pending: pending}
	}
	m.metrics.IncrementCheck("needs_acceptance")
	return &terms.NeedsAcceptanceError{Pending: pending}
}

// FindTOS returns the enabled, currently effective terms applicable to the
// request locale, minus the ones already agreed to when filterAgreed is set.
// Ordering is unspecified; display surfaces sort by title.
func (m *Manager) FindTOS(ctx context.Context, filterAgreed bool) ([]terms.Term, error) {
	now := requestcontext.Now(ctx)
	locale := requestcontext.Locale(ctx)

	// Enforcement bypasses normal visibility: a user cannot dodge a term
	// they are not allowed to view.
	enabled, err := m.terms.ListByState(ctx, terms.StateEnabled, terms.VisibilityBypass)
	if err != nil {
		return nil, err
	}

	var agreed map[id.TermID]time.Time
	if filterAgreed {
		agreed, err = m.ledger.Entries(ctx, requestcontext.UserID(ctx), ledger.KindAgreed)
		if err != nil {
			return nil, err
		}
	}

	var out []terms.Term
	for _, t := range enabled {
		if !t.IsActive(now) {
			continue
		}
		if t.Lang != "" && t.Lang != locale {
			continue
		}
		if filterAgreed {
			if _, ok := agreed[t.ID]; ok {
				continue
			}
		}
		out = append(out, t)
	}
	return out, nil
}

// AgreeTo records acceptance of each term and cancels any prior revocation
// for it; re-acceptance supersedes a withdrawal. The grace-period timer is
// cleared once the whole batch is recorded. No rollback is modelled: callers
// treat a mid-loop failure as all-or-nothing.
func (m *Manager) AgreeTo(ctx context.Context, accepted []terms.Term) error {
	userID := requestcontext.UserID(ctx)
	today := terms.DateOf(requestcontext.Now(ctx))

	revoked, err := m.ledger.Entries(ctx, userID, ledger.KindRevoked)
	if err != nil {
		return fmt.Errorf("read revoked ledger: %w", err)
	}
	for _, t := range accepted {
		if err := m.ledger.Put(ctx, userID, t.ID, ledger.KindAgreed, today); err != nil {
			return fmt.Errorf("record acceptance: %w", err)
		}
		if _, ok := revoked[t.ID]; ok {
			if err := m.ledger.Delete(ctx, userID, t.ID, ledger.KindRevoked); err != nil {
				return fmt.Errorf("cancel revocation: %w", err)
			}
		}
	}
	if err := m.cache.ClearGraceExpiresAt(ctx, requestcontext.SessionID(ctx)); err != nil {
		return fmt.Errorf("clear grace period: %w", err)
	}
	m.metrics.IncrementAgreements(len(accepted))
	return nil
}

// RevokeAgreement withdraws the user's consent from one term. Revocations of
// currently active terms are recorded in the revoked ledger and returned;
// stale revocations only drop the agreed entry, since they carry no ongoing
// obligation. A non-empty result has already been published to the
// revocation-notification bus by the time this returns.
func (m *Manager) RevokeAgreement(ctx context.Context, t terms.Term) ([]terms.Term, error) {
	userID := requestcontext.UserID(ctx)
	today := terms.DateOf(requestcontext.Now(ctx))

	active, err := m.FindTOS(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("find active terms: %w", err)
	}
	activeIDs := make(map[id.TermID]bool, len(active))
	for _, a := range active {
		activeIDs[a.ID] = true
	}

	agreed, err := m.ledger.Entries(ctx, userID, ledger.KindAgreed)
	if err != nil {
		return nil, fmt.Errorf("read agreed ledger: %w", err)
	}

	var importantRevoked []terms.Term
	if _, ok := agreed[t.ID]; ok {
		if activeIDs[t.ID] {
			importantRevoked = append(importantRevoked, t)
			// Revocations of inactive terms are deliberately not persisted;
			// they have no ongoing relevance.
			if err := m.ledger.Put(ctx, userID, t.ID, ledger.KindRevoked, today); err != nil {
				return nil, fmt.Errorf("record revocation: %w", err)
			}
			m.metrics.IncrementRevocations("important")
		} else {
			m.metrics.IncrementRevocations("stale")
		}
		if err := m.ledger.Delete(ctx, userID, t.ID, ledger.KindAgreed); err != nil {
			return nil, fmt.Errorf("drop agreed entry: %w", err)
		}
	}

	if len(importantRevoked) > 0 {
		user, err := m.directory.Get(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("resolve revoking user: %w", err)
		}
		m.publisher.Publish(ctx, notify.NewAgreementsRevoked(user, importantRevoked, requestcontext.RequestID(ctx)))
	}
	return importantRevoked, nil
}

// AllRevokedUsers streams every user holding at least one revocation, with
// their term->date map, optionally restricted to the given term ids. Users
// whose revocations all fall outside the filter are skipped. Full scan over
// the user population; admin use only.
func (m *Manager) AllRevokedUsers(ctx context.Context, filter []id.TermID, fn func(directory.User, map[id.TermID]time.Time) error) error {
	var filterIDs map[id.TermID]bool
	if len(filter) > 0 {
		filterIDs = make(map[id.TermID]bool, len(filter))
		for _, termID := range filter {
			filterIDs[termID] = true
		}
	}
	return m.ledger.ScanRevocations(ctx, func(userID id.UserID, revoked map[id.TermID]time.Time) error {
		if filterIDs != nil {
			relevant := make(map[id.TermID]time.Time)
			for termID, date := range revoked {
				if filterIDs[termID] {
					relevant[termID] = date
				}
			}
			if len(relevant) == 0 {
				return nil
			}
			revoked = relevant
		}
		user, err := m.directory.Get(ctx, userID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				// User deleted after revoking; nothing to report.
				return nil
			}
			return err
		}
		return fn(user, revoked)
	})
}

// ConsentManagers resolves the configured consent-manager ids against the
// user directory. Ids that no longer resolve or lack a contact address are
// logged and skipped, never fatal.
func (m *Manager) ConsentManagers(ctx context.Context) ([]directory.User, error) {
	cfg, err := m.settings.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	var out []directory.User
	for _, managerID := range cfg.ConsentManagerIDs {
		user, err := m.directory.Get(ctx, managerID)
		if errors.Is(err, sentinel.ErrNotFound) {
			m.logger.WarnContext(ctx, "configured consent manager does not exist",
				"user_id", managerID.String(),
			)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("resolve consent manager: %w", err)
		}
		if user.Email == "" {
			m.logger.WarnContext(ctx, "configured consent manager has no email address",
				"user_id", managerID.String(),
			)
			continue
		}
		out = append(out, user)
	}
	return out, nil
}
