// Package domain defines the session ledger and its business rules.
package domain

import (
	"context"

	"go.uber.org/zap"
)

// LedgerRepository captures persistence operations for the session ledger.
// Implementations must keep session_order dense per (user, date) and run
// every multi-step write inside a single transaction.
type LedgerRepository interface {
	Append(ctx context.Context, userID, date string, minutes int, patch MetaPatch) (int, error)
	RemoveAt(ctx context.Context, userID, date string, order int) error
	ReplaceAll(ctx context.Context, userID, date string, minutes []int) error
	ListSessions(ctx context.Context, userID, date string) ([]int, error)
	GetDayMeta(ctx context.Context, userID, date string) (DayMeta, error)
	SetDayMeta(ctx context.Context, userID, date string, meta DayMeta) error
	ListDays(ctx context.Context, userID, facility string) ([]string, error)
	OverallAverage(ctx context.Context, userID string) (float64, error)
	ListFacilities(ctx context.Context, userID string) ([]string, error)
}

// ProfileRepository upserts the companion user profile record. It is an
// external collaborator, outside the ledger's consistency domain.
type ProfileRepository interface {
	UpsertProfile(ctx context.Context, userID, name string) error
}

// Ledger orchestrates session workflows: it validates input, delegates to
// the repository, and opportunistically maintains the user profile.
type Ledger struct {
	repo     LedgerRepository
	profiles ProfileRepository
	logger   *zap.Logger
}

// NewLedger constructs a Ledger. profiles may be nil when no profile store
// is wired.
func NewLedger(repo LedgerRepository, profiles ProfileRepository, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{repo: repo, profiles: profiles, logger: logger}
}

// Append records a new session at the end of the day's list. Metadata fields
// absent from the patch inherit the day's current values. displayName, when
// non-empty, feeds the profile upsert; a profile failure never fails the
// append.
func (l *Ledger) Append(ctx context.Context, userID, date string, minutes float64, patch MetaPatch, displayName string) (int, error) {
	if err := ValidateDateKey(date); err != nil {
		return 0, err
	}
	rounded, err := RoundMinutes(minutes)
	if err != nil {
		return 0, err
	}

	order, err := l.repo.Append(ctx, userID, date, rounded, patch)
	if err != nil {
		return 0, err
	}

	if l.profiles != nil && displayName != "" {
		if err := l.profiles.UpsertProfile(ctx, userID, displayName); err != nil {
			l.logger.Warn("profile upsert failed", zap.Error(err))
		}
	}
	return order, nil
}

// RemoveAt deletes the session at the given 0-based index and renumbers the
// remainder so orders stay dense.
func (l *Ledger) RemoveAt(ctx context.Context, userID, date string, index int) error {
	if err := ValidateDateKey(date); err != nil {
		return err
	}
	if index < 0 {
		return ErrInvalidIndex
	}
	return l.repo.RemoveAt(ctx, userID, date, index+1)
}

// ReplaceAll swaps the day's session list wholesale. Entries are rounded and
// invalid values dropped silently; day metadata is untouched.
func (l *Ledger) ReplaceAll(ctx context.Context, userID, date string, values []float64) error {
	if err := ValidateDateKey(date); err != nil {
		return err
	}
	return l.repo.ReplaceAll(ctx, userID, date, CleanMinutesList(values))
}

// ListSessions returns the day's minute values in session order.
func (l *Ledger) ListSessions(ctx context.Context, userID, date string) ([]int, error) {
	if err := ValidateDateKey(date); err != nil {
		return nil, err
	}
	return l.repo.ListSessions(ctx, userID, date)
}

// GetDayMeta returns the day's metadata triple, empty when never set.
func (l *Ledger) GetDayMeta(ctx context.Context, userID, date string) (DayMeta, error) {
	if err := ValidateDateKey(date); err != nil {
		return DayMeta{}, err
	}
	return l.repo.GetDayMeta(ctx, userID, date)
}

// SetDayMeta writes the full metadata triple for a day that has at least one
// session. With zero sessions the write is a no-op and is not queued.
func (l *Ledger) SetDayMeta(ctx context.Context, userID, date string, meta DayMeta) error {
	if err := ValidateDateKey(date); err != nil {
		return err
	}
	return l.repo.SetDayMeta(ctx, userID, date, meta)
}

// ListDays returns the user's dates having at least one session, newest
// first, optionally restricted to an exact facility-name match.
func (l *Ledger) ListDays(ctx context.Context, userID, facility string) ([]string, error) {
	return l.repo.ListDays(ctx, userID, facility)
}

// OverallAverage returns total minutes divided by session count across the
// user's whole history, 0 when there are no sessions.
func (l *Ledger) OverallAverage(ctx context.Context, userID string) (float64, error) {
	return l.repo.OverallAverage(ctx, userID)
}

// ListFacilities returns the distinct non-empty facility names the user has
// recorded.
func (l *Ledger) ListFacilities(ctx context.Context, userID string) ([]string, error) {
	return l.repo.ListFacilities(ctx, userID)
}
