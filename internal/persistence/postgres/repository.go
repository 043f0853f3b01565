// Package postgres provides pgx-backed persistence for the session ledger.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/saunalog/internal/domain"
	"example.com/saunalog/internal/observability"
	"example.com/saunalog/internal/outbox"
)

// Repository provides Postgres-backed persistence for sessions, day
// metadata, and outbox events. Every write runs in a single transaction and
// serializes against other writers of the same (user, date) via an advisory
// lock, so session_order stays dense under concurrency. A UNIQUE constraint
// on (user_id, date, session_order) backstops the lock.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func lockDay(ctx context.Context, tx pgx.Tx, userID, date string) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, userID+":"+date)
	return err
}

// Append inserts one session at session_order = MAX+1 and merges the
// metadata patch over the day's current metadata.
func (r *Repository) Append(ctx context.Context, userID, date string, minutes int, patch domain.MetaPatch) (int, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if err = lockDay(ctx, tx, userID, date); err != nil {
		return 0, err
	}

	current, err := readDayMeta(ctx, tx, userID, date)
	if err != nil {
		return 0, err
	}

	var order int
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(session_order), 0) + 1 FROM sauna_sessions WHERE user_id = $1 AND date = $2`,
		userID, date).Scan(&order)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	_, err = tx.Exec(ctx,
		`INSERT INTO sauna_sessions (user_id, date, session_order, minutes, created_at)
         VALUES ($1, $2, $3, $4, $5)`,
		userID, date, order, minutes, now)
	if err != nil {
		return 0, err
	}

	if !patch.Empty() {
		merged := patch.Apply(current)
		if err = upsertDayMeta(ctx, tx, userID, date, merged); err != nil {
			return 0, err
		}
	}

	if err = insertOutbox(ctx, tx, userID, outbox.EventSessionAppended, outbox.SessionAppended{
		EventUID:   uuid.NewString(),
		UserID:     userID,
		Date:       date,
		Order:      order,
		Minutes:    minutes,
		OccurredAt: now,
	}); err != nil {
		return 0, err
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, err
	}
	observability.RecordSessionPersisted(now)
	observability.RecordLedgerWrite("append")
	return order, nil
}

// RemoveAt deletes the session at the given 1-based order and decrements
// every later order, restoring density. Returns domain.ErrInvalidIndex when
// no such session exists.
func (r *Repository) RemoveAt(ctx context.Context, userID, date string, order int) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if err = lockDay(ctx, tx, userID, date); err != nil {
		return err
	}

	tag, err := tx.Exec(ctx,
		`DELETE FROM sauna_sessions WHERE user_id = $1 AND date = $2 AND session_order = $3`,
		userID, date, order)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		err = domain.ErrInvalidIndex
		return err
	}

	_, err = tx.Exec(ctx,
		`UPDATE sauna_sessions SET session_order = session_order - 1
         WHERE user_id = $1 AND date = $2 AND session_order > $3`,
		userID, date, order)
	if err != nil {
		return err
	}

	var remaining int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM sauna_sessions WHERE user_id = $1 AND date = $2`,
		userID, date).Scan(&remaining)
	if err != nil {
		return err
	}

	if err = insertOutbox(ctx, tx, userID, outbox.EventSessionRemoved, outbox.SessionRemoved{
		EventUID:   uuid.NewString(),
		UserID:     userID,
		Date:       date,
		Order:      order,
		Remaining:  remaining,
		OccurredAt: time.Now().UTC(),
	}); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return err
	}
	observability.RecordLedgerWrite("remove")
	return nil
}

// ReplaceAll deletes every session for the day and reinserts the provided
// list in order 1..N. Day metadata is untouched, so it survives a full clear.
func (r *Repository) ReplaceAll(ctx context.Context, userID, date string, minutes []int) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if err = lockDay(ctx, tx, userID, date); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `DELETE FROM sauna_sessions WHERE user_id = $1 AND date = $2`, userID, date)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for i, value := range minutes {
		_, err = tx.Exec(ctx,
			`INSERT INTO sauna_sessions (user_id, date, session_order, minutes, created_at)
             VALUES ($1, $2, $3, $4, $5)`,
			userID, date, i+1, value, now)
		if err != nil {
			return err
		}
	}

	if err = insertOutbox(ctx, tx, userID, outbox.EventDayReplaced, outbox.DayReplaced{
		EventUID:   uuid.NewString(),
		UserID:     userID,
		Date:       date,
		Count:      len(minutes),
		OccurredAt: now,
	}); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return err
	}
	if len(minutes) > 0 {
		observability.RecordSessionPersisted(now)
	}
	observability.RecordLedgerWrite("replace")
	return nil
}

// ListSessions returns the day's minute values in ascending session order.
// Non-positive stored values are filtered defensively.
func (r *Repository) ListSessions(ctx context.Context, userID, date string) ([]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT minutes FROM sauna_sessions
         WHERE user_id = $1 AND date = $2
         ORDER BY session_order ASC`,
		userID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]int, 0)
	for rows.Next() {
		var minutes int
		if err := rows.Scan(&minutes); err != nil {
			return nil, err
		}
		if minutes > 0 {
			out = append(out, minutes)
		}
	}
	return out, rows.Err()
}

// GetDayMeta returns the day's metadata triple, empty when never recorded.
func (r *Repository) GetDayMeta(ctx context.Context, userID, date string) (domain.DayMeta, error) {
	var meta domain.DayMeta
	err := r.pool.QueryRow(ctx,
		`SELECT facility_name, condition_rating, satisfaction_rating
         FROM sauna_day_meta WHERE user_id = $1 AND date = $2`,
		userID, date).Scan(&meta.FacilityName, &meta.ConditionRating, &meta.SatisfactionRating)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DayMeta{}, nil
	}
	if err != nil {
		return domain.DayMeta{}, err
	}
	return meta, nil
}

// SetDayMeta writes the full metadata triple. When the day has zero session
// rows the write is a no-op and nothing is queued.
func (r *Repository) SetDayMeta(ctx context.Context, userID, date string, meta domain.DayMeta) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if err = lockDay(ctx, tx, userID, date); err != nil {
		return err
	}

	var count int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM sauna_sessions WHERE user_id = $1 AND date = $2`,
		userID, date).Scan(&count)
	if err != nil {
		return err
	}
	if count == 0 {
		return tx.Commit(ctx)
	}

	if err = upsertDayMeta(ctx, tx, userID, date, meta); err != nil {
		return err
	}

	if err = insertOutbox(ctx, tx, userID, outbox.EventDayMetaUpdated, outbox.DayMetaUpdated{
		EventUID:           uuid.NewString(),
		UserID:             userID,
		Date:               date,
		FacilityName:       meta.FacilityName,
		ConditionRating:    meta.ConditionRating,
		SatisfactionRating: meta.SatisfactionRating,
		OccurredAt:         time.Now().UTC(),
	}); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return err
	}
	observability.RecordLedgerWrite("set_meta")
	return nil
}

// ListDays returns distinct dates with at least one session, newest first,
// optionally restricted to an exact facility-name match.
func (r *Repository) ListDays(ctx context.Context, userID, facility string) ([]string, error) {
	query := `SELECT DISTINCT s.date::text AS date
        FROM sauna_sessions s
        WHERE s.user_id = $1
        ORDER BY date DESC`
	args := []interface{}{userID}

	if facility != "" {
		query = `SELECT DISTINCT s.date::text AS date
            FROM sauna_sessions s
            JOIN sauna_day_meta m ON m.user_id = s.user_id AND m.date = s.date
            WHERE s.user_id = $1 AND m.facility_name = $2
            ORDER BY date DESC`
		args = append(args, facility)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var date string
		if err := rows.Scan(&date); err != nil {
			return nil, err
		}
		out = append(out, date)
	}
	return out, rows.Err()
}

// OverallAverage returns total minutes divided by session count, 0 when the
// user has no sessions.
func (r *Repository) OverallAverage(ctx context.Context, userID string) (float64, error) {
	var count, total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*)::int, COALESCE(SUM(minutes), 0)::int
         FROM sauna_sessions WHERE user_id = $1`,
		userID).Scan(&count, &total)
	if err != nil {
		return 0, err
	}
	if count <= 0 {
		return 0, nil
	}
	return float64(total) / float64(count), nil
}

// ListFacilities returns the distinct non-empty facility names the user has
// recorded.
func (r *Repository) ListFacilities(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT facility_name FROM sauna_day_meta
         WHERE user_id = $1 AND facility_name IS NOT NULL AND facility_name <> ''
         ORDER BY facility_name`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func readDayMeta(ctx context.Context, tx pgx.Tx, userID, date string) (domain.DayMeta, error) {
	var meta domain.DayMeta
	err := tx.QueryRow(ctx,
		`SELECT facility_name, condition_rating, satisfaction_rating
         FROM sauna_day_meta WHERE user_id = $1 AND date = $2`,
		userID, date).Scan(&meta.FacilityName, &meta.ConditionRating, &meta.SatisfactionRating)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DayMeta{}, nil
	}
	if err != nil {
		return domain.DayMeta{}, err
	}
	return meta, nil
}

func upsertDayMeta(ctx context.Context, tx pgx.Tx, userID, date string, meta domain.DayMeta) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO sauna_day_meta (user_id, date, facility_name, condition_rating, satisfaction_rating)
         VALUES ($1, $2, $3, $4, $5)
         ON CONFLICT (user_id, date) DO UPDATE SET
             facility_name = EXCLUDED.facility_name,
             condition_rating = EXCLUDED.condition_rating,
             satisfaction_rating = EXCLUDED.satisfaction_rating`,
		userID, date, meta.FacilityName, meta.ConditionRating, meta.SatisfactionRating)
	return err
}

func insertOutbox(ctx context.Context, tx pgx.Tx, userID, eventType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO outbox (user_id, event_type, partition_key, payload)
         VALUES ($1, $2, $3, $4)`,
		userID, eventType, userID, body)
	return err
}
