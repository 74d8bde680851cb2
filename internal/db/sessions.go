package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/banshee-data/growth.report/internal/growth"
	"github.com/banshee-data/growth.report/internal/reference"
	"github.com/banshee-data/growth.report/internal/timeutil"
)

// SessionStore is a growth.SessionStore on SQLite. A session row holds the
// sex and last update; its entries are stored in insertion order by seq.
type SessionStore struct {
	db    *DB
	clock timeutil.Clock
}

var _ growth.SessionStore = (*SessionStore)(nil)

// NewSessionStore returns a store on db stamping updates with clock.
func NewSessionStore(db *DB, clock timeutil.Clock) *SessionStore {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &SessionStore{db: db, clock: clock}
}

// Get loads the session for userID, or a fresh one if none is stored.
func (s *SessionStore) Get(ctx context.Context, userID string) (*growth.Session, error) {
	var (
		sex     string
		updated int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT sex, updated_unix_nanos FROM sessions WHERE user_id = ?`, userID,
	).Scan(&sex, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return growth.NewSession(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	sess := growth.NewSession()
	sess.Sex = reference.Sex(sex)
	sess.UpdatedAt = time.Unix(0, updated).UTC()

	rows, err := s.db.QueryContext(ctx, `
		SELECT age_month, height_cm, weight_kg, h_percentile, w_percentile
		FROM entries WHERE user_id = ? ORDER BY seq`, userID)
	if err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e                growth.Entry
			h, w, hPct, wPct sql.NullFloat64
		)
		if err := rows.Scan(&e.AgeMonth, &h, &w, &hPct, &wPct); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.HeightCM, e.WeightKG = nullable(h), nullable(w)
		e.HeightPercentile, e.WeightPercentile = nullable(hPct), nullable(wPct)
		sess.History = append(sess.History, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sess, nil
}

// Put stores sess. Entries are append-only, so rows already stored keep
// their recorded time and only new ones are inserted.
func (s *SessionStore) Put(ctx context.Context, userID string, sess *growth.Session) error {
	now := s.clock.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			log.Printf("warning: failed to rollback transaction: %v", err)
		}
	}()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (user_id, sex, updated_unix_nanos) VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET sex = excluded.sex, updated_unix_nanos = excluded.updated_unix_nanos`,
		userID, string(sess.Sex), now.UnixNano(),
	); err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM entries WHERE user_id = ? AND seq >= ?`, userID, len(sess.History),
	); err != nil {
		return fmt.Errorf("trim entries: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entries (user_id, seq, age_month, height_cm, weight_kg, h_percentile, w_percentile, recorded_unix_nanos)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, seq) DO NOTHING`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, e := range sess.History {
		if _, err := stmt.ExecContext(ctx, userID, i, e.AgeMonth,
			e.HeightCM, e.WeightKG, e.HeightPercentile, e.WeightPercentile, now.UnixNano(),
		); err != nil {
			return fmt.Errorf("insert entry %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	sess.UpdatedAt = now
	return nil
}

// Delete removes the session and its entries.
func (s *SessionStore) Delete(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// PurgeStale removes sessions last updated before olderThan.
func (s *SessionStore) PurgeStale(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE updated_unix_nanos < ?`, olderThan.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Count returns the number of stored sessions.
func (s *SessionStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&n)
	return n, err
}

func nullable(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
