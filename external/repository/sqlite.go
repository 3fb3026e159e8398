package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/foxseedlab/coachcal/external/repository/migrations"
	"github.com/foxseedlab/coachcal/internal/repository"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

// sqliteTimeLayout is fixed width so that text comparison orders correctly.
const sqliteTimeLayout = "2006-01-02T15:04:05.000Z"

var sqliteParseLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	time.DateOnly,
}

type SQLiteRepository struct {
	db *sql.DB
}

// OpenSQLite opens the database at dsn and applies pending migrations.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if err := RunSQLiteMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migration: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

func RunSQLiteMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseSQLiteTime(s string) (time.Time, error) {
	for _, layout := range sqliteParseLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time value %q", s)
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

const sqliteSessionColumns = `
	s.id, s.trainee_id, s.start_time, s.end_time, s.location, s.notes, s.status, s.google_event_id,
	t.first_name, t.last_name, t.email`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteSession(row rowScanner) (*repository.SessionWithTrainee, error) {
	var (
		s                                   repository.SessionWithTrainee
		traineeID, endTime, location, notes sql.NullString
		remoteID, first, last, email        sql.NullString
		startTime, status                   string
	)
	if err := row.Scan(&s.ID, &traineeID, &startTime, &endTime, &location, &notes, &status, &remoteID, &first, &last, &email); err != nil {
		return nil, err
	}
	start, err := parseSQLiteTime(startTime)
	if err != nil {
		return nil, fmt.Errorf("session %s start_time: %w", s.ID, err)
	}
	s.StartTime = start
	if endTime.Valid && strings.TrimSpace(endTime.String) != "" {
		end, err := parseSQLiteTime(endTime.String)
		if err != nil {
			return nil, fmt.Errorf("session %s end_time: %w", s.ID, err)
		}
		s.EndTime = &end
	}
	if traineeID.Valid {
		s.TraineeID = &traineeID.String
	}
	if remoteID.Valid && remoteID.String != "" {
		s.RemoteEventID = &remoteID.String
	}
	s.Status = repository.SessionStatus(status)
	s.Location = location.String
	s.Notes = notes.String
	s.TraineeFirstName = first.String
	s.TraineeLastName = last.String
	s.TraineeEmail = email.String
	return &s, nil
}

func (r *SQLiteRepository) GetSessionWithTrainee(ctx context.Context, id string) (*repository.SessionWithTrainee, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sqliteSessionColumns+`
		 FROM sessions s LEFT JOIN trainees t ON t.id = s.trainee_id
		 WHERE s.id = ?`, id)
	s, err := scanSQLiteSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	return s, nil
}

func (r *SQLiteRepository) ListSessionsOverlapping(ctx context.Context, start, end time.Time) ([]repository.SessionWithTrainee, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sqliteSessionColumns+`
		 FROM sessions s LEFT JOIN trainees t ON t.id = s.trainee_id
		 WHERE s.start_time < ? AND (s.end_time IS NULL OR s.end_time = '' OR s.end_time > ?)
		 ORDER BY s.start_time ASC`,
		formatSQLiteTime(end), formatSQLiteTime(start))
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	list := []repository.SessionWithTrainee{}
	for rows.Next() {
		s, err := scanSQLiteSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

func (r *SQLiteRepository) PatchSession(ctx context.Context, id string, patch repository.SessionPatch) error {
	if patch.IsEmpty() {
		return nil
	}
	var sets []string
	var args []any
	if patch.RemoteEventID != nil {
		sets = append(sets, "google_event_id = ?")
		args = append(args, nullIfEmpty(*patch.RemoteEventID))
	}
	if patch.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*patch.Status))
	}
	args = append(args, id)
	if _, err := r.db.ExecContext(ctx, `UPDATE sessions SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...); err != nil {
		return fmt.Errorf("failed to patch session %s: %w", id, err)
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// sentMessageContext is the context_json blob stored with each audit row.
type sentMessageContext struct {
	SessionID string `json:"sessionId"`
	EventID   string `json:"eventId"`
	At        string `json:"at"`
	Invited   bool   `json:"invited"`
}

func encodeSentMessageContext(msg repository.SentMessage) (string, error) {
	b, err := json.Marshal(sentMessageContext{
		SessionID: msg.SessionID,
		EventID:   msg.RemoteEventID,
		At:        msg.SentAt.UTC().Format(time.RFC3339Nano),
		Invited:   msg.Invited,
	})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *SQLiteRepository) RecordSentMessage(ctx context.Context, msg repository.SentMessage) error {
	ctxJSON, err := encodeSentMessageContext(msg)
	if err != nil {
		return fmt.Errorf("failed to encode sent message context: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO sent_messages (id, trainee_id, session_id, template_id, channel, sent_at, context_json)
		 VALUES (?, ?, ?, NULL, ?, ?, ?)`,
		msg.ID, msg.TraineeID, msg.SessionID, msg.Channel, formatSQLiteTime(msg.SentAt), ctxJSON)
	if err != nil {
		return fmt.Errorf("failed to record sent message for session %s: %w", msg.SessionID, err)
	}
	return nil
}

// ListSentHistory groups audit rows sent within [start, end) by session,
// newest session first. Rows written without session_id fall back to the
// session id inside context_json.
func (r *SQLiteRepository) ListSentHistory(ctx context.Context, start, end time.Time) ([]repository.SentHistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		WITH sm AS (
			SELECT
				COALESCE(NULLIF(session_id, ''),
					CASE WHEN json_valid(context_json) THEN json_extract(context_json, '$.sessionId') END) AS sid,
				trainee_id,
				sent_at
			FROM sent_messages
		)
		SELECT s.id, s.start_time, s.end_time, s.location,
			COUNT(DISTINCT sm.trainee_id), MIN(sm.sent_at), MAX(sm.sent_at)
		FROM sm
		JOIN sessions s ON s.id = sm.sid
		WHERE sm.sid IS NOT NULL AND sm.sent_at >= ? AND sm.sent_at < ?
		GROUP BY s.id
		ORDER BY s.start_time DESC`,
		formatSQLiteTime(start), formatSQLiteTime(end))
	if err != nil {
		return nil, fmt.Errorf("failed to list sent history: %w", err)
	}
	defer rows.Close()

	list := []repository.SentHistoryEntry{}
	for rows.Next() {
		var (
			e                   repository.SentHistoryEntry
			startTime           string
			endTime, location   sql.NullString
			firstSent, lastSent string
		)
		if err := rows.Scan(&e.SessionID, &startTime, &endTime, &location, &e.Participants, &firstSent, &lastSent); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		if e.StartTime, err = parseSQLiteTime(startTime); err != nil {
			return nil, err
		}
		if endTime.Valid && endTime.String != "" {
			t, err := parseSQLiteTime(endTime.String)
			if err != nil {
				return nil, err
			}
			e.EndTime = &t
		}
		if e.FirstSentAt, err = parseSQLiteTime(firstSent); err != nil {
			return nil, err
		}
		if e.LastSentAt, err = parseSQLiteTime(lastSent); err != nil {
			return nil, err
		}
		e.Location = location.String
		list = append(list, e)
	}
	return list, rows.Err()
}

func (r *SQLiteRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var value sql.NullString
	err := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	if !value.Valid {
		return "", false, nil
	}
	return value.String, true, nil
}

func (r *SQLiteRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete setting %s: %w", key, err)
	}
	return nil
}
