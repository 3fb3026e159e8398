package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/foxseedlab/coachcal/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

const postgresSessionColumns = `
	s.id, s.trainee_id, s.start_time, s.end_time, COALESCE(s.location, ''), COALESCE(s.notes, ''),
	s.status::text, s.google_event_id,
	COALESCE(t.first_name, ''), COALESCE(t.last_name, ''), COALESCE(t.email, '')`

func scanPostgresSession(row pgx.Row) (*repository.SessionWithTrainee, error) {
	var s repository.SessionWithTrainee
	var status string
	var remoteID *string
	err := row.Scan(&s.ID, &s.TraineeID, &s.StartTime, &s.EndTime, &s.Location, &s.Notes,
		&status, &remoteID, &s.TraineeFirstName, &s.TraineeLastName, &s.TraineeEmail)
	if err != nil {
		return nil, err
	}
	s.StartTime = s.StartTime.UTC()
	if s.EndTime != nil {
		end := s.EndTime.UTC()
		s.EndTime = &end
	}
	if remoteID != nil && *remoteID != "" {
		s.RemoteEventID = remoteID
	}
	s.Status = repository.SessionStatus(status)
	return &s, nil
}

func (r *PostgresRepository) GetSessionWithTrainee(ctx context.Context, id string) (*repository.SessionWithTrainee, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+postgresSessionColumns+`
		 FROM sessions s LEFT JOIN trainees t ON t.id = s.trainee_id
		 WHERE s.id = $1`, id)
	s, err := scanPostgresSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	return s, nil
}

func (r *PostgresRepository) ListSessionsOverlapping(ctx context.Context, start, end time.Time) ([]repository.SessionWithTrainee, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+postgresSessionColumns+`
		 FROM sessions s LEFT JOIN trainees t ON t.id = s.trainee_id
		 WHERE s.start_time < $1 AND (s.end_time IS NULL OR s.end_time > $2)
		 ORDER BY s.start_time ASC`,
		end, start)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()
	list := []repository.SessionWithTrainee{}
	for rows.Next() {
		s, err := scanPostgresSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

func (r *PostgresRepository) PatchSession(ctx context.Context, id string, patch repository.SessionPatch) error {
	if patch.IsEmpty() {
		return nil
	}
	var sets []string
	args := []any{id}
	if patch.RemoteEventID != nil {
		args = append(args, nullIfEmpty(*patch.RemoteEventID))
		sets = append(sets, fmt.Sprintf("google_event_id = $%d", len(args)))
	}
	if patch.Status != nil {
		args = append(args, string(*patch.Status))
		sets = append(sets, fmt.Sprintf("status = $%d::session_status", len(args)))
	}
	if _, err := r.pool.Exec(ctx, `UPDATE sessions SET `+strings.Join(sets, ", ")+` WHERE id = $1`, args...); err != nil {
		return fmt.Errorf("failed to patch session %s: %w", id, err)
	}
	return nil
}

func (r *PostgresRepository) RecordSentMessage(ctx context.Context, msg repository.SentMessage) error {
	ctxJSON, err := encodeSentMessageContext(msg)
	if err != nil {
		return fmt.Errorf("failed to encode sent message context: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO sent_messages (id, trainee_id, session_id, template_id, channel, sent_at, context_json)
		 VALUES ($1, $2, $3, NULL, $4, $5, $6::jsonb)`,
		msg.ID, msg.TraineeID, msg.SessionID, msg.Channel, msg.SentAt, ctxJSON)
	if err != nil {
		return fmt.Errorf("failed to record sent message for session %s: %w", msg.SessionID, err)
	}
	return nil
}

func (r *PostgresRepository) ListSentHistory(ctx context.Context, start, end time.Time) ([]repository.SentHistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `
		WITH sm AS (
			SELECT COALESCE(NULLIF(session_id, ''), context_json->>'sessionId') AS sid, trainee_id, sent_at
			FROM sent_messages
		)
		SELECT s.id, s.start_time, s.end_time, COALESCE(s.location, ''),
			COUNT(DISTINCT sm.trainee_id), MIN(sm.sent_at), MAX(sm.sent_at)
		FROM sm
		JOIN sessions s ON s.id = sm.sid
		WHERE sm.sid IS NOT NULL AND sm.sent_at >= $1 AND sm.sent_at < $2
		GROUP BY s.id
		ORDER BY s.start_time DESC`,
		start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list sent history: %w", err)
	}
	defer rows.Close()
	list := []repository.SentHistoryEntry{}
	for rows.Next() {
		var e repository.SentHistoryEntry
		var participants int64
		if err := rows.Scan(&e.SessionID, &e.StartTime, &e.EndTime, &e.Location, &participants, &e.FirstSentAt, &e.LastSentAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		e.Participants = int(participants)
		list = append(list, e)
	}
	return list, rows.Err()
}

func (r *PostgresRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var value *string
	err := r.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	if value == nil {
		return "", false, nil
	}
	return *value, true, nil
}

func (r *PostgresRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO settings (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM settings WHERE key = $1`, key); err != nil {
		return fmt.Errorf("failed to delete setting %s: %w", key, err)
	}
	return nil
}
