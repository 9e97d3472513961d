/*
 * This file is part of Voxhub (https://github.com/vestonlabs/voxhub).
 * Copyright (C) 2026 Veston Labs
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/vestonlabs/voxhub/internal/chat"
	"github.com/vestonlabs/voxhub/internal/events"
	"github.com/vestonlabs/voxhub/internal/logging"
)

// ErrNotFound is returned when a lookup matches no session event.
var ErrNotFound = errors.New("session event not found")

// SessionEventsStore handles database operations for session events
type SessionEventsStore struct {
	db *Database
}

// NewSessionEventsStore creates a new session events store
func NewSessionEventsStore(db *Database) *SessionEventsStore {
	return &SessionEventsStore{db: db}
}

// Insert stores a new session event in the database
func (s *SessionEventsStore) Insert(event *events.SessionEvent) error {
	if err := event.IsValid(); err != nil {
		return fmt.Errorf("invalid session event: %w", err)
	}

	query := `
		INSERT INTO session_events (
			uuid, engine, started_at, outcome,
			utterance, response_text, segments,
			audio_duration, capture_time_ms, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.DB().Exec(query,
		event.UUID, event.Engine, event.StartedAt, string(event.Outcome),
		event.Utterance, event.ResponseText, event.Segments,
		event.AudioDuration, event.CaptureTimeMS, event.ErrorMessage,
	)

	if err != nil {
		return fmt.Errorf("failed to insert session event: %w", err)
	}

	logging.LogDatabaseOperation("insert", "session_events")
	return nil
}

// SetResponse attaches the downstream response text to a stored event.
func (s *SessionEventsStore) SetResponse(uuid, responseText string) error {
	result, err := s.db.DB().Exec(
		`UPDATE session_events SET response_text = ? WHERE uuid = ?`,
		responseText, uuid,
	)
	if err != nil {
		return fmt.Errorf("failed to update session event response: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("session event not found: %s", uuid)
	}

	return nil
}

// GetByUUID retrieves a session event by its UUID
func (s *SessionEventsStore) GetByUUID(uuid string) (*events.SessionEvent, error) {
	query := `
		SELECT uuid, engine, started_at, outcome,
			   utterance, response_text, segments,
			   audio_duration, capture_time_ms, error_message
		FROM session_events
		WHERE uuid = ?`

	row := s.db.DB().QueryRow(query, uuid)

	event, err := scanSessionEvent(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, uuid)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session event: %w", err)
	}

	return event, nil
}

// List returns the most recent session events, newest first.
func (s *SessionEventsStore) List(limit, offset int) ([]*events.SessionEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT uuid, engine, started_at, outcome,
			   utterance, response_text, segments,
			   audio_duration, capture_time_ms, error_message
		FROM session_events
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?`

	rows, err := s.db.DB().Query(query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list session events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var list []*events.SessionEvent
	for rows.Next() {
		event, err := scanSessionEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session event: %w", err)
		}
		list = append(list, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate session events: %w", err)
	}

	return list, nil
}

// Count returns the total number of stored session events.
func (s *SessionEventsStore) Count() (int64, error) {
	var count int64
	err := s.db.DB().QueryRow(`SELECT COUNT(*) FROM session_events`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count session events: %w", err)
	}
	return count, nil
}

// RecentTurns returns the most recent successful utterance/response pairs,
// newest first. This feeds the conversation-context block attached to cloud
// transcription requests.
func (s *SessionEventsStore) RecentTurns(limit int) ([]chat.Turn, error) {
	if limit <= 0 {
		return nil, nil
	}

	query := `
		SELECT utterance, response_text
		FROM session_events
		WHERE outcome = ? AND utterance != ''
		ORDER BY started_at DESC
		LIMIT ?`

	rows, err := s.db.DB().Query(query, string(events.OutcomeFinal), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent turns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var turns []chat.Turn
	for rows.Next() {
		var turn chat.Turn
		if err := rows.Scan(&turn.User, &turn.Assistant); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turns = append(turns, turn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate turns: %w", err)
	}

	return turns, nil
}

// rowScanner covers both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSessionEvent(scanner rowScanner) (*events.SessionEvent, error) {
	var event events.SessionEvent
	var outcome string

	err := scanner.Scan(
		&event.UUID, &event.Engine, &event.StartedAt, &outcome,
		&event.Utterance, &event.ResponseText, &event.Segments,
		&event.AudioDuration, &event.CaptureTimeMS, &event.ErrorMessage,
	)
	if err != nil {
		return nil, err
	}

	event.Outcome = events.Outcome(outcome)
	return &event, nil
}
