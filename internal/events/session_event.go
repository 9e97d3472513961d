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

package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Outcome is the terminal result of a voice session. Exactly one outcome is
// recorded per session.
type Outcome string

const (
	OutcomeFinal   Outcome = "final"   // A committed utterance was delivered
	OutcomeStopped Outcome = "stopped" // Session ended with no usable speech
	OutcomeError   Outcome = "error"   // Session ended in a terminal error
)

// SessionEvent records one completed voice session for persistence and for
// the conversation-context block injected into cloud transcriptions.
type SessionEvent struct {
	UUID          string    `json:"uuid" db:"uuid"`
	Engine        string    `json:"engine" db:"engine"`
	StartedAt     time.Time `json:"started_at" db:"started_at"`
	Outcome       Outcome   `json:"outcome" db:"outcome"`
	Utterance     string    `json:"utterance" db:"utterance"`
	ResponseText  string    `json:"response_text" db:"response_text"`
	Segments      int       `json:"segments" db:"segments"`
	AudioDuration float64   `json:"audio_duration" db:"audio_duration"`
	CaptureTimeMS int64     `json:"capture_time_ms" db:"capture_time_ms"`
	ErrorMessage  string    `json:"error_message,omitempty" db:"error_message"`
}

// NewSessionEvent creates a SessionEvent for a session that just started.
func NewSessionEvent(engine string) *SessionEvent {
	return &SessionEvent{
		UUID:      uuid.NewString(),
		Engine:    engine,
		StartedAt: time.Now(),
	}
}

// Commit records a successful final utterance.
func (se *SessionEvent) Commit(utterance string, segments int) {
	se.Outcome = OutcomeFinal
	se.Utterance = utterance
	se.Segments = segments
	se.CaptureTimeMS = time.Since(se.StartedAt).Milliseconds()
}

// Stop records a silence-only or cancelled session.
func (se *SessionEvent) Stop() {
	se.Outcome = OutcomeStopped
	se.CaptureTimeMS = time.Since(se.StartedAt).Milliseconds()
}

// Fail records a terminal session error.
func (se *SessionEvent) Fail(err error) {
	se.Outcome = OutcomeError
	se.ErrorMessage = err.Error()
	se.CaptureTimeMS = time.Since(se.StartedAt).Milliseconds()
}

// SetResponse attaches the downstream response once the completion handshake
// arrives.
func (se *SessionEvent) SetResponse(responseText string) {
	se.ResponseText = responseText
}

// IsValid performs basic validation before persistence.
func (se *SessionEvent) IsValid() error {
	if se.UUID == "" {
		return fmt.Errorf("UUID is required")
	}

	if se.Engine == "" {
		return fmt.Errorf("engine is required")
	}

	if se.StartedAt.IsZero() {
		return fmt.Errorf("start timestamp is required")
	}

	switch se.Outcome {
	case OutcomeFinal, OutcomeStopped, OutcomeError:
	default:
		return fmt.Errorf("unknown outcome: %q", se.Outcome)
	}

	if se.Outcome == OutcomeFinal && se.Utterance == "" {
		return fmt.Errorf("final outcome requires a non-empty utterance")
	}

	return nil
}

// String returns a human-readable representation of the session event
func (se *SessionEvent) String() string {
	return fmt.Sprintf("SessionEvent{UUID: %s, Engine: %s, Outcome: %s, Utterance: %q, Segments: %d}",
		se.UUID, se.Engine, se.Outcome, se.Utterance, se.Segments)
}
