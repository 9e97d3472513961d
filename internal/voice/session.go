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

package voice

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Session is the lifetime of one recording attempt. It is owned by the
// controller and only ever touched on the dispatch goroutine.
type Session struct {
	ID        string
	Engine    EngineKind
	StartedAt time.Time

	// AudioSeconds is the captured audio length, filled in by engines that
	// buffer whole utterances before transcribing.
	AudioSeconds float64

	segments  []string
	cancelled bool
}

// NewSession creates a session for the given engine kind.
func NewSession(kind EngineKind) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Engine:    kind,
		StartedAt: time.Now(),
	}
}

// AddSegment appends one recognized segment. Empty segments are kept so the
// restart protocol can count them, but they are skipped when joining.
func (s *Session) AddSegment(text string) {
	s.segments = append(s.segments, text)
}

// SegmentCount returns the number of accumulated segments.
func (s *Session) SegmentCount() int {
	return len(s.segments)
}

// Transcript joins the non-empty segments with single spaces into the
// provisional transcript. Join order follows capture order, so the result
// is independent of how many restart cycles produced the segments.
func (s *Session) Transcript() string {
	var parts []string
	for _, seg := range s.segments {
		if trimmed := strings.TrimSpace(seg); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, " ")
}

// Cancel marks the session cancelled and clears its segments.
func (s *Session) Cancel() {
	s.cancelled = true
	s.segments = nil
}

// Cancelled reports whether the session was cancelled.
func (s *Session) Cancelled() bool {
	return s.cancelled
}
