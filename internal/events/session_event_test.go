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
	"errors"
	"testing"
)

func TestNewSessionEvent(t *testing.T) {
	event := NewSessionEvent("local")

	if event.UUID == "" {
		t.Error("UUID should be generated")
	}
	if event.Engine != "local" {
		t.Errorf("Engine = %q, want %q", event.Engine, "local")
	}
	if event.StartedAt.IsZero() {
		t.Error("StartedAt should be set")
	}
	if event.Outcome != "" {
		t.Errorf("Outcome = %q, want empty before termination", event.Outcome)
	}
}

func TestSessionEvent_Outcomes(t *testing.T) {
	tests := []struct {
		name      string
		terminate func(se *SessionEvent)
		want      Outcome
	}{
		{
			name:      "Commit",
			terminate: func(se *SessionEvent) { se.Commit("hello world", 2) },
			want:      OutcomeFinal,
		},
		{
			name:      "Stop",
			terminate: func(se *SessionEvent) { se.Stop() },
			want:      OutcomeStopped,
		},
		{
			name:      "Fail",
			terminate: func(se *SessionEvent) { se.Fail(errors.New("no credential")) },
			want:      OutcomeError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := NewSessionEvent("cloud")
			tt.terminate(event)

			if event.Outcome != tt.want {
				t.Errorf("Outcome = %q, want %q", event.Outcome, tt.want)
			}
			if event.CaptureTimeMS < 0 {
				t.Errorf("CaptureTimeMS = %d, want >= 0", event.CaptureTimeMS)
			}
			if err := event.IsValid(); err != nil {
				t.Errorf("IsValid() error = %v", err)
			}
		})
	}
}

func TestSessionEvent_IsValid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(se *SessionEvent)
		wantErr bool
	}{
		{
			name:    "Valid final",
			mutate:  func(se *SessionEvent) { se.Commit("turn on the lights", 1) },
			wantErr: false,
		},
		{
			name:    "Missing outcome",
			mutate:  func(se *SessionEvent) {},
			wantErr: true,
		},
		{
			name: "Final with empty utterance",
			mutate: func(se *SessionEvent) {
				se.Outcome = OutcomeFinal
			},
			wantErr: true,
		},
		{
			name: "Missing UUID",
			mutate: func(se *SessionEvent) {
				se.Stop()
				se.UUID = ""
			},
			wantErr: true,
		},
		{
			name: "Missing engine",
			mutate: func(se *SessionEvent) {
				se.Stop()
				se.Engine = ""
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := NewSessionEvent("local")
			tt.mutate(event)

			err := event.IsValid()
			if (err != nil) != tt.wantErr {
				t.Errorf("IsValid() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
