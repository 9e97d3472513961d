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

// Cue is an audible feedback event. Cues make state transitions audible but
// are never control-flow critical; emitters must not block the dispatch
// goroutine.
type Cue string

const (
	CueListening Cue = "listening" // Capture actually began
	CueCommit    Cue = "commit"    // An utterance was committed
	CueDone      Cue = "done"      // The response cycle finished
	CueStopped   Cue = "stopped"   // The session ended with no usable speech
	CueError     Cue = "error"     // The session ended in an error
)

// CueEmitter is a stateless side-effect sink for feedback cues.
type CueEmitter interface {
	Emit(cue Cue, sessionID string)
}

// NopCueEmitter discards all cues.
type NopCueEmitter struct{}

// Emit implements CueEmitter.
func (NopCueEmitter) Emit(Cue, string) {}
