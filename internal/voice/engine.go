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

// Package voice implements the voice-input pipeline: the controller state
// machine, the two interchangeable recognition engines, and the shared
// segmented-capture-with-timer-based-commit protocol both engines are
// variants of.
package voice

import "time"

// EngineKind identifies which recognition engine drives a session.
type EngineKind string

const (
	EngineLocal EngineKind = "local"
	EngineCloud EngineKind = "cloud"
)

// Listener is the uniform callback contract the controller consumes from
// either engine. All callbacks are delivered on the controller's dispatch
// goroutine, in capture order. Within one session, ReadyForSpeech fires at
// most once and exactly one of FinalResult, Stopped, or EngineError is the
// last callback ever delivered.
type Listener interface {
	// ReadyForSpeech fires once per session when capture truly begins.
	ReadyForSpeech()

	// PartialResult may fire many times and always reflects the current
	// best-guess accumulated transcript.
	PartialResult(text string)

	// FinalResult fires exactly once when a committed utterance is ready.
	// The text is guaranteed non-empty.
	FinalResult(text string)

	// Stopped fires when the session ends with no usable speech.
	Stopped()

	// EngineError fires at most once and is terminal for the session.
	EngineError(err error)
}

// Engine is one recognition engine bound to a single session. Engines do
// their blocking work (recognizer calls, audio reads, network I/O) on their
// own goroutines and post every listener callback through the Dispatcher
// they were constructed with; engine state is only ever touched on the
// dispatch goroutine.
type Engine interface {
	// Start begins capture. It must be called on the dispatch goroutine.
	// A returned error means capture never began and no callbacks will
	// follow; resource acquisition failures (microphone, credential)
	// surface here.
	Start() error

	// Cancel tears the engine down. After Cancel runs on the dispatch
	// goroutine, no further callbacks are delivered; in-flight background
	// work observes the cancellation before acting on its result.
	Cancel()

	// Active reports whether the engine currently owns the capture
	// resource.
	Active() bool

	// Kind identifies the engine.
	Kind() EngineKind
}

// Dispatcher serializes work onto the single goroutine that owns all shared
// pipeline state.
type Dispatcher interface {
	Post(fn func())
	PostDelayed(d time.Duration, fn func()) *time.Timer
}

// EngineFactory builds a fresh engine for one session. The session object
// is owned by the controller and passed by reference to whichever engine is
// active; the previous session's engine is fully torn down before the
// factory is invoked again.
type EngineFactory func(session *Session, listener Listener) (Engine, error)
