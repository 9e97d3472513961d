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

// Package platform wraps the single-utterance speech recognizer the local
// engine is built on. The recognizer captures at most one utterance per
// Start, with a short non-configurable internal timeout; longer silence
// tolerance is recovered above it by the restart-accumulation protocol.
package platform

import "errors"

// Recognizer error taxonomy. NoMatch, Timeout and Client errors are often
// spurious artifacts of the destroy/recreate cycle and are treated
// forgivingly by the local engine; anything else is terminal.
var (
	ErrNoMatch      = errors.New("recognizer: no speech matched")
	ErrTimeout      = errors.New("recognizer: speech timeout")
	ErrClient       = errors.New("recognizer: client error")
	ErrNoPermission = errors.New("recognizer: microphone permission denied")
)

// Events receives recognizer callbacks. Callbacks are invoked from
// recognizer goroutines; receivers marshal onto their own scheduling
// context before touching state.
type Events interface {
	// Ready fires once capture has actually begun.
	Ready()

	// BeginningOfSpeech fires when speech is first detected in this
	// listening attempt.
	BeginningOfSpeech()

	// Result delivers the utterance this attempt captured. Text may be
	// empty. The recognizer stops after delivering a result.
	Result(text string)

	// RecognizerError terminates the attempt with one of the package
	// error values, possibly wrapped.
	RecognizerError(err error)
}

// Recognizer captures a single utterance and then stops. A destroyed
// recognizer delivers no further events; Destroy is idempotent.
type Recognizer interface {
	Start(ev Events) error
	Destroy()
}

// Factory builds a fresh Recognizer per listening attempt. The restart
// protocol destroys and recreates recognizers continuously, so factories
// must be cheap and must tolerate a brief settle delay between a Destroy
// and the next New.
type Factory interface {
	New() (Recognizer, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func() (Recognizer, error)

// New implements Factory.
func (f FactoryFunc) New() (Recognizer, error) { return f() }
