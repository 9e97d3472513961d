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
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vestonlabs/voxhub/internal/logging"
	"github.com/vestonlabs/voxhub/internal/voice/platform"
)

// LocalEngineConfig carries the collaborators and tuning for a LocalEngine.
type LocalEngineConfig struct {
	Dispatcher Dispatcher
	Listener   Listener
	Session    *Session
	Factory    platform.Factory

	// SilenceWindow is how long after the last segment the accumulated
	// transcript is committed. It is deliberately longer than the
	// recognizer's own internal timeout.
	SilenceWindow time.Duration

	// RestartSettle is the pause between destroying a recognizer and
	// creating the next one.
	RestartSettle time.Duration

	Decensor *Decensor
}

// LocalEngine runs the restart-accumulation protocol over a single-utterance
// recognizer: each listening attempt captures one segment, the recognizer is
// destroyed and recreated, and a commit timer spanning the gaps decides when
// the user is actually done talking. All fields are loop-affine; recognizer
// callbacks are marshalled onto the dispatcher and stamped with a generation
// counter so events from a destroyed recognizer are dropped.
type LocalEngine struct {
	d        Dispatcher
	listener Listener
	session  *Session
	factory  platform.Factory
	silence  time.Duration
	settle   time.Duration
	decensor *Decensor

	rec          platform.Recognizer
	gen          int
	readySent    bool
	active       bool
	terminal     bool
	commitTimer  *time.Timer
	restartTimer *time.Timer
}

// NewLocalEngine builds a local engine for one session.
func NewLocalEngine(cfg LocalEngineConfig) *LocalEngine {
	dec := cfg.Decensor
	if dec == nil {
		dec = NewDecensor(nil)
	}
	return &LocalEngine{
		d:        cfg.Dispatcher,
		listener: cfg.Listener,
		session:  cfg.Session,
		factory:  cfg.Factory,
		silence:  cfg.SilenceWindow,
		settle:   cfg.RestartSettle,
		decensor: dec,
	}
}

// Kind implements Engine.
func (e *LocalEngine) Kind() EngineKind { return EngineLocal }

// Active implements Engine. Loop-affine.
func (e *LocalEngine) Active() bool { return e.active }

// Start creates the first recognizer and begins listening. A factory error
// here means the engine never became active and no callbacks follow.
func (e *LocalEngine) Start() error {
	if err := e.startRecognizer(); err != nil {
		return fmt.Errorf("failed to start local recognizer: %w", err)
	}
	e.active = true
	return nil
}

// Cancel implements Engine. It tears everything down without delivering any
// further callbacks.
func (e *LocalEngine) Cancel() {
	if e.terminal {
		return
	}
	e.teardown()
}

func (e *LocalEngine) startRecognizer() error {
	rec, err := e.factory.New()
	if err != nil {
		return err
	}
	e.rec = rec
	e.gen++
	if err := rec.Start(&localEvents{e: e, gen: e.gen}); err != nil {
		rec.Destroy()
		e.rec = nil
		return err
	}
	return nil
}

func (e *LocalEngine) teardown() {
	e.terminal = true
	e.active = false
	if e.commitTimer != nil {
		e.commitTimer.Stop()
		e.commitTimer = nil
	}
	if e.restartTimer != nil {
		e.restartTimer.Stop()
		e.restartTimer = nil
	}
	if e.rec != nil {
		e.rec.Destroy()
		e.rec = nil
	}
	e.gen++
}

// localEvents marshals one recognizer generation's callbacks onto the
// dispatch goroutine. Events from superseded generations are dropped on
// arrival.
type localEvents struct {
	e   *LocalEngine
	gen int
}

func (ev *localEvents) post(fn func()) {
	ev.e.d.Post(func() {
		if ev.e.terminal || ev.gen != ev.e.gen {
			return
		}
		fn()
	})
}

func (ev *localEvents) Ready() {
	ev.post(func() { ev.e.onReady() })
}

func (ev *localEvents) BeginningOfSpeech() {
	ev.post(func() { ev.e.onBeginningOfSpeech() })
}

func (ev *localEvents) Result(text string) {
	ev.post(func() { ev.e.onResult(text) })
}

func (ev *localEvents) RecognizerError(err error) {
	ev.post(func() { ev.e.onRecognizerError(err) })
}

func (e *LocalEngine) onReady() {
	// Restart cycles produce a Ready per attempt; the session-level
	// signal fires only for the first.
	if e.readySent {
		return
	}
	e.readySent = true
	e.listener.ReadyForSpeech()
}

func (e *LocalEngine) onBeginningOfSpeech() {
	// The user is talking again, so the pending commit no longer
	// reflects a finished utterance.
	if e.commitTimer != nil {
		e.commitTimer.Stop()
		e.commitTimer = nil
	}
}

func (e *LocalEngine) onResult(text string) {
	e.session.AddSegment(text)
	if partial := e.decensor.Clean(e.session.Transcript()); partial != "" {
		e.listener.PartialResult(partial)
	}
	e.cycleRecognizer()
	e.scheduleCommit()
}

// cycleRecognizer destroys the current recognizer and schedules a fresh one
// after a short settle delay. The generation bump invalidates any events the
// old recognizer still manages to emit.
func (e *LocalEngine) cycleRecognizer() {
	if e.rec != nil {
		e.rec.Destroy()
		e.rec = nil
	}
	e.gen++
	e.restartTimer = e.d.PostDelayed(e.settle, func() {
		if e.terminal {
			return
		}
		if err := e.startRecognizer(); err != nil {
			// A restart that cannot come back up is handled like a
			// transient recognizer fault.
			e.onRecognizerError(fmt.Errorf("%w: restart failed: %v", platform.ErrClient, err))
		}
	})
}

func (e *LocalEngine) scheduleCommit() {
	if e.commitTimer != nil {
		e.commitTimer.Stop()
	}
	e.commitTimer = e.d.PostDelayed(e.silence, func() {
		if e.terminal {
			return
		}
		e.commit()
	})
}

func (e *LocalEngine) onRecognizerError(err error) {
	forgivable := errors.Is(err, platform.ErrNoMatch) ||
		errors.Is(err, platform.ErrTimeout) ||
		errors.Is(err, platform.ErrClient)
	if forgivable && e.session.SegmentCount() > 0 {
		// Spurious fault mid-accumulation: commit what we already have
		// instead of discarding the user's speech.
		logging.LogWarn("Recognizer fault with accumulated segments, committing early",
			zap.String("session_id", e.session.ID),
			zap.Error(err))
		e.commit()
		return
	}
	if forgivable {
		e.teardown()
		e.listener.Stopped()
		return
	}
	e.teardown()
	e.listener.EngineError(fmt.Errorf("local recognition failed: %w", err))
}

// commit joins the accumulated segments, tears the engine down, and delivers
// the terminal callback: FinalResult when anything survived, Stopped when
// only empty segments accumulated.
func (e *LocalEngine) commit() {
	transcript := e.decensor.Clean(e.session.Transcript())
	e.teardown()
	if transcript == "" {
		e.listener.Stopped()
		return
	}
	e.listener.FinalResult(transcript)
}
