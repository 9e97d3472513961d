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
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/vestonlabs/voxhub/internal/chat"
	"github.com/vestonlabs/voxhub/internal/events"
	"github.com/vestonlabs/voxhub/internal/logging"
)

// State is the controller's public lifecycle state.
type State string

const (
	StateIdle       State = "idle"
	StateListening  State = "listening"
	StateProcessing State = "processing"
)

// EventSink persists completed sessions. Persistence failures are logged
// and never disturb the state machine.
type EventSink interface {
	Insert(event *events.SessionEvent) error
	SetResponse(uuid, responseText string) error
}

// Playback is anything producing audible output that must go quiet before
// capture starts.
type Playback interface {
	Stop()
}

// ControllerConfig carries the controller's collaborators.
type ControllerConfig struct {
	Dispatcher Dispatcher
	Factory    EngineFactory

	// SelectEngine picks the engine kind for the next session. Nil means
	// always local.
	SelectEngine func() EngineKind

	Consumer chat.Consumer // optional downstream for committed utterances
	Events   EventSink     // optional persistence
	Cues     CueEmitter    // optional audible feedback
	Playback Playback      // optional, silenced before capture

	// SafetyTimeout bounds how long a session may sit in the processing
	// state waiting for the downstream handshake.
	SafetyTimeout time.Duration
}

// Controller is the single-toggle state machine in front of the recognition
// engines: idle, listening, processing, in that cycle. All state lives on
// the dispatch goroutine; the public methods post and return immediately.
// Exactly one engine is ever active and every session ends in exactly one
// terminal callback.
type Controller struct {
	d            Dispatcher
	factory      EngineFactory
	selectEngine func() EngineKind
	consumer     chat.Consumer
	sink         EventSink
	cues         CueEmitter
	playback     Playback
	safety       time.Duration

	// Loop-affine.
	state       State
	session     *Session
	engine      Engine
	event       *events.SessionEvent
	safetyTimer *time.Timer

	// stateMirror lets HTTP handlers and the websocket hub read the
	// state without touching the loop.
	stateMirror atomic.Value

	onState   func(state State, sessionID string)
	onPartial func(sessionID, text string)
	onNotice  func(sessionID, message string)
}

// NewController builds a controller. Observers must be registered before
// the first Toggle.
func NewController(cfg ControllerConfig) *Controller {
	cues := cfg.Cues
	if cues == nil {
		cues = NopCueEmitter{}
	}
	selectEngine := cfg.SelectEngine
	if selectEngine == nil {
		selectEngine = func() EngineKind { return EngineLocal }
	}
	c := &Controller{
		d:            cfg.Dispatcher,
		factory:      cfg.Factory,
		selectEngine: selectEngine,
		consumer:     cfg.Consumer,
		sink:         cfg.Events,
		cues:         cues,
		playback:     cfg.Playback,
		safety:       cfg.SafetyTimeout,
		state:        StateIdle,
	}
	c.stateMirror.Store(StateIdle)
	return c
}

// OnStateChange registers an observer for state transitions. The callback
// runs on the dispatch goroutine; the session ID is empty for the idle
// state.
func (c *Controller) OnStateChange(fn func(state State, sessionID string)) {
	c.onState = fn
}

// OnPartial registers an observer for provisional transcripts.
func (c *Controller) OnPartial(fn func(sessionID, text string)) {
	c.onPartial = fn
}

// OnNotice registers an observer for user-facing session notices (errors,
// forced recoveries).
func (c *Controller) OnNotice(fn func(sessionID, message string)) {
	c.onNotice = fn
}

// State reads the current state. Safe from any goroutine.
func (c *Controller) State() State {
	return c.stateMirror.Load().(State)
}

// Toggle is the single user-facing control: start listening when idle,
// abandon the session when listening, interrupt and relisten when
// processing. Safe from any goroutine.
func (c *Controller) Toggle() {
	c.d.Post(c.toggle)
}

// Cancel abandons whatever is in flight and returns to idle. A no-op when
// already idle. Safe from any goroutine.
func (c *Controller) Cancel() {
	c.d.Post(func() {
		switch c.state {
		case StateIdle:
		case StateListening:
			c.abandonListening()
		case StateProcessing:
			c.clearSession()
			c.setState(StateIdle, "")
		}
	})
}

// ResponseComplete is the downstream handshake: the response cycle for the
// given session finished with the given response text. Stale or unknown
// session IDs are ignored. Safe from any goroutine.
func (c *Controller) ResponseComplete(sessionID, responseText string) {
	c.d.Post(func() {
		if c.state != StateProcessing || c.session == nil || c.session.ID != sessionID {
			logging.LogWarn("Ignoring response completion for stale session",
				zap.String("session_id", sessionID),
				zap.String("state", string(c.state)))
			return
		}
		if c.sink != nil {
			if err := c.sink.SetResponse(sessionID, responseText); err != nil {
				logging.LogError(err, "Failed to record session response")
			}
		}
		c.cues.Emit(CueDone, sessionID)
		c.clearSession()
		c.setState(StateIdle, "")
	})
}

func (c *Controller) toggle() {
	switch c.state {
	case StateIdle:
		c.startListening()
	case StateListening:
		c.abandonListening()
	case StateProcessing:
		// Interrupt: the pending response is abandoned and capture
		// starts again immediately.
		c.clearSession()
		c.startListening()
	}
}

func (c *Controller) startListening() {
	if c.playback != nil {
		c.playback.Stop()
	}

	kind := c.selectEngine()
	session := NewSession(kind)
	event := events.NewSessionEvent(string(kind))
	event.UUID = session.ID
	event.StartedAt = session.StartedAt

	engine, err := c.factory(session, &sessionListener{c: c, sessionID: session.ID})
	if err != nil {
		c.reportStartFailure(session.ID, fmt.Errorf("failed to build %s engine: %w", kind, err))
		return
	}
	c.session = session
	c.engine = engine
	c.event = event

	if err := engine.Start(); err != nil {
		c.session = nil
		c.engine = nil
		c.event = nil
		c.reportStartFailure(session.ID, fmt.Errorf("failed to start %s engine: %w", kind, err))
		return
	}

	logging.LogSessionEvent(session.ID, string(kind), "Session started")
	c.setState(StateListening, session.ID)
}

func (c *Controller) reportStartFailure(sessionID string, err error) {
	logging.LogError(err, "Voice session could not start")
	c.cues.Emit(CueError, sessionID)
	c.notify(sessionID, err.Error())
	c.setState(StateIdle, "")
}

// abandonListening cancels the active engine without any terminal listener
// callback and records the session as stopped.
func (c *Controller) abandonListening() {
	session := c.session
	if c.engine != nil {
		c.engine.Cancel()
	}
	if session != nil {
		session.Cancel()
		logging.LogSessionEvent(session.ID, string(session.Engine), "Session abandoned by toggle")
	}
	if c.event != nil {
		c.event.Stop()
		c.persist(c.event)
	}
	c.clearSession()
	c.setState(StateIdle, "")
}

func (c *Controller) clearSession() {
	if c.engine != nil && c.engine.Active() {
		c.engine.Cancel()
	}
	if c.safetyTimer != nil {
		c.safetyTimer.Stop()
		c.safetyTimer = nil
	}
	c.session = nil
	c.engine = nil
	c.event = nil
}

func (c *Controller) setState(state State, sessionID string) {
	if state == c.state {
		return
	}
	logging.LogStateTransition(string(c.state), string(state),
		zap.String("session_id", sessionID))
	c.state = state
	c.stateMirror.Store(state)
	if c.onState != nil {
		c.onState(state, sessionID)
	}
}

func (c *Controller) notify(sessionID, message string) {
	if c.onNotice != nil {
		c.onNotice(sessionID, message)
	}
}

func (c *Controller) persist(event *events.SessionEvent) {
	if c.sink == nil {
		return
	}
	if err := c.sink.Insert(event); err != nil {
		logging.LogError(err, "Failed to persist session event",
			zap.String("session_id", event.UUID))
	}
}

// current reports whether the given session is still the live one.
func (c *Controller) current(sessionID string) bool {
	return c.session != nil && c.session.ID == sessionID
}

func (c *Controller) onReadyForSpeech(sessionID string) {
	if !c.current(sessionID) {
		return
	}
	c.cues.Emit(CueListening, sessionID)
}

func (c *Controller) onPartialResult(sessionID, text string) {
	if !c.current(sessionID) {
		return
	}
	if c.onPartial != nil {
		c.onPartial(sessionID, text)
	}
}

func (c *Controller) onFinalResult(sessionID, text string) {
	if !c.current(sessionID) {
		return
	}
	session, event := c.session, c.event
	event.Commit(text, session.SegmentCount())
	event.AudioDuration = session.AudioSeconds
	c.persist(event)
	c.cues.Emit(CueCommit, sessionID)
	c.setState(StateProcessing, sessionID)
	c.armSafetyTimer(sessionID)
	c.deliver(sessionID, text)
}

func (c *Controller) onStopped(sessionID string) {
	if !c.current(sessionID) {
		return
	}
	if c.event != nil {
		c.event.Stop()
		c.event.AudioDuration = c.session.AudioSeconds
		c.persist(c.event)
	}
	c.cues.Emit(CueStopped, sessionID)
	c.clearSession()
	c.setState(StateIdle, "")
}

func (c *Controller) onEngineError(sessionID string, err error) {
	if !c.current(sessionID) {
		return
	}
	logging.LogError(err, "Voice session failed",
		zap.String("session_id", sessionID))
	if c.event != nil {
		c.event.Fail(err)
		c.persist(c.event)
	}
	c.cues.Emit(CueError, sessionID)
	c.notify(sessionID, err.Error())
	c.clearSession()
	c.setState(StateIdle, "")
}

// armSafetyTimer bounds the processing state: if the downstream handshake
// never arrives, the controller recovers to idle on its own instead of
// wedging forever.
func (c *Controller) armSafetyTimer(sessionID string) {
	if c.safetyTimer != nil {
		c.safetyTimer.Stop()
	}
	c.safetyTimer = c.d.PostDelayed(c.safety, func() {
		if c.state != StateProcessing || !c.current(sessionID) {
			return
		}
		logging.LogForcedRecovery(string(c.state),
			zap.String("session_id", sessionID),
			zap.Duration("safety_timeout", c.safety))
		c.notify(sessionID, "response timed out")
		c.cues.Emit(CueError, sessionID)
		c.clearSession()
		c.setState(StateIdle, "")
	})
}

// deliver hands the utterance downstream off-loop; the consumer call may
// block on the network.
func (c *Controller) deliver(sessionID, text string) {
	if c.consumer == nil {
		return
	}
	go func() {
		if err := c.consumer.Deliver(sessionID, text); err != nil {
			c.d.Post(func() {
				if c.state != StateProcessing || !c.current(sessionID) {
					return
				}
				logging.LogError(err, "Failed to deliver utterance downstream",
					zap.String("session_id", sessionID))
				c.cues.Emit(CueError, sessionID)
				c.notify(sessionID, "delivery failed")
				c.clearSession()
				c.setState(StateIdle, "")
			})
		}
	}()
}

// sessionListener narrows engine callbacks to the session that owns them,
// so anything arriving after a teardown is dropped.
type sessionListener struct {
	c         *Controller
	sessionID string
}

func (l *sessionListener) ReadyForSpeech() {
	l.c.onReadyForSpeech(l.sessionID)
}

func (l *sessionListener) PartialResult(text string) {
	l.c.onPartialResult(l.sessionID, text)
}

func (l *sessionListener) FinalResult(text string) {
	l.c.onFinalResult(l.sessionID, text)
}

func (l *sessionListener) Stopped() {
	l.c.onStopped(l.sessionID)
}

func (l *sessionListener) EngineError(err error) {
	l.c.onEngineError(l.sessionID, err)
}
