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
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vestonlabs/voxhub/internal/events"
)

// fakeEngine lets tests script engine callbacks by driving the listener the
// controller handed to the factory.
type fakeEngine struct {
	kind     EngineKind
	listener Listener
	session  *Session
	active   atomic.Bool
	cancels  atomic.Int32
	startErr error
}

func (e *fakeEngine) Start() error {
	if e.startErr != nil {
		return e.startErr
	}
	e.active.Store(true)
	return nil
}

func (e *fakeEngine) Cancel() {
	e.active.Store(false)
	e.cancels.Add(1)
}

func (e *fakeEngine) Active() bool     { return e.active.Load() }
func (e *fakeEngine) Kind() EngineKind { return e.kind }

type fakeFactory struct {
	mu       sync.Mutex
	engines  []*fakeEngine
	startErr error
	buildErr error
}

func (f *fakeFactory) build(session *Session, listener Listener) (Engine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.buildErr != nil {
		return nil, f.buildErr
	}
	eng := &fakeEngine{
		kind:     session.Engine,
		listener: listener,
		session:  session,
		startErr: f.startErr,
	}
	f.engines = append(f.engines, eng)
	return eng, nil
}

func (f *fakeFactory) engine(i int) *fakeEngine {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= len(f.engines) {
		return nil
	}
	return f.engines[i]
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.engines)
}

// memorySink records persisted events in memory.
type memorySink struct {
	mu        sync.Mutex
	inserted  []*events.SessionEvent
	responses map[string]string
}

func newMemorySink() *memorySink {
	return &memorySink{responses: map[string]string{}}
}

func (s *memorySink) Insert(event *events.SessionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserted = append(s.inserted, event)
	return nil
}

func (s *memorySink) SetResponse(uuid, responseText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[uuid] = responseText
	return nil
}

func (s *memorySink) lastEvent() *events.SessionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.inserted) == 0 {
		return nil
	}
	return s.inserted[len(s.inserted)-1]
}

type deliveredUtterance struct {
	sessionID string
	text      string
}

type chanConsumer struct {
	ch  chan deliveredUtterance
	err error
}

func (c *chanConsumer) Deliver(sessionID, utterance string) error {
	c.ch <- deliveredUtterance{sessionID: sessionID, text: utterance}
	return c.err
}

// cueRecorder captures emitted cues in order.
type cueRecorder struct {
	mu   sync.Mutex
	cues []Cue
}

func (r *cueRecorder) Emit(cue Cue, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cues = append(r.cues, cue)
}

func (r *cueRecorder) recorded() []Cue {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Cue(nil), r.cues...)
}

type controllerHarness struct {
	controller *Controller
	loop       *Loop
	factory    *fakeFactory
	sink       *memorySink
	consumer   *chanConsumer
	states     chan State
	notices    chan string
}

func newControllerHarness(t *testing.T, tune func(*ControllerConfig)) *controllerHarness {
	t.Helper()

	loop := NewLoop()
	go loop.Run()
	t.Cleanup(loop.Stop)

	h := &controllerHarness{
		loop:     loop,
		factory:  &fakeFactory{},
		sink:     newMemorySink(),
		consumer: &chanConsumer{ch: make(chan deliveredUtterance, 8)},
		states:   make(chan State, 32),
		notices:  make(chan string, 8),
	}
	cfg := ControllerConfig{
		Dispatcher:    loop,
		Factory:       h.factory.build,
		Consumer:      h.consumer,
		Events:        h.sink,
		SafetyTimeout: 5 * time.Minute,
	}
	if tune != nil {
		tune(&cfg)
	}
	h.controller = NewController(cfg)
	h.controller.OnStateChange(func(state State, sessionID string) {
		h.states <- state
	})
	h.controller.OnNotice(func(sessionID, message string) {
		h.notices <- message
	})
	return h
}

func (h *controllerHarness) awaitState(t *testing.T, want State) {
	t.Helper()
	select {
	case got := <-h.states:
		if got != want {
			t.Fatalf("state transition to %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no transition to %q", want)
	}
}

// emit drives an engine callback the way a real engine would: from the
// dispatch goroutine.
func (h *controllerHarness) emit(t *testing.T, i int, fn func(Listener)) {
	t.Helper()
	eng := h.factory.engine(i)
	if eng == nil {
		t.Fatalf("engine %d was never built", i)
	}
	h.loop.Post(func() { fn(eng.listener) })
}

func TestControllerToggleStartsListening(t *testing.T) {
	h := newControllerHarness(t, nil)

	h.controller.Toggle()
	h.awaitState(t, StateListening)

	if got := h.controller.State(); got != StateListening {
		t.Errorf("State() = %q, want %q", got, StateListening)
	}
	if h.factory.count() != 1 {
		t.Fatalf("built %d engines, want 1", h.factory.count())
	}
	if !h.factory.engine(0).Active() {
		t.Error("engine not started")
	}
}

func TestControllerToggleWhileListeningAbandons(t *testing.T) {
	h := newControllerHarness(t, nil)

	h.controller.Toggle()
	h.awaitState(t, StateListening)
	h.controller.Toggle()
	h.awaitState(t, StateIdle)

	eng := h.factory.engine(0)
	if eng.cancels.Load() == 0 {
		t.Error("engine not cancelled on abandon")
	}
	event := h.sink.lastEvent()
	if event == nil || event.Outcome != events.OutcomeStopped {
		t.Errorf("abandoned session recorded as %+v, want stopped outcome", event)
	}
	if !eng.session.Cancelled() {
		t.Error("session not marked cancelled")
	}
}

func TestControllerFinalResultRunsResponseCycle(t *testing.T) {
	h := newControllerHarness(t, nil)

	h.controller.Toggle()
	h.awaitState(t, StateListening)

	sessionID := h.factory.engine(0).session.ID
	h.emit(t, 0, func(l Listener) {
		l.ReadyForSpeech()
		l.PartialResult("open the")
		l.FinalResult("open the garage")
	})
	h.awaitState(t, StateProcessing)

	select {
	case got := <-h.consumer.ch:
		if got.sessionID != sessionID || got.text != "open the garage" {
			t.Errorf("delivered %+v, want session %s / %q", got, sessionID, "open the garage")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("utterance never delivered downstream")
	}

	event := h.sink.lastEvent()
	if event == nil || event.Outcome != events.OutcomeFinal || event.Utterance != "open the garage" {
		t.Errorf("persisted event = %+v, want final %q", event, "open the garage")
	}
	if event.UUID != sessionID {
		t.Errorf("event UUID %q does not match session %q", event.UUID, sessionID)
	}

	h.controller.ResponseComplete(sessionID, "done, opening now")
	h.awaitState(t, StateIdle)

	h.sink.mu.Lock()
	resp := h.sink.responses[sessionID]
	h.sink.mu.Unlock()
	if resp != "done, opening now" {
		t.Errorf("recorded response = %q", resp)
	}
}

func TestControllerStaleResponseCompleteIgnored(t *testing.T) {
	h := newControllerHarness(t, nil)

	h.controller.Toggle()
	h.awaitState(t, StateListening)
	h.emit(t, 0, func(l Listener) { l.FinalResult("first question") })
	h.awaitState(t, StateProcessing)

	h.controller.ResponseComplete("not-the-live-session", "stale")
	// Give the ignored handshake time to (not) transition.
	time.Sleep(50 * time.Millisecond)
	if got := h.controller.State(); got != StateProcessing {
		t.Errorf("State() = %q after stale handshake, want %q", got, StateProcessing)
	}
}

func TestControllerInterruptWhileProcessing(t *testing.T) {
	h := newControllerHarness(t, nil)

	h.controller.Toggle()
	h.awaitState(t, StateListening)
	firstID := h.factory.engine(0).session.ID
	h.emit(t, 0, func(l Listener) { l.FinalResult("what time is it") })
	h.awaitState(t, StateProcessing)
	<-h.consumer.ch

	// Toggle mid-response: straight back to listening on a new session.
	h.controller.Toggle()
	h.awaitState(t, StateListening)
	if h.factory.count() != 2 {
		t.Fatalf("built %d engines, want 2", h.factory.count())
	}
	secondID := h.factory.engine(1).session.ID
	if secondID == firstID {
		t.Error("interrupt reused the old session")
	}

	// The orphaned response must not disturb the new session.
	h.controller.ResponseComplete(firstID, "it is three o'clock")
	time.Sleep(50 * time.Millisecond)
	if got := h.controller.State(); got != StateListening {
		t.Errorf("State() = %q after orphaned handshake, want %q", got, StateListening)
	}
}

func TestControllerSafetyTimeoutForcesRecovery(t *testing.T) {
	h := newControllerHarness(t, func(cfg *ControllerConfig) {
		cfg.SafetyTimeout = 60 * time.Millisecond
	})

	h.controller.Toggle()
	h.awaitState(t, StateListening)
	h.emit(t, 0, func(l Listener) { l.FinalResult("hello") })
	h.awaitState(t, StateProcessing)
	<-h.consumer.ch

	// No handshake ever arrives; the controller must free itself.
	h.awaitState(t, StateIdle)

	select {
	case notice := <-h.notices:
		if notice == "" {
			t.Error("empty recovery notice")
		}
	case <-time.After(time.Second):
		t.Error("no notice for forced recovery")
	}

	// A late handshake after recovery is a no-op.
	sessionID := h.factory.engine(0).session.ID
	h.controller.ResponseComplete(sessionID, "too late")
	time.Sleep(50 * time.Millisecond)
	if got := h.controller.State(); got != StateIdle {
		t.Errorf("State() = %q after late handshake, want %q", got, StateIdle)
	}
}

func TestControllerEngineErrorRecordsAndRecovers(t *testing.T) {
	h := newControllerHarness(t, nil)

	h.controller.Toggle()
	h.awaitState(t, StateListening)
	h.emit(t, 0, func(l Listener) { l.EngineError(errors.New("recognizer exploded")) })
	h.awaitState(t, StateIdle)

	event := h.sink.lastEvent()
	if event == nil || event.Outcome != events.OutcomeError {
		t.Fatalf("persisted event = %+v, want error outcome", event)
	}
	if event.ErrorMessage == "" {
		t.Error("error message not recorded")
	}

	select {
	case <-h.notices:
	case <-time.After(time.Second):
		t.Error("no notice for engine error")
	}
}

func TestControllerStoppedRecordsAndRecovers(t *testing.T) {
	h := newControllerHarness(t, nil)

	h.controller.Toggle()
	h.awaitState(t, StateListening)
	h.emit(t, 0, func(l Listener) { l.Stopped() })
	h.awaitState(t, StateIdle)

	event := h.sink.lastEvent()
	if event == nil || event.Outcome != events.OutcomeStopped {
		t.Errorf("persisted event = %+v, want stopped outcome", event)
	}
}

func TestControllerCueVocabulary(t *testing.T) {
	cues := &cueRecorder{}
	h := newControllerHarness(t, func(cfg *ControllerConfig) {
		cfg.Cues = cues
	})

	// A silence-only session must not sound like a finished response.
	h.controller.Toggle()
	h.awaitState(t, StateListening)
	h.emit(t, 0, func(l Listener) {
		l.ReadyForSpeech()
		l.Stopped()
	})
	h.awaitState(t, StateIdle)

	got := cues.recorded()
	want := []Cue{CueListening, CueStopped}
	if len(got) != len(want) {
		t.Fatalf("cues = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("cues = %v, want %v", got, want)
		}
	}

	// A completed response cycle ends with the done cue.
	h.controller.Toggle()
	h.awaitState(t, StateListening)
	sessionID := h.factory.engine(1).session.ID
	h.emit(t, 1, func(l Listener) { l.FinalResult("lights off") })
	h.awaitState(t, StateProcessing)
	<-h.consumer.ch
	h.controller.ResponseComplete(sessionID, "they are off")
	h.awaitState(t, StateIdle)

	got = cues.recorded()
	if last := got[len(got)-1]; last != CueDone {
		t.Errorf("final cue = %q, want %q", last, CueDone)
	}
	for _, cue := range got[2:] {
		if cue == CueStopped {
			t.Errorf("stopped cue emitted during a completed response cycle: %v", got)
		}
	}
}

func TestControllerStartFailureStaysIdle(t *testing.T) {
	h := newControllerHarness(t, nil)
	h.factory.startErr = errors.New("microphone busy")

	h.controller.Toggle()

	select {
	case <-h.notices:
	case <-time.After(2 * time.Second):
		t.Fatal("no notice for start failure")
	}
	if got := h.controller.State(); got != StateIdle {
		t.Errorf("State() = %q after failed start, want %q", got, StateIdle)
	}

	// The controller must not be wedged: the next toggle tries again.
	h.factory.mu.Lock()
	h.factory.startErr = nil
	h.factory.mu.Unlock()
	h.controller.Toggle()
	h.awaitState(t, StateListening)
}

func TestControllerCancelIsIdempotent(t *testing.T) {
	h := newControllerHarness(t, nil)

	h.controller.Cancel()
	h.controller.Cancel()
	time.Sleep(50 * time.Millisecond)
	if got := h.controller.State(); got != StateIdle {
		t.Errorf("State() = %q after idle cancels, want %q", got, StateIdle)
	}
	select {
	case got := <-h.states:
		t.Errorf("idle Cancel produced transition to %q", got)
	default:
	}

	h.controller.Toggle()
	h.awaitState(t, StateListening)
	h.controller.Cancel()
	h.awaitState(t, StateIdle)
	if h.factory.engine(0).cancels.Load() == 0 {
		t.Error("engine not cancelled")
	}
}

func TestControllerSelectsConfiguredEngine(t *testing.T) {
	h := newControllerHarness(t, func(cfg *ControllerConfig) {
		cfg.SelectEngine = func() EngineKind { return EngineCloud }
	})

	h.controller.Toggle()
	h.awaitState(t, StateListening)
	if got := h.factory.engine(0).kind; got != EngineCloud {
		t.Errorf("engine kind = %q, want %q", got, EngineCloud)
	}
	if got := h.sink.lastEvent(); got != nil {
		t.Errorf("event persisted before session ended: %+v", got)
	}
}
