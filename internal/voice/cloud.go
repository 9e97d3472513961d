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
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/vestonlabs/voxhub/internal/audio"
	"github.com/vestonlabs/voxhub/internal/chat"
	"github.com/vestonlabs/voxhub/internal/logging"
)

// TranscriptionClient is the slice of the remote transcription API the
// cloud engine needs.
type TranscriptionClient interface {
	// Ready reports whether a credential is configured. It is checked
	// before any capture begins.
	Ready() error

	// Transcribe sends a complete WAV utterance and returns its
	// transcript. An empty transcript with a nil error means the service
	// answered but produced nothing usable.
	Transcribe(ctx context.Context, wavData []byte, turns []chat.Turn) (string, error)
}

// CloudEngineConfig carries the collaborators and tuning for a CloudEngine.
type CloudEngineConfig struct {
	Dispatcher Dispatcher
	Listener   Listener
	Session    *Session

	// Sources opens the microphone. Called once per session; the engine
	// owns the returned source until the session ends.
	Sources func() (audio.Source, error)

	Client  TranscriptionClient
	Context chat.ContextProvider // optional

	// SilenceWindow is how much trailing sub-threshold audio ends the
	// capture once speech has been heard.
	SilenceWindow time.Duration

	// RMSThreshold is the normalized per-frame energy above which a
	// frame counts as speech.
	RMSThreshold float64

	// MaxCapture caps the whole recording; MinCapture rejects blips too
	// short to transcribe.
	MaxCapture time.Duration
	MinCapture time.Duration

	// FrameSize is the per-read sample count.
	FrameSize int

	// ContextTurns is how many recent conversation turns accompany the
	// audio.
	ContextTurns int
}

// CloudEngine records one whole utterance, detecting the end of speech with
// a frame-level RMS gate, then ships the buffered audio to the remote
// transcription service in a single request. There are no partial results;
// the first transcript is the final one.
type CloudEngine struct {
	d        Dispatcher
	listener Listener
	session  *Session
	sources  func() (audio.Source, error)
	client   TranscriptionClient
	turns    chat.ContextProvider

	silence      time.Duration
	rmsThreshold float64
	maxCapture   time.Duration
	minCapture   time.Duration
	frameSize    int
	contextTurns int

	// cancelled is the cross-goroutine kill switch: the capture
	// goroutine checks it once per frame and again before acting on the
	// network response.
	cancelled atomic.Bool

	source   audio.Source
	ctx      context.Context
	ctxStop  context.CancelFunc
	active   bool
	terminal bool
}

// NewCloudEngine builds a cloud engine for one session.
func NewCloudEngine(cfg CloudEngineConfig) *CloudEngine {
	return &CloudEngine{
		d:            cfg.Dispatcher,
		listener:     cfg.Listener,
		session:      cfg.Session,
		sources:      cfg.Sources,
		client:       cfg.Client,
		turns:        cfg.Context,
		silence:      cfg.SilenceWindow,
		rmsThreshold: cfg.RMSThreshold,
		maxCapture:   cfg.MaxCapture,
		minCapture:   cfg.MinCapture,
		frameSize:    cfg.FrameSize,
		contextTurns: cfg.ContextTurns,
	}
}

// Kind implements Engine.
func (e *CloudEngine) Kind() EngineKind { return EngineCloud }

// Active implements Engine. Loop-affine.
func (e *CloudEngine) Active() bool { return e.active }

// Start verifies the credential, opens the microphone, and launches the
// capture goroutine. Either failure surfaces here and the engine never
// becomes active.
func (e *CloudEngine) Start() error {
	if err := e.client.Ready(); err != nil {
		return fmt.Errorf("cloud engine unavailable: %w", err)
	}
	source, err := e.sources()
	if err != nil {
		return fmt.Errorf("failed to open audio source: %w", err)
	}
	e.source = source
	e.ctx, e.ctxStop = context.WithCancel(context.Background())
	e.active = true
	go e.capture(source)
	return nil
}

// Cancel implements Engine. The atomic flag stops the capture loop at the
// next frame boundary; closing the source unblocks a read in progress and
// cancelling the context aborts an in-flight request.
func (e *CloudEngine) Cancel() {
	if e.terminal {
		return
	}
	e.terminal = true
	e.active = false
	e.cancelled.Store(true)
	e.ctxStop()
	if e.source != nil {
		e.source.Close()
		e.source = nil
	}
}

// finish posts the terminal callback onto the dispatch goroutine, where the
// terminal flag guarantees exactly-once delivery even if Cancel raced in.
func (e *CloudEngine) finish(fn func()) {
	e.d.Post(func() {
		if e.terminal {
			return
		}
		e.terminal = true
		e.active = false
		if e.ctxStop != nil {
			e.ctxStop()
		}
		e.source = nil
		fn()
	})
}

// capture runs on its own goroutine: buffer frames until the utterance
// ends, release the microphone, then transcribe.
func (e *CloudEngine) capture(source audio.Source) {
	rate := source.SampleRate()
	maxSamples := int(e.maxCapture.Seconds() * float64(rate))
	minSamples := int(e.minCapture.Seconds() * float64(rate))
	silenceSamples := int(e.silence.Seconds() * float64(rate))

	e.d.Post(func() {
		if e.terminal {
			return
		}
		e.listener.ReadyForSpeech()
	})

	var pcm []int16
	frame := make([]int16, e.frameSize)
	speechHeard := false
	silenceRun := 0

	for {
		if e.cancelled.Load() {
			return
		}
		n, err := source.ReadFrame(frame)
		if err != nil {
			if e.cancelled.Load() {
				// Cancel closed the source under us.
				return
			}
			source.Close()
			e.finish(func() {
				e.listener.EngineError(fmt.Errorf("audio capture failed: %w", err))
			})
			return
		}
		if n == 0 {
			continue
		}
		pcm = append(pcm, frame[:n]...)

		if audio.RMS(frame[:n]) >= e.rmsThreshold {
			speechHeard = true
			silenceRun = 0
		} else if speechHeard {
			silenceRun += n
			if silenceRun >= silenceSamples {
				break
			}
		}
		if len(pcm) >= maxSamples {
			break
		}
	}

	// Release the microphone before going near the network.
	source.Close()
	if e.cancelled.Load() {
		return
	}

	audioSeconds := float64(len(pcm)) / float64(rate)

	if !speechHeard || len(pcm) < minSamples {
		logging.LogSessionEvent(e.session.ID, string(EngineCloud), "Capture too quiet to transcribe",
			zap.Float64("audio_seconds", audioSeconds),
			zap.Bool("speech_heard", speechHeard))
		e.finish(func() {
			e.session.AudioSeconds = audioSeconds
			e.listener.Stopped()
		})
		return
	}

	wavData, err := audio.EncodeWAV(pcm, rate)
	if err != nil {
		e.finish(func() {
			e.listener.EngineError(fmt.Errorf("failed to encode capture: %w", err))
		})
		return
	}

	transcript, err := e.client.Transcribe(e.ctx, wavData, e.recentTurns())
	if e.cancelled.Load() {
		// The user moved on while the request was in flight; the
		// response is nobody's business now.
		return
	}
	if err != nil {
		e.finish(func() {
			e.listener.EngineError(fmt.Errorf("cloud transcription failed: %w", err))
		})
		return
	}
	if transcript == "" {
		e.finish(func() {
			e.session.AudioSeconds = audioSeconds
			e.listener.Stopped()
		})
		return
	}
	e.finish(func() {
		e.session.AudioSeconds = audioSeconds
		e.session.AddSegment(transcript)
		e.listener.FinalResult(transcript)
	})
}

func (e *CloudEngine) recentTurns() []chat.Turn {
	if e.turns == nil || e.contextTurns <= 0 {
		return nil
	}
	turns, err := e.turns.RecentTurns(e.contextTurns)
	if err != nil {
		logging.LogWarn("Failed to load conversation context, transcribing without it",
			zap.Error(err))
		return nil
	}
	return turns
}
