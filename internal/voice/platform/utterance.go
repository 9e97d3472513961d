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

package platform

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/vestonlabs/voxhub/internal/audio"
	"github.com/vestonlabs/voxhub/internal/logging"
)

// Transcriber converts captured audio samples to text.
type Transcriber interface {
	Transcribe(samples []float32, sampleRate int) (string, error)
	Close() error
}

// UtteranceConfig tunes the single-utterance capture. EndSilence is the
// recognizer's internal end-of-speech assist; it is deliberately short and
// independent of the engine-level silence window above it.
type UtteranceConfig struct {
	RMSThreshold float64
	EndSilence   time.Duration
	StartTimeout time.Duration
	MaxUtterance time.Duration
	FrameSize    int
}

// DefaultUtteranceConfig returns the capture defaults.
func DefaultUtteranceConfig() UtteranceConfig {
	return UtteranceConfig{
		RMSThreshold: 0.012,
		EndSilence:   800 * time.Millisecond,
		StartTimeout: 6 * time.Second,
		MaxUtterance: 15 * time.Second,
		FrameSize:    1024,
	}
}

// UtteranceRecognizer captures one utterance from an audio source, detects
// its end by RMS silence, and transcribes it. It implements Recognizer.
type UtteranceRecognizer struct {
	source      audio.Source
	transcriber Transcriber
	cfg         UtteranceConfig
	destroyed   atomic.Bool
}

// NewUtteranceRecognizer wraps source and transcriber into a
// single-utterance recognizer. The recognizer takes ownership of the source
// and closes it on Destroy.
func NewUtteranceRecognizer(source audio.Source, transcriber Transcriber, cfg UtteranceConfig) *UtteranceRecognizer {
	if cfg.FrameSize <= 0 {
		cfg = DefaultUtteranceConfig()
	}
	return &UtteranceRecognizer{
		source:      source,
		transcriber: transcriber,
		cfg:         cfg,
	}
}

// Start begins the capture attempt. Events are delivered from a background
// goroutine until a result or error, or until Destroy.
func (r *UtteranceRecognizer) Start(ev Events) error {
	if r.destroyed.Load() {
		return fmt.Errorf("recognizer already destroyed")
	}

	go r.capture(ev)
	return nil
}

// Destroy stops the capture and releases the audio source. No events are
// delivered after Destroy; the capture goroutine observes the flag before
// emitting.
func (r *UtteranceRecognizer) Destroy() {
	if r.destroyed.Swap(true) {
		return
	}
	_ = r.source.Close()
}

func (r *UtteranceRecognizer) capture(ev Events) {
	sampleRate := r.source.SampleRate()
	frame := make([]int16, r.cfg.FrameSize)

	var captured []float32
	var speechSeen bool
	var silenceStart time.Time
	started := time.Now()

	if !r.emit(ev, func() { ev.Ready() }) {
		return
	}

	for {
		if r.destroyed.Load() {
			return
		}

		n, err := r.source.ReadFrame(frame)
		if err != nil {
			// A read error after Destroy is just the source closing.
			if r.destroyed.Load() {
				return
			}
			r.emit(ev, func() { ev.RecognizerError(fmt.Errorf("%w: %v", ErrClient, err)) })
			return
		}

		level := audio.RMS(frame[:n])
		now := time.Now()

		if level >= r.cfg.RMSThreshold {
			if !speechSeen {
				speechSeen = true
				if !r.emit(ev, func() { ev.BeginningOfSpeech() }) {
					return
				}
			}
			silenceStart = time.Time{}
		} else if speechSeen && silenceStart.IsZero() {
			silenceStart = now
		}

		if speechSeen {
			captured = append(captured, audio.Samples16ToFloat32(frame[:n])...)
		}

		switch {
		case !speechSeen && now.Sub(started) > r.cfg.StartTimeout:
			r.emit(ev, func() { ev.RecognizerError(ErrTimeout) })
			return
		case speechSeen && !silenceStart.IsZero() && now.Sub(silenceStart) > r.cfg.EndSilence:
			r.finish(ev, captured, sampleRate)
			return
		case speechSeen && now.Sub(started) > r.cfg.MaxUtterance:
			r.finish(ev, captured, sampleRate)
			return
		}
	}
}

func (r *UtteranceRecognizer) finish(ev Events, captured []float32, sampleRate int) {
	text, err := r.transcriber.Transcribe(captured, sampleRate)
	if err != nil {
		r.emit(ev, func() { ev.RecognizerError(fmt.Errorf("%w: %v", ErrClient, err)) })
		return
	}

	text = strings.TrimSpace(text)
	if logging.Sugar != nil {
		logging.Sugar.Debugw("Utterance captured",
			"samples", len(captured),
			"text_length", len(text),
		)
	}

	r.emit(ev, func() { ev.Result(text) })
}

// emit runs fn unless the recognizer was destroyed. Returns false when the
// capture goroutine should bail out.
func (r *UtteranceRecognizer) emit(ev Events, fn func()) bool {
	if r.destroyed.Load() {
		return false
	}
	fn()
	return true
}

// NewUtteranceFactory returns a Factory producing utterance recognizers
// over fresh audio sources. Each attempt acquires its own source so the
// capture device is fully released between destroy and recreate.
func NewUtteranceFactory(
	sources func() (audio.Source, error),
	transcriber Transcriber,
	cfg UtteranceConfig,
) Factory {
	return FactoryFunc(func() (Recognizer, error) {
		source, err := sources()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoPermission, err)
		}
		return NewUtteranceRecognizer(source, transcriber, cfg), nil
	})
}
