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

package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
)

// ErrSourceClosed is returned by ReadFrame after Close.
var ErrSourceClosed = errors.New("audio source closed")

// NATSSource is a Source fed by microphone frames a relay publishes over
// NATS. Payloads are raw little-endian 16-bit PCM; whatever chunking the
// relay uses is rebuffered into the caller's frame size.
type NATSSource struct {
	sub      *nats.Subscription
	msgs     chan *nats.Msg
	rate     int
	leftover []int16

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewNATSSource subscribes to the given subject and starts buffering
// frames. The subscription lives until Close.
func NewNATSSource(conn *nats.Conn, subject string, sampleRate int) (*NATSSource, error) {
	if conn == nil {
		return nil, fmt.Errorf("NATS connection not established")
	}

	msgs := make(chan *nats.Msg, 64)
	sub, err := conn.ChanSubscribe(subject, msgs)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	return &NATSSource{
		sub:  sub,
		msgs: msgs,
		rate: sampleRate,
		done: make(chan struct{}),
	}, nil
}

// SampleRate implements Source.
func (s *NATSSource) SampleRate() int { return s.rate }

// ReadFrame implements Source. It blocks until enough samples arrive to
// fill frame, or returns a short count when a relay message ends mid-frame.
func (s *NATSSource) ReadFrame(frame []int16) (int, error) {
	if len(s.leftover) > 0 {
		n := copy(frame, s.leftover)
		s.leftover = s.leftover[n:]
		return n, nil
	}

	for {
		select {
		case <-s.done:
			return 0, ErrSourceClosed
		case msg := <-s.msgs:
			samples := decodePCM16(msg.Data)
			if len(samples) == 0 {
				continue
			}
			n := copy(frame, samples)
			s.leftover = samples[n:]
			return n, nil
		}
	}
}

// Close implements Source. Idempotent; a blocked ReadFrame unblocks with
// ErrSourceClosed.
func (s *NATSSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	return s.sub.Unsubscribe()
}

func decodePCM16(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples
}
