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

// Package audio holds the low-level capture primitives shared by the
// recognition engines: the capture source contract, RMS level measurement,
// and the minimal WAV container used to ship PCM to the transcription
// service.
package audio

import "math"

// Source delivers fixed-size frames of 16-bit mono PCM from a capture
// device. A Source is exclusively owned by one engine instance at a time;
// Close releases the device so the next session can acquire it.
type Source interface {
	// ReadFrame fills frame with samples and returns the number written.
	// It blocks until a full frame is available or the source is closed.
	ReadFrame(frame []int16) (int, error)

	// SampleRate returns the capture rate in Hz.
	SampleRate() int

	// Close stops capture and releases the device.
	Close() error
}

// RMS computes the root-mean-square level of a PCM frame, normalized to
// [0, 1] against full scale.
func RMS(frame []int16) float64 {
	if len(frame) == 0 {
		return 0
	}

	var sum float64
	for _, s := range frame {
		v := float64(s)
		sum += v * v
	}

	return math.Sqrt(sum/float64(len(frame))) / 32768.0
}

// Samples16ToFloat32 converts 16-bit PCM to the normalized float32 form the
// local transcriber consumes.
func Samples16ToFloat32(pcm []int16) []float32 {
	out := make([]float32, len(pcm))
	for i, s := range pcm {
		out[i] = float32(s) / 32768.0
	}
	return out
}
