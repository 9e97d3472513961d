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
	"bytes"
	"encoding/binary"
	"fmt"
)

// EncodeWAV wraps raw 16-bit mono PCM in a minimal WAV container so the
// payload is self-describing for the transcription service.
func EncodeWAV(samples []int16, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", sampleRate)
	}

	dataSize := len(samples) * 2
	fileSize := 36 + dataSize

	var buf bytes.Buffer
	buf.Grow(44 + dataSize)

	buf.WriteString("RIFF")
	writeUint32(&buf, uint32(fileSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	writeUint32(&buf, 16)                       // Subchunk1Size (PCM)
	writeUint16(&buf, 1)                        // AudioFormat (1 = integer PCM)
	writeUint16(&buf, 1)                        // NumChannels (mono)
	writeUint32(&buf, uint32(sampleRate))       // SampleRate
	writeUint32(&buf, uint32(sampleRate*2))     // ByteRate
	writeUint16(&buf, 2)                        // BlockAlign
	writeUint16(&buf, 16)                       // BitsPerSample
	buf.WriteString("data")
	writeUint32(&buf, uint32(dataSize))

	for _, sample := range samples {
		writeUint16(&buf, uint16(sample))
	}

	return buf.Bytes(), nil
}

func writeUint16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}
