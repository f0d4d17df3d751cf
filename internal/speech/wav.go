// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package speech

import (
	"encoding/binary"
	"io"
)

// =============================================================================
// WAV ENCODING
// =============================================================================

const (
	wavChannels      = 1
	wavBitsPerSample = 16
)

// WriteWAV wraps raw 24 kHz mono 16-bit PCM in a RIFF/WAVE container so
// system players can handle it.
func WriteWAV(w io.Writer, pcm []byte) error {
	dataLen := uint32(len(pcm))
	byteRate := uint32(SampleRate * wavChannels * wavBitsPerSample / 8)
	blockAlign := uint16(wavChannels * wavBitsPerSample / 8)

	// RIFF chunk
	if _, err := w.Write([]byte("RIFF")); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, 36+dataLen); err != nil {
		return err
	}
	if _, err := w.Write([]byte("WAVE")); err != nil {
		return err
	}

	// fmt chunk
	if _, err := w.Write([]byte("fmt ")); err != nil {
		return err
	}
	for _, v := range []any{
		uint32(16), // chunk size
		uint16(1),  // PCM format
		uint16(wavChannels),
		uint32(SampleRate),
		byteRate,
		blockAlign,
		uint16(wavBitsPerSample),
	} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}

	// data chunk
	if _, err := w.Write([]byte("data")); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, dataLen); err != nil {
		return err
	}
	_, err := w.Write(pcm)
	return err
}
