// Package wav synthesizes WAV containers holding digital silence.
// The 44-byte RIFF header is written by hand because the downstream ffmpeg
// concat step parses it; all multi-byte fields are little-endian.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

// Fixed sample format for synthesized silence.
const (
	SampleRate     = 44100
	Channels       = 2
	BytesPerSample = 2 // 16-bit linear PCM

	// HeaderSize is the byte length of the RIFF/fmt/data headers preceding
	// the sample payload.
	HeaderSize = 44
)

// ErrNonPositiveDuration is returned when the requested duration is zero or negative.
var ErrNonPositiveDuration = errors.New("silence duration must be positive")

// PayloadSize returns the sample payload length in bytes for a silence of the
// given duration: ceil(durationMs * SampleRate / 1000) samples per channel.
func PayloadSize(durationMs int64) int {
	samples := (durationMs*SampleRate + 999) / 1000
	return int(samples) * Channels * BytesPerSample
}

// Silence produces a complete WAV file image of the given duration, all
// samples zero. The output is deterministic: identical input yields
// byte-identical output (the header carries no timestamps).
func Silence(durationMs int64) ([]byte, error) {
	if durationMs <= 0 {
		return nil, fmt.Errorf("%w: %dms", ErrNonPositiveDuration, durationMs)
	}

	dataSize := PayloadSize(durationMs)
	buf := make([]byte, HeaderSize+dataSize)

	// RIFF chunk
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize)) // file size - 8
	copy(buf[8:12], "WAVE")

	// fmt sub-chunk
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16) // fmt chunk size
	binary.LittleEndian.PutUint16(buf[20:22], 1)  // PCM
	binary.LittleEndian.PutUint16(buf[22:24], Channels)
	binary.LittleEndian.PutUint32(buf[24:28], SampleRate)
	binary.LittleEndian.PutUint32(buf[28:32], SampleRate*Channels*BytesPerSample) // byte rate
	binary.LittleEndian.PutUint16(buf[32:34], Channels*BytesPerSample)            // block align
	binary.LittleEndian.PutUint16(buf[34:36], 8*BytesPerSample)                   // bit depth

	// data sub-chunk; payload is already zeroed
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))

	return buf, nil
}

// WriteSilence writes a silence WAV of the given duration to path.
func WriteSilence(path string, durationMs int64) error {
	data, err := Silence(durationMs)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write silence file: %w", err)
	}
	return nil
}
