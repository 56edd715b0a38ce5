package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestPayloadSize(t *testing.T) {
	tests := []struct {
		name       string
		durationMs int64
		want       int
	}{
		{"one second", 1000, 44100 * 2 * 2},
		{"ten milliseconds", 10, 441 * 2 * 2},
		// 44100 * 1 / 1000 = 44.1, rounded up to 45 samples.
		{"partial sample rounds up", 1, 45 * 2 * 2},
		{"two seconds", 2000, 88200 * 2 * 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PayloadSize(tt.durationMs); got != tt.want {
				t.Errorf("PayloadSize(%d) = %d, want %d", tt.durationMs, got, tt.want)
			}
		})
	}
}

func TestSilence_Header(t *testing.T) {
	data, err := Silence(500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dataSize := PayloadSize(500)
	if len(data) != HeaderSize+dataSize {
		t.Fatalf("expected %d bytes, got %d", HeaderSize+dataSize, len(data))
	}

	if string(data[0:4]) != "RIFF" {
		t.Errorf("expected RIFF magic, got %q", data[0:4])
	}
	if got := binary.LittleEndian.Uint32(data[4:8]); got != uint32(36+dataSize) {
		t.Errorf("expected RIFF size %d, got %d", 36+dataSize, got)
	}
	if string(data[8:12]) != "WAVE" {
		t.Errorf("expected WAVE magic, got %q", data[8:12])
	}
	if string(data[12:16]) != "fmt " {
		t.Errorf("expected fmt chunk, got %q", data[12:16])
	}
	if got := binary.LittleEndian.Uint16(data[20:22]); got != 1 {
		t.Errorf("expected PCM format tag, got %d", got)
	}
	if got := binary.LittleEndian.Uint16(data[22:24]); got != Channels {
		t.Errorf("expected %d channels, got %d", Channels, got)
	}
	if got := binary.LittleEndian.Uint32(data[24:28]); got != SampleRate {
		t.Errorf("expected sample rate %d, got %d", SampleRate, got)
	}
	if got := binary.LittleEndian.Uint32(data[28:32]); got != SampleRate*Channels*BytesPerSample {
		t.Errorf("unexpected byte rate %d", got)
	}
	if got := binary.LittleEndian.Uint16(data[34:36]); got != 16 {
		t.Errorf("expected 16-bit depth, got %d", got)
	}
	if string(data[36:40]) != "data" {
		t.Errorf("expected data chunk, got %q", data[36:40])
	}
	if got := binary.LittleEndian.Uint32(data[40:44]); got != uint32(dataSize) {
		t.Errorf("expected data size %d, got %d", dataSize, got)
	}

	for i, b := range data[HeaderSize:] {
		if b != 0 {
			t.Fatalf("expected zero payload, found byte %d at offset %d", b, i)
		}
	}
}

func TestSilence_Deterministic(t *testing.T) {
	a, err := Silence(1234)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := Silence(1234)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("expected identical output for identical duration")
	}
}

func TestSilence_NonPositiveDuration(t *testing.T) {
	for _, d := range []int64{0, -1, -1000} {
		if _, err := Silence(d); !errors.Is(err, ErrNonPositiveDuration) {
			t.Errorf("Silence(%d): expected ErrNonPositiveDuration, got %v", d, err)
		}
	}
}

func TestWriteSilence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "silence.wav")

	if err := WriteSilence(path, 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read written file: %v", err)
	}
	want, _ := Silence(100)
	if !bytes.Equal(data, want) {
		t.Error("written file differs from in-memory image")
	}
}
