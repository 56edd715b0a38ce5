package media

import (
	"errors"
	"testing"
)

func TestNewFFmpegProcessor_Defaults(t *testing.T) {
	p := NewFFmpegProcessor("", "")
	if p.ffmpegPath != "ffmpeg" {
		t.Errorf("expected default ffmpeg path, got %q", p.ffmpegPath)
	}
	if p.ffprobePath != "ffprobe" {
		t.Errorf("expected default ffprobe path, got %q", p.ffprobePath)
	}

	p = NewFFmpegProcessor("/opt/ffmpeg/bin/ffmpeg", "/opt/ffmpeg/bin/ffprobe")
	if p.ffmpegPath != "/opt/ffmpeg/bin/ffmpeg" {
		t.Errorf("expected custom ffmpeg path, got %q", p.ffmpegPath)
	}
}

func TestEncodeArgs(t *testing.T) {
	tests := []struct {
		format string
		want   []string
	}{
		{"mp3", []string{"-b:a", "192k"}},
		{"m4a", []string{"-c:a", "aac", "-b:a", "192k"}},
		{"wav", []string{"-c:a", "pcm_s16le", "-ar", "44100", "-ac", "2"}},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			got, err := encodeArgs(tt.format)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected args %v, got %v", tt.want, got)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("expected args %v, got %v", tt.want, got)
				}
			}
		})
	}

	for _, format := range []string{"", "ogg", "MP3"} {
		if _, err := encodeArgs(format); !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("encodeArgs(%q): expected ErrUnsupportedFormat, got %v", format, err)
		}
	}
}

func TestParseProgressLine(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		wantUs int64
		wantOk bool
	}{
		{"out_time_us", "out_time_us=1500000", 1500000, true},
		{"out_time_ms carries microseconds", "out_time_ms=1500000", 1500000, true},
		{"leading whitespace", "  out_time_us=42", 42, true},
		{"other key", "frame=100", 0, false},
		{"out_time text form", "out_time=00:00:01.500000", 0, false},
		{"no separator", "progress", 0, false},
		{"non-numeric value", "out_time_us=N/A", 0, false},
		{"negative value", "out_time_us=-1", 0, false},
		{"empty line", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			us, ok := parseProgressLine(tt.line)
			if ok != tt.wantOk {
				t.Fatalf("parseProgressLine(%q) ok = %v, want %v", tt.line, ok, tt.wantOk)
			}
			if us != tt.wantUs {
				t.Errorf("parseProgressLine(%q) = %d, want %d", tt.line, us, tt.wantUs)
			}
		})
	}
}

func TestFormatSeconds(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{0, "0.000"},
		{1, "0.001"},
		{1500, "1.500"},
		{61250, "61.250"},
	}

	for _, tt := range tests {
		if got := formatSeconds(tt.ms); got != tt.want {
			t.Errorf("formatSeconds(%d) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}

func TestFFmpegError(t *testing.T) {
	cause := errors.New("exit status 1")
	err := &FFmpegError{Args: []string{"-i", "in.wav"}, Stderr: "boom", Err: cause}

	if !errors.Is(err, cause) {
		t.Error("expected FFmpegError to unwrap its cause")
	}
	msg := err.Error()
	if msg == "" {
		t.Error("expected non-empty error message")
	}
}
