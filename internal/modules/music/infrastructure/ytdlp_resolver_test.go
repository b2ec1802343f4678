package infrastructure

import (
	"testing"
	"time"

	"github.com/yuzuru-s/kanade/internal/modules/music/domain"
)

func TestParseTrackLines(t *testing.T) {
	output := []byte(`{"title":"First","webpage_url":"https://example.com/1","duration":215.4,"uploader":"Artist A","thumbnail":"https://img.example.com/1.jpg"}
{"title":"Second","url":"https://example.com/2","duration":60}

not json at all
{"title":"No locator"}`)

	tracks, err := parseTrackLines(output)
	if err != nil {
		t.Fatalf("parseTrackLines() error = %v", err)
	}
	if len(tracks) != 2 {
		t.Fatalf("parsed %d tracks, want 2", len(tracks))
	}

	first := tracks[0]
	if first.Title != "First" || first.Locator != "https://example.com/1" {
		t.Errorf("first track = %+v", first)
	}
	if first.Artist != "Artist A" || first.ThumbnailURL != "https://img.example.com/1.jpg" {
		t.Errorf("first track metadata = %+v", first)
	}
	if first.Duration == nil || *first.Duration != 215*time.Second {
		t.Errorf("first duration = %v, want 215s", first.Duration)
	}
	if first.Kind != domain.SourceKindStream {
		t.Errorf("kind = %v, want stream", first.Kind)
	}

	// webpage_url absent falls back to url.
	if tracks[1].Locator != "https://example.com/2" {
		t.Errorf("second locator = %q", tracks[1].Locator)
	}
}

func TestParseTrackLinesDefaults(t *testing.T) {
	tracks, err := parseTrackLines([]byte(`{"url":"https://example.com/x"}`))
	if err != nil {
		t.Fatalf("parseTrackLines() error = %v", err)
	}
	if len(tracks) != 1 {
		t.Fatalf("parsed %d tracks, want 1", len(tracks))
	}
	track := tracks[0]
	if track.Title != "Unknown Title" {
		t.Errorf("title = %q, want Unknown Title", track.Title)
	}
	if track.Artist != "Unknown" {
		t.Errorf("artist = %q, want Unknown", track.Artist)
	}
	if track.Duration != nil {
		t.Errorf("duration = %v, want nil for an unreported duration", track.Duration)
	}
}

func TestParseTrackLinesEmpty(t *testing.T) {
	tracks, err := parseTrackLines(nil)
	if err != nil {
		t.Fatalf("parseTrackLines() error = %v", err)
	}
	if len(tracks) != 0 {
		t.Errorf("parsed %d tracks from empty output, want 0", len(tracks))
	}
}

func TestIsURL(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{input: "https://youtube.com/watch?v=abc", want: true},
		{input: "http://example.com", want: true},
		{input: "never gonna give you up", want: false},
		{input: "ftp://example.com", want: false},
		{input: "", want: false},
	}
	for _, tt := range tests {
		if got := isURL(tt.input); got != tt.want {
			t.Errorf("isURL(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestDecodeArgs(t *testing.T) {
	args := decodeArgs("pipe:0")
	want := []string{"-i", "pipe:0", "-f", "s16le", "-ar", "48000", "-ac", "2", "-loglevel", "warning", "pipe:1"}
	if len(args) != len(want) {
		t.Fatalf("decodeArgs() = %v, want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Errorf("args[%d] = %q, want %q", i, args[i], want[i])
		}
	}
}

func TestFirstLine(t *testing.T) {
	got := firstLine([]byte("  ERROR: video unavailable\nmore context\n"))
	if got != "ERROR: video unavailable" {
		t.Errorf("firstLine() = %q", got)
	}
}
