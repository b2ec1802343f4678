package infrastructure

import (
	"testing"

	"github.com/yuzuru-s/kanade/internal/modules/music/application/ports"
)

func TestIsAudioFile(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{key: "music/song.mp3", want: true},
		{key: "music/Song.FLAC", want: true},
		{key: "music/nested/dir/track.ogg", want: true},
		{key: "music/cover.jpg", want: false},
		{key: "music/notes.txt", want: false},
		{key: "music/song.mp3.bak", want: false},
	}
	for _, tt := range tests {
		if got := isAudioFile(tt.key); got != tt.want {
			t.Errorf("isAudioFile(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestStripExtension(t *testing.T) {
	if got := stripExtension("party_horn.mp3"); got != "party_horn" {
		t.Errorf("stripExtension() = %q, want party_horn", got)
	}
	if got := stripExtension("no-extension"); got != "no-extension" {
		t.Errorf("stripExtension() = %q, want no-extension", got)
	}
}

func TestHumanizeEffectID(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{id: "party_horn", want: "Party Horn"},
		{id: "drum-roll", want: "Drum Roll"},
		{id: "bell", want: "Bell"},
		{id: "éclat_fanfare", want: "Éclat Fanfare"},
		{id: "übung", want: "Übung"},
	}
	for _, tt := range tests {
		if got := humanizeEffectID(tt.id); got != tt.want {
			t.Errorf("humanizeEffectID(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func libraryFixture() []ports.LibraryEntry {
	return []ports.LibraryEntry{
		{Key: "music/b.mp3", Filename: "b.mp3", Title: "Beta", Artist: "Zeta", Album: "First"},
		{Key: "music/a.mp3", Filename: "a.mp3", Title: "alpha", Artist: "Yankee", Album: "Second"},
		{Key: "music/c.mp3", Filename: "c.mp3", Title: "Gamma", Artist: "Zeta", Album: "First"},
	}
}

func titles(entries []ports.LibraryEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Title
	}
	return out
}

func TestFilterEntries(t *testing.T) {
	tests := []struct {
		name  string
		query ports.LibraryQuery
		want  []string
	}{
		{name: "no filters", query: ports.LibraryQuery{}, want: []string{"Beta", "alpha", "Gamma"}},
		{name: "search title", query: ports.LibraryQuery{Search: "gam"}, want: []string{"Gamma"}},
		{name: "search filename", query: ports.LibraryQuery{Search: "a.mp3"}, want: []string{"alpha"}},
		{name: "artist filter", query: ports.LibraryQuery{Artist: "zeta"}, want: []string{"Beta", "Gamma"}},
		{name: "album filter", query: ports.LibraryQuery{Album: "second"}, want: []string{"alpha"}},
		{name: "no match", query: ports.LibraryQuery{Search: "delta"}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := titles(filterEntries(libraryFixture(), tt.query))
			if len(got) != len(tt.want) {
				t.Fatalf("filtered titles = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("filtered[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSortEntries(t *testing.T) {
	tests := []struct {
		name  string
		field string
		order string
		want  []string
	}{
		{name: "title asc is case-insensitive", field: "title", order: "asc", want: []string{"alpha", "Beta", "Gamma"}},
		{name: "title desc", field: "title", order: "desc", want: []string{"Gamma", "Beta", "alpha"}},
		{name: "artist asc keeps stable order within ties", field: "artist", order: "asc", want: []string{"alpha", "Beta", "Gamma"}},
		{name: "unknown field falls back to title", field: "bogus", order: "asc", want: []string{"alpha", "Beta", "Gamma"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries := libraryFixture()
			sortEntries(entries, tt.field, tt.order)
			got := titles(entries)
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("sorted[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}
