package infrastructure

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/yuzuru-s/kanade/internal/modules/music/application"
	"github.com/yuzuru-s/kanade/internal/modules/music/application/ports"
	"github.com/yuzuru-s/kanade/internal/modules/music/domain"
)

// Compile-time check that YtdlpResolver implements the resolver port.
var _ ports.TrackResolver = (*YtdlpResolver)(nil)

// YtdlpResolver resolves queries and URLs through the yt-dlp extractor and
// decodes audio to PCM through ffmpeg. Both run as subprocesses; the
// resolver itself holds no state.
type YtdlpResolver struct {
	ytdlpPath  string
	ffmpegPath string
}

// NewYtdlpResolver creates a new YtdlpResolver. Empty paths fall back to
// looking the binaries up on PATH.
func NewYtdlpResolver(ytdlpPath, ffmpegPath string) *YtdlpResolver {
	if ytdlpPath == "" {
		ytdlpPath = "yt-dlp"
	}
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &YtdlpResolver{ytdlpPath: ytdlpPath, ffmpegPath: ffmpegPath}
}

// ResolveOne resolves a single query or URL into a track. Plain text is
// treated as a search taking the first hit.
func (r *YtdlpResolver) ResolveOne(ctx context.Context, query string) (domain.Track, error) {
	target := strings.TrimSpace(query)
	if !isURL(target) {
		target = "ytsearch1:" + target
	}

	tracks, err := r.dumpJSON(ctx, target, "--no-playlist")
	if err != nil {
		return domain.Track{}, err
	}
	if len(tracks) == 0 {
		return domain.Track{}, fmt.Errorf("%w for %q", application.ErrNoResults, query)
	}
	return tracks[0], nil
}

// Search returns up to limit tracks matching the query, using yt-dlp's
// search pseudo-URL.
func (r *YtdlpResolver) Search(ctx context.Context, query string, limit int) ([]domain.Track, error) {
	if limit <= 0 {
		limit = 5
	}
	return r.dumpJSON(ctx, fmt.Sprintf("ytsearch%d:%s", limit, query), "--no-playlist")
}

// ResolvePlaylist expands a playlist URL into its tracks in order. The
// flat listing avoids resolving every entry up front; per-entry formats
// are resolved lazily when the entry reaches the sink.
func (r *YtdlpResolver) ResolvePlaylist(ctx context.Context, url string) ([]domain.Track, error) {
	return r.dumpJSON(ctx, url, "--flat-playlist")
}

// dumpJSON runs yt-dlp in metadata mode and parses its line-delimited
// JSON output.
func (r *YtdlpResolver) dumpJSON(ctx context.Context, target string, extraArgs ...string) ([]domain.Track, error) {
	args := append([]string{"--format", "bestaudio/best", "--dump-json"}, extraArgs...)
	args = append(args, target)

	cmd := exec.CommandContext(ctx, r.ytdlpPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("yt-dlp failed for %q: %w: %s", target, err, firstLine(stderr.Bytes()))
	}
	return parseTrackLines(output)
}

// OpenAudioSource acquires a PCM stream for the track. Stream tracks are
// piped through yt-dlp into ffmpeg; storage and effect tracks carry a
// direct URL that ffmpeg fetches itself.
func (r *YtdlpResolver) OpenAudioSource(ctx context.Context, track domain.Track) (ports.AudioSource, error) {
	if track.Kind == domain.SourceKindStream {
		return r.openPiped(ctx, track.Locator)
	}
	return r.openDirect(ctx, track.Locator)
}

func (r *YtdlpResolver) openPiped(ctx context.Context, url string) (ports.AudioSource, error) {
	ytdlp := exec.CommandContext(ctx, r.ytdlpPath, "-o", "-", "-f", "bestaudio/best", url)
	ffmpeg := exec.CommandContext(ctx, r.ffmpegPath, decodeArgs("pipe:0")...)

	pipe, err := ytdlp.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("yt-dlp stdout pipe: %w", err)
	}
	ffmpeg.Stdin = pipe

	reader, err := ffmpeg.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}

	if err := ytdlp.Start(); err != nil {
		return nil, fmt.Errorf("starting yt-dlp: %w", err)
	}
	if err := ffmpeg.Start(); err != nil {
		killAndReap(ytdlp)
		return nil, fmt.Errorf("starting ffmpeg: %w", err)
	}

	return &processSource{
		reader: reader,
		kill: func() {
			killAndReap(ffmpeg)
			killAndReap(ytdlp)
		},
	}, nil
}

func (r *YtdlpResolver) openDirect(ctx context.Context, url string) (ports.AudioSource, error) {
	ffmpeg := exec.CommandContext(ctx, r.ffmpegPath, decodeArgs(url)...)

	reader, err := ffmpeg.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	if err := ffmpeg.Start(); err != nil {
		return nil, fmt.Errorf("starting ffmpeg: %w", err)
	}

	return &processSource{
		reader: reader,
		kill:   func() { killAndReap(ffmpeg) },
	}, nil
}

// decodeArgs builds the ffmpeg argument list decoding any input into
// 48kHz stereo s16le PCM on stdout.
func decodeArgs(input string) []string {
	return []string{
		"-i", input,
		"-f", "s16le",
		"-ar", fmt.Sprintf("%d", sampleRate),
		"-ac", fmt.Sprintf("%d", channels),
		"-loglevel", "warning",
		"pipe:1",
	}
}

func killAndReap(cmd *exec.Cmd) {
	if cmd.Process != nil {
		if err := cmd.Process.Kill(); err != nil {
			slog.Debug("failed to kill extractor process", "error", err)
		}
	}
	go func() {
		// Reap so the process table does not accumulate zombies.
		_ = cmd.Wait()
	}()
}

// processSource is a PCM stream backed by a subprocess pipeline. Close
// kills the pipeline and is idempotent.
type processSource struct {
	reader io.ReadCloser
	kill   func()
	once   sync.Once
}

func (s *processSource) Read(p []byte) (int, error) {
	return s.reader.Read(p)
}

func (s *processSource) Close() error {
	s.once.Do(s.kill)
	return nil
}

// ytdlpEntry is the subset of yt-dlp's JSON output the resolver uses.
type ytdlpEntry struct {
	Title      string  `json:"title"`
	WebpageURL string  `json:"webpage_url"`
	URL        string  `json:"url"`
	Duration   float64 `json:"duration"`
	Thumbnail  string  `json:"thumbnail"`
	Uploader   string  `json:"uploader"`
}

func (e ytdlpEntry) toTrack() domain.Track {
	locator := e.WebpageURL
	if locator == "" {
		locator = e.URL
	}

	title := e.Title
	if title == "" {
		title = "Unknown Title"
	}
	artist := e.Uploader
	if artist == "" {
		artist = "Unknown"
	}

	var duration *time.Duration
	if e.Duration > 0 {
		duration = domain.DurationSeconds(int(e.Duration + 0.5))
	}

	return domain.Track{
		Title:        title,
		Locator:      locator,
		Duration:     duration,
		Artist:       artist,
		ThumbnailURL: e.Thumbnail,
		Kind:         domain.SourceKindStream,
	}
}

// parseTrackLines parses line-delimited JSON metadata into tracks,
// skipping lines that fail to parse.
func parseTrackLines(output []byte) ([]domain.Track, error) {
	var tracks []domain.Track

	scanner := bufio.NewScanner(bytes.NewReader(output))
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var entry ytdlpEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			slog.Warn("skipping unparseable extractor output line", "error", err)
			continue
		}
		track := entry.toTrack()
		if track.Locator == "" {
			continue
		}
		tracks = append(tracks, track)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading extractor output: %w", err)
	}
	return tracks, nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func firstLine(b []byte) string {
	line, _, _ := strings.Cut(strings.TrimSpace(string(b)), "\n")
	return line
}
