package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/dhowden/tag"
	"github.com/minio/minio-go/v7"
	"github.com/yuzuru-s/kanade/internal/modules/music/application"
	"github.com/yuzuru-s/kanade/internal/modules/music/application/ports"
	"github.com/yuzuru-s/kanade/internal/modules/music/domain"
)

// Compile-time checks that StorageResolver implements the ports interfaces.
var (
	_ ports.StorageLibrary      = (*StorageResolver)(nil)
	_ ports.SoundEffectResolver = (*StorageResolver)(nil)
)

// audioExtensions are the object suffixes treated as playable audio.
var audioExtensions = []string{
	".mp3", ".wav", ".ogg", ".m4a", ".flac", ".opus",
	".aac", ".mp4", ".webm", ".mkv", ".3gp", ".amr",
}

const (
	defaultPresignTTL = time.Hour
	defaultMetaTTL    = time.Hour
)

// StorageResolver serves the music library and the soundboard from an
// S3-compatible bucket. Playback locators are presigned GET URLs, so the
// decode pipeline streams straight from storage without proxying through
// the bot.
type StorageResolver struct {
	client     *minio.Client
	bucket     string
	prefix     string
	sfxPrefix  string
	presignTTL time.Duration
	metaTTL    time.Duration

	mu        sync.Mutex
	metaCache map[string]cachedMeta
}

type objectMeta struct {
	title  string
	artist string
	album  string
}

type cachedMeta struct {
	meta    objectMeta
	fetched time.Time
}

// NewStorageResolver creates a new StorageResolver over the given bucket.
// prefix scopes the browsable library; sfxPrefix scopes soundboard effects.
func NewStorageResolver(client *minio.Client, bucket, prefix, sfxPrefix string) *StorageResolver {
	return &StorageResolver{
		client:     client,
		bucket:     bucket,
		prefix:     prefix,
		sfxPrefix:  sfxPrefix,
		presignTTL: defaultPresignTTL,
		metaTTL:    defaultMetaTTL,
		metaCache:  make(map[string]cachedMeta),
	}
}

// ListTracks returns library entries matching the query.
func (s *StorageResolver) ListTracks(ctx context.Context, query ports.LibraryQuery) ([]ports.LibraryEntry, error) {
	entries := []ports.LibraryEntry{}
	for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    s.prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, fmt.Errorf("listing bucket %s: %w", s.bucket, object.Err)
		}
		if !isAudioFile(object.Key) {
			continue
		}

		meta := s.objectMeta(ctx, object.Key)
		entries = append(entries, ports.LibraryEntry{
			Key:          object.Key,
			Filename:     path.Base(object.Key),
			Title:        meta.title,
			Artist:       meta.artist,
			Album:        meta.album,
			Size:         object.Size,
			LastModified: object.LastModified,
		})
	}

	entries = filterEntries(entries, query)
	sortEntries(entries, query.Sort, query.Order)
	return entries, nil
}

// TrackForKey builds a playable track for a stored file. The locator is a
// presigned URL valid long enough to outlast any reasonable queue wait.
func (s *StorageResolver) TrackForKey(ctx context.Context, key string) (domain.Track, error) {
	if !isAudioFile(key) {
		return domain.Track{}, fmt.Errorf("%w: %q is not an audio file", application.ErrNoResults, key)
	}

	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		return domain.Track{}, fmt.Errorf("%w: %v", application.ErrNoResults, err)
	}

	url, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.presignTTL, nil)
	if err != nil {
		return domain.Track{}, fmt.Errorf("presigning %s: %w", key, err)
	}

	meta := s.objectMeta(ctx, key)
	return domain.Track{
		Title:   meta.title,
		Locator: url.String(),
		Artist:  meta.artist,
		Album:   meta.album,
		Kind:    domain.SourceKindObjectStorage,
	}, nil
}

// ResolveEffect maps a soundboard effect identifier to its stored file.
// The identifier is the file's base name without extension.
func (s *StorageResolver) ResolveEffect(ctx context.Context, effectID string) (domain.Track, error) {
	for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    s.sfxPrefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return domain.Track{}, fmt.Errorf("listing effects: %w", object.Err)
		}
		if !isAudioFile(object.Key) || stripExtension(path.Base(object.Key)) != effectID {
			continue
		}

		url, err := s.client.PresignedGetObject(ctx, s.bucket, object.Key, s.presignTTL, nil)
		if err != nil {
			return domain.Track{}, fmt.Errorf("presigning %s: %w", object.Key, err)
		}
		return domain.Track{
			Title:   "Sound Effect: " + humanizeEffectID(effectID),
			Locator: url.String(),
			Artist:  "Sound Effect",
			Kind:    domain.SourceKindSoundEffect,
		}, nil
	}
	return domain.Track{}, fmt.Errorf("%w: unknown effect %q", application.ErrNoResults, effectID)
}

// objectMeta reads embedded tags from the object, caching results. Objects
// without readable tags fall back to filename-derived metadata.
func (s *StorageResolver) objectMeta(ctx context.Context, key string) objectMeta {
	s.mu.Lock()
	cached, ok := s.metaCache[key]
	s.mu.Unlock()
	if ok && time.Since(cached.fetched) < s.metaTTL {
		return cached.meta
	}

	meta := objectMeta{
		title:  stripExtension(path.Base(key)),
		artist: "Unknown Artist",
	}

	object, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		slog.Warn("failed to open object for metadata", "key", key, "error", err)
		return meta
	}
	defer object.Close()

	if parsed, err := tag.ReadFrom(object); err != nil {
		slog.Debug("no readable tags in object", "key", key, "error", err)
	} else {
		if title := strings.TrimSpace(parsed.Title()); title != "" {
			meta.title = title
		}
		if artist := strings.TrimSpace(parsed.Artist()); artist != "" {
			meta.artist = artist
		}
		meta.album = strings.TrimSpace(parsed.Album())
	}

	s.mu.Lock()
	s.metaCache[key] = cachedMeta{meta: meta, fetched: time.Now()}
	s.mu.Unlock()
	return meta
}

func isAudioFile(key string) bool {
	lower := strings.ToLower(key)
	for _, ext := range audioExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func stripExtension(filename string) string {
	return strings.TrimSuffix(filename, path.Ext(filename))
}

// humanizeEffectID turns "party_horn" into "Party Horn".
func humanizeEffectID(id string) string {
	words := strings.FieldsFunc(id, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
	for i, word := range words {
		first, size := utf8.DecodeRuneInString(word)
		words[i] = string(unicode.ToUpper(first)) + word[size:]
	}
	return strings.Join(words, " ")
}

// filterEntries applies the query's search and exact-match filters.
func filterEntries(entries []ports.LibraryEntry, query ports.LibraryQuery) []ports.LibraryEntry {
	filtered := entries[:0]
	search := strings.ToLower(query.Search)
	for _, entry := range entries {
		if search != "" && !matchesSearch(entry, search) {
			continue
		}
		if query.Artist != "" && !strings.EqualFold(entry.Artist, query.Artist) {
			continue
		}
		if query.Album != "" && !strings.EqualFold(entry.Album, query.Album) {
			continue
		}
		filtered = append(filtered, entry)
	}
	return filtered
}

func matchesSearch(entry ports.LibraryEntry, lowerSearch string) bool {
	return strings.Contains(strings.ToLower(entry.Title), lowerSearch) ||
		strings.Contains(strings.ToLower(entry.Artist), lowerSearch) ||
		strings.Contains(strings.ToLower(entry.Album), lowerSearch) ||
		strings.Contains(strings.ToLower(entry.Filename), lowerSearch)
}

// sortEntries orders entries by the named field. Unknown fields sort by
// title; any order other than "desc" is ascending.
func sortEntries(entries []ports.LibraryEntry, field, order string) {
	less := func(a, b ports.LibraryEntry) bool {
		switch field {
		case "artist":
			return strings.ToLower(a.Artist) < strings.ToLower(b.Artist)
		case "album":
			return strings.ToLower(a.Album) < strings.ToLower(b.Album)
		case "duration":
			return durationOrZero(a.Duration) < durationOrZero(b.Duration)
		default:
			return strings.ToLower(a.Title) < strings.ToLower(b.Title)
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if order == "desc" {
			return less(entries[j], entries[i])
		}
		return less(entries[i], entries[j])
	})
}

func durationOrZero(d *time.Duration) time.Duration {
	if d == nil {
		return 0
	}
	return *d
}
