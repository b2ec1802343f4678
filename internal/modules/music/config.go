package music

import "time"

// Config holds the music module configuration.
type Config struct {
	// Extractor binaries; empty values fall back to PATH lookup.
	YtdlpPath  string `env:"MUSIC_YTDLP_PATH"`
	FfmpegPath string `env:"MUSIC_FFMPEG_PATH"`

	// How long a drained session stays in the voice channel before
	// auto-disconnecting.
	IdleTimeout time.Duration `env:"MUSIC_IDLE_TIMEOUT" envDefault:"30s"`

	// S3-compatible object storage holding the music library and the
	// soundboard effects.
	StorageEndpoint  string `env:"MUSIC_STORAGE_ENDPOINT,notEmpty"`
	StorageAccessKey string `env:"MUSIC_STORAGE_ACCESS_KEY,notEmpty"`
	StorageSecretKey string `env:"MUSIC_STORAGE_SECRET_KEY,notEmpty"`
	StorageUseSSL    bool   `env:"MUSIC_STORAGE_USE_SSL" envDefault:"true"`
	StorageBucket    string `env:"MUSIC_STORAGE_BUCKET,notEmpty"`
	StoragePrefix    string `env:"MUSIC_STORAGE_PREFIX" envDefault:"music/"`
	SfxPrefix        string `env:"MUSIC_SFX_PREFIX" envDefault:"sfx/"`
}
