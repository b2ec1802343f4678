package domain

// SourceKind represents where a track's audio comes from.
type SourceKind int

const (
	SourceKindStream       SourceKind = iota // network video/audio resolved by the extractor
	SourceKindObjectStorage                  // file served from the object-storage library
	SourceKindSoundEffect                    // short effect from the soundboard prefix
)

// String returns a human-readable representation of the source kind.
func (k SourceKind) String() string {
	switch k {
	case SourceKindObjectStorage:
		return "storage"
	case SourceKindSoundEffect:
		return "sfx"
	default:
		return "stream"
	}
}
