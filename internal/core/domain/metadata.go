package domain

type MediaKind string

const (
	MediaMusic MediaKind = "music"
	MediaMovie MediaKind = "movie"
	MediaTV    MediaKind = "tv"
	MediaBook  MediaKind = "book"
)

// Metadata is the normalized lookup result handed to the desktop client.
// Artist and Album are only filled for music.
type Metadata struct {
	Found  bool
	Title  string
	Artist string
	Album  string
	Image  string
	URL    string
}

func NotFound() Metadata {
	return Metadata{}
}
