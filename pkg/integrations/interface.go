package integrations

import "github.com/kerbaras/mangafetch/pkg/data"

// ImageData is a downloaded image held in memory.
type ImageData struct {
	Content     []byte
	ContentType string
	Index       int // 0-based page index
}

// Exporter turns downloaded chapters into a single file.
type Exporter interface {
	Export(manga data.Manga, chapters []data.Chapter) (string, error)
}
