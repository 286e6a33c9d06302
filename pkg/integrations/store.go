package integrations

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "golang.org/x/image/webp"
)

const maxNameLength = 100

var ErrInvalidImage = errors.New("invalid image data")

// DiskStore lays pages out as <root>/<manga>/<chapter>/page_NNN.jpg.
type DiskStore struct {
	root string
}

func NewDiskStore(root string) *DiskStore {
	return &DiskStore{root: root}
}

func (s *DiskStore) Root() string {
	return s.root
}

func (s *DiskStore) ChapterDir(mangaTitle, chapterName string) string {
	return filepath.Join(s.root, sanitizeFilename(mangaTitle), sanitizeFilename(chapterName))
}

// PageFileName names the file for a 0-based page index. Numbering on disk
// starts at 1.
func PageFileName(index int) string {
	return fmt.Sprintf("page_%03d.jpg", index+1)
}

// SavePage validates img and writes it into the chapter directory,
// returning the file path.
func (s *DiskStore) SavePage(mangaTitle, chapterName string, img ImageData) (string, error) {
	if _, err := ValidateImage(img.Content); err != nil {
		return "", err
	}
	dir := s.ChapterDir(mangaTitle, chapterName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create chapter directory: %w", err)
	}
	path := filepath.Join(dir, PageFileName(img.Index))
	tmp := path + ".part"
	if err := os.WriteFile(tmp, img.Content, 0644); err != nil {
		return "", fmt.Errorf("failed to write page: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to write page: %w", err)
	}
	return path, nil
}

// Pages lists the image files of a chapter directory in page order.
func (s *DiskStore) Pages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read chapter directory: %w", err)
	}
	var pages []string
	for _, e := range entries {
		if !e.IsDir() && isImageFile(e.Name()) {
			pages = append(pages, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(pages)
	return pages, nil
}

// ValidateImage checks that content decodes as a known image format and
// returns the format name.
func ValidateImage(content []byte) (string, error) {
	if len(content) == 0 {
		return "", fmt.Errorf("%w: empty body", ErrInvalidImage)
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}
	return format, nil
}

func isImageFile(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".jpg" || ext == ".jpeg" || ext == ".png" || ext == ".gif" || ext == ".webp"
}

// sanitizeFilename removes characters that are invalid in filenames
func sanitizeFilename(name string) string {
	invalid := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|"}
	result := name
	for _, char := range invalid {
		result = strings.ReplaceAll(result, char, "_")
	}
	if r := []rune(result); len(r) > maxNameLength {
		result = string(r[:maxNameLength])
	}
	result = strings.TrimSpace(result)
	result = strings.Trim(result, ".")
	if result == "" {
		return "untitled"
	}
	return result
}
