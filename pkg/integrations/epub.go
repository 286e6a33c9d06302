package integrations

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-shiori/go-epub"
	"github.com/kerbaras/mangafetch/pkg/data"
)

var _ Exporter = (*EPubBuilder)(nil)

type EPubBuilder struct {
	outputDir string
	store     *DiskStore
	cover     *ImageData
	optimizer *PageOptimizer
}

func NewEPubBuilder(outputDir string, store *DiskStore) *EPubBuilder {
	return &EPubBuilder{outputDir: outputDir, store: store}
}

// SetCover uses img as the book cover on the next Export.
func (p *EPubBuilder) SetCover(img ImageData) error {
	if len(img.Content) == 0 {
		return fmt.Errorf("cover content is empty")
	}
	if _, err := ValidateImage(img.Content); err != nil {
		return err
	}
	p.cover = &img
	return nil
}

// SetOptimizer fits every page to a device before it is packed.
// A nil optimizer packs the stored files untouched.
func (p *EPubBuilder) SetOptimizer(o *PageOptimizer) {
	p.optimizer = o
}

// Export compiles the downloaded chapters of a manga into a single EPub file
func (p *EPubBuilder) Export(manga data.Manga, chapters []data.Chapter) (string, error) {
	var ready []data.Chapter
	for _, c := range chapters {
		if c.Downloaded && c.FilePath != "" {
			ready = append(ready, c)
		}
	}
	if len(ready) == 0 {
		return "", fmt.Errorf("no downloaded chapters to compile")
	}

	if err := os.MkdirAll(p.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	sort.SliceStable(ready, func(i, j int) bool {
		if ready[i].Number != ready[j].Number {
			return ready[i].Number < ready[j].Number
		}
		return ready[i].Key < ready[j].Key
	})

	// go-epub reads images from disk when the book is written, so staged
	// files must outlive Write.
	staging, err := os.MkdirTemp("", "mangas-epub-*")
	if err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	e, err := epub.NewEpub(manga.Title)
	if err != nil {
		return "", fmt.Errorf("failed to create EPub: %w", err)
	}
	if manga.Author != "" {
		e.SetAuthor(manga.Author)
	}
	if manga.Description != "" {
		e.SetDescription(manga.Description)
	}
	e.SetLang("vi")

	if p.cover != nil {
		if err := p.addCover(e, staging); err != nil {
			return "", err
		}
	}

	for _, chapter := range ready {
		if err := p.addChapter(e, staging, chapter); err != nil {
			return "", fmt.Errorf("failed to add chapter %q: %w", chapter.Name, err)
		}
	}

	outputPath := filepath.Join(p.outputDir, sanitizeFilename(manga.Title)+".epub")
	if err := e.Write(outputPath); err != nil {
		return "", fmt.Errorf("failed to write EPub: %w", err)
	}
	return outputPath, nil
}

func (p *EPubBuilder) addCover(e *epub.Epub, staging string) error {
	format, err := ValidateImage(p.cover.Content)
	if err != nil {
		return err
	}
	path := filepath.Join(staging, "cover."+format)
	if err := os.WriteFile(path, p.cover.Content, 0644); err != nil {
		return fmt.Errorf("failed to stage cover: %w", err)
	}

	internal, err := e.AddImage(path, "cover."+format)
	if err != nil {
		return fmt.Errorf("failed to add cover: %w", err)
	}
	if err := e.SetCover(internal, ""); err != nil {
		return fmt.Errorf("failed to set cover: %w", err)
	}
	return nil
}

func (p *EPubBuilder) addChapter(e *epub.Epub, staging string, chapter data.Chapter) error {
	files, err := p.store.Pages(chapter.FilePath)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no images found in chapter directory")
	}

	title := chapter.Name
	if title == "" {
		title = fmt.Sprintf("Chapter %g", chapter.Number)
	}

	var body strings.Builder
	body.WriteString(fmt.Sprintf("<h1>%s</h1>\n", html.EscapeString(title)))
	prefix := strings.ReplaceAll(sanitizeFilename(filepath.Base(chapter.FilePath)), " ", "_")
	for i, path := range files {
		name := fmt.Sprintf("%s_%s", prefix, filepath.Base(path))
		if p.optimizer != nil {
			path, name, err = p.optimizePage(staging, path, name)
			if err != nil {
				return err
			}
		}
		internal, err := e.AddImage(path, name)
		if err != nil {
			return fmt.Errorf("failed to add image %s: %w", filepath.Base(path), err)
		}
		body.WriteString(fmt.Sprintf(
			`<div class="page"><img src="%s" alt="Page %d" style="width:100%%;height:auto;"/></div>%s`,
			internal, i+1, "\n",
		))
	}

	if _, err := e.AddSection(body.String(), title, "", ""); err != nil {
		return fmt.Errorf("failed to add section: %w", err)
	}
	return nil
}

// optimizePage writes the device-fitted copy of path into staging.
func (p *EPubBuilder) optimizePage(staging, path, name string) (string, string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to read page: %w", err)
	}
	out, err := p.optimizer.Optimize(content)
	if err != nil {
		return "", "", fmt.Errorf("failed to optimize %s: %w", filepath.Base(path), err)
	}
	name = strings.TrimSuffix(name, filepath.Ext(name)) + ".jpg"
	staged := filepath.Join(staging, name)
	if err := os.WriteFile(staged, out, 0644); err != nil {
		return "", "", fmt.Errorf("failed to stage page: %w", err)
	}
	return staged, name, nil
}
