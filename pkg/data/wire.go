package data

import "strings"

// MangaInfo is the JSON shape exchanged with UI layers.
type MangaInfo struct {
	Key         string      `json:"key"`
	Title       string      `json:"title"`
	Artist      string      `json:"artist"`
	Author      string      `json:"author"`
	Description string      `json:"description"`
	Genres      []string    `json:"genres"`
	Status      MangaStatus `json:"status"`
	Cover       string      `json:"cover"`
}

type ChapterInfo struct {
	DateUpload int64   `json:"dateUpload"`
	Key        string  `json:"key"`
	Name       string  `json:"name"`
	Number     float64 `json:"number"`
	Scanlator  string  `json:"scanlator"`
}

type PageURL struct {
	URL string `json:"url"`
}

func (m Manga) ToMangaInfo() MangaInfo {
	genres := m.Genres
	if genres == nil {
		genres = []string{}
	}
	return MangaInfo{
		Key:         m.Key,
		Title:       m.Title,
		Artist:      m.Artist,
		Author:      m.Author,
		Description: m.Description,
		Genres:      genres,
		Status:      m.Status,
		Cover:       m.CoverURL,
	}
}

func MangaFromInfo(info MangaInfo) Manga {
	return Manga{
		Key:         info.Key,
		Title:       info.Title,
		Artist:      info.Artist,
		Author:      info.Author,
		Description: info.Description,
		Genres:      append([]string(nil), info.Genres...),
		Status:      info.Status,
		CoverURL:    info.Cover,
	}
}

func (c Chapter) ToChapterInfo() ChapterInfo {
	return ChapterInfo{
		DateUpload: c.DateUpload,
		Key:        c.Key,
		Name:       c.Name,
		Number:     c.Number,
		Scanlator:  c.Scanlator,
	}
}

func ChapterFromInfo(info ChapterInfo) Chapter {
	return Chapter{
		Key:        info.Key,
		Name:       info.Name,
		DateUpload: info.DateUpload,
		Number:     info.Number,
		Scanlator:  info.Scanlator,
	}
}

// ToPageURL prefers the resolved image URL over the page reference.
func (p Page) ToPageURL() PageURL {
	if p.ImageURL != "" {
		return PageURL{URL: p.ImageURL}
	}
	return PageURL{URL: p.URL}
}

// JoinGenres renders genres for display.
func JoinGenres(genres []string) string {
	return strings.Join(genres, ", ")
}
