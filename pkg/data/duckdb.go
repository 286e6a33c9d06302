package data

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb/v2"
)

const schema = `
CREATE TABLE IF NOT EXISTS mangas (
	source          VARCHAR NOT NULL,
	key             VARCHAR NOT NULL,
	title           VARCHAR,
	artist          VARCHAR,
	author          VARCHAR,
	description     VARCHAR,
	genres          VARCHAR,
	status          INTEGER,
	cover_url       VARCHAR,
	update_strategy INTEGER,
	initialized     BOOLEAN,
	PRIMARY KEY (source, key)
);
CREATE TABLE IF NOT EXISTS chapters (
	source      VARCHAR NOT NULL,
	key         VARCHAR NOT NULL,
	manga_key   VARCHAR,
	name        VARCHAR,
	date_upload BIGINT,
	number      DOUBLE,
	scanlator   VARCHAR,
	downloaded  BOOLEAN DEFAULT false,
	file_path   VARCHAR DEFAULT '',
	PRIMARY KEY (source, key)
);`

// InitDuckDB opens the library database at path, creating parent
// directories and tables as needed.
func InitDuckDB(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return db, nil
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func OpenRepository(path string) (*Repository, error) {
	db, err := InitDuckDB(path)
	if err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) SaveManga(manga *Manga) error {
	if manga == nil || manga.Key == "" {
		return errors.New("manga key cannot be empty")
	}
	genres, err := json.Marshal(manga.Genres)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(`
		INSERT OR REPLACE INTO mangas
			(key, source, title, artist, author, description, genres, status, cover_url, update_strategy, initialized)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		manga.Key, manga.Source, manga.Title, manga.Artist, manga.Author, manga.Description,
		string(genres), int(manga.Status), manga.CoverURL, manga.UpdateStrategy, manga.Initialized,
	)
	return err
}

// GetManga returns nil without error when the key is unknown to source.
func (r *Repository) GetManga(source, key string) (*Manga, error) {
	row := r.db.QueryRow(`
		SELECT key, source, title, artist, author, description, genres, status, cover_url, update_strategy, initialized
		FROM mangas WHERE source = ? AND key = ?`, source, key)
	m, err := scanManga(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

func (r *Repository) ListMangas() ([]*Manga, error) {
	rows, err := r.db.Query(`
		SELECT key, source, title, artist, author, description, genres, status, cover_url, update_strategy, initialized
		FROM mangas ORDER BY title, source`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Manga
	for rows.Next() {
		m, err := scanManga(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// SaveChapter upserts chapter metadata and keeps the download state of
// an existing row.
func (r *Repository) SaveChapter(chapter *Chapter) error {
	if chapter == nil || chapter.Key == "" {
		return errors.New("chapter key cannot be empty")
	}
	_, err := r.db.Exec(`
		INSERT INTO chapters (source, key, manga_key, name, date_upload, number, scanlator, downloaded, file_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source, key) DO UPDATE SET
			manga_key = EXCLUDED.manga_key,
			name = EXCLUDED.name,
			date_upload = EXCLUDED.date_upload,
			number = EXCLUDED.number,
			scanlator = EXCLUDED.scanlator`,
		chapter.Source, chapter.Key, chapter.MangaKey, chapter.Name, chapter.DateUpload, chapter.Number,
		chapter.Scanlator, chapter.Downloaded, chapter.FilePath,
	)
	return err
}

func (r *Repository) GetChapters(source, mangaKey string) ([]*Chapter, error) {
	rows, err := r.db.Query(`
		SELECT source, key, manga_key, name, date_upload, number, scanlator, downloaded, file_path
		FROM chapters WHERE source = ? AND manga_key = ? ORDER BY number, key`, source, mangaKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Chapter
	for rows.Next() {
		var c Chapter
		if err := rows.Scan(&c.Source, &c.Key, &c.MangaKey, &c.Name, &c.DateUpload, &c.Number,
			&c.Scanlator, &c.Downloaded, &c.FilePath); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (r *Repository) UpdateChapterStatus(source, chapterKey string, downloaded bool, filePath string) error {
	_, err := r.db.Exec(`UPDATE chapters SET downloaded = ?, file_path = ? WHERE source = ? AND key = ?`,
		downloaded, filePath, source, chapterKey)
	return err
}

func (r *Repository) DeleteManga(source, key string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM chapters WHERE source = ? AND manga_key = ?`, source, key); err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.Exec(`DELETE FROM mangas WHERE source = ? AND key = ?`, source, key); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// GetMangaWithChapterCount returns a manga with its saved and downloaded
// chapter counts.
func (r *Repository) GetMangaWithChapterCount(source, key string) (*Manga, int, int, error) {
	manga, err := r.GetManga(source, key)
	if err != nil || manga == nil {
		return manga, 0, 0, err
	}
	var total, downloaded int
	err = r.db.QueryRow(`
		SELECT COUNT(*), COUNT(*) FILTER (WHERE downloaded)
		FROM chapters WHERE source = ? AND manga_key = ?`, source, key).Scan(&total, &downloaded)
	if err != nil {
		return nil, 0, 0, err
	}
	return manga, total, downloaded, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanManga(s scanner) (*Manga, error) {
	var (
		m      Manga
		genres string
		status int
	)
	if err := s.Scan(&m.Key, &m.Source, &m.Title, &m.Artist, &m.Author, &m.Description,
		&genres, &status, &m.CoverURL, &m.UpdateStrategy, &m.Initialized); err != nil {
		return nil, err
	}
	m.Status = MangaStatus(status)
	if genres != "" && genres != "null" {
		if err := json.Unmarshal([]byte(genres), &m.Genres); err != nil {
			return nil, fmt.Errorf("failed to decode genres: %w", err)
		}
	}
	return &m, nil
}
