package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type SourcesConfig struct {
	XXManhwaURL string `yaml:"xxmanhwa_url" env:"MANGAS_XXMANHWA_URL" env-default:"https://google.xxmanhwa2.top"`
	LxMangaURL  string `yaml:"lxmanga_url" env:"MANGAS_LXMANGA_URL" env-default:"https://lxmanga.help"`
	MangaDexURL string `yaml:"mangadex_url" env:"MANGAS_MANGADEX_URL" env-default:"https://api.mangadex.org"`
	HidePaid    bool   `yaml:"hide_paid" env:"MANGAS_HIDE_PAID" env-default:"false"`
}

type HTTPConfig struct {
	MetadataTimeout time.Duration `yaml:"metadata_timeout" env:"MANGAS_METADATA_TIMEOUT" env-default:"10s"`
	ImageTimeout    time.Duration `yaml:"image_timeout" env:"MANGAS_IMAGE_TIMEOUT" env-default:"30s"`
	PageDelay       time.Duration `yaml:"page_delay" env:"MANGAS_PAGE_DELAY" env-default:"100ms"`
}

type Config struct {
	LogLevel    string        `yaml:"log_level" env:"MANGAS_LOG_LEVEL" env-default:"INFO"`
	DownloadDir string        `yaml:"download_dir" env:"MANGAS_DOWNLOAD_DIR"`
	DBPath      string        `yaml:"db_path" env:"MANGAS_DB_PATH"`
	Address     string        `yaml:"address" env:"MANGAS_ADDRESS" env-default:"localhost:8080"`
	HTTP        HTTPConfig    `yaml:"http"`
	Sources     SourcesConfig `yaml:"sources"`
}

// Load reads .env (if present), then the optional YAML file at path, then
// the environment. Empty directories default to ~/.mangas.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return cfg, fmt.Errorf("cannot read config %q: %w", path, err)
	}

	home, _ := os.UserHomeDir()
	if cfg.DownloadDir == "" {
		cfg.DownloadDir = filepath.Join(home, ".mangas", "downloads")
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(home, ".mangas", "library.db")
	}
	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func MustLoad(path string) Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

func ParseLevel(logLevel string) (slog.Level, error) {
	switch strings.ToUpper(logLevel) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO", "":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level: %s", logLevel)
	}
}

// NewLogger builds a text logger writing to w at the configured level.
func NewLogger(logLevel string, w io.Writer) *slog.Logger {
	level, err := ParseLevel(logLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
