package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tsogoo/chimege-transcribe/internal/fetch"
	"github.com/tsogoo/chimege-transcribe/internal/jobstore"
	"github.com/tsogoo/chimege-transcribe/internal/logging"
	"github.com/tsogoo/chimege-transcribe/internal/server"
	"github.com/tsogoo/chimege-transcribe/internal/transcribe"
)

// Config is the full service configuration, loaded from a yaml file.
// Credentials are never part of the file; they come from the environment
// (optionally via a .env file).
type Config struct {
	Server server.Config  `yaml:"server"`
	Log    logging.Config `yaml:"log"`

	Locale struct {
		Language string `yaml:"language"`
	} `yaml:"locale"`

	Store jobstore.Config `yaml:"store"`

	Worker struct {
		Workers   int `yaml:"workers"`
		QueueSize int `yaml:"queue_size"`
	} `yaml:"worker"`

	Media struct {
		FFmpegPath  string `yaml:"ffmpeg_path"`
		FFprobePath string `yaml:"ffprobe_path"`
	} `yaml:"media"`

	Diarize struct {
		ServiceURL string `yaml:"service_url"`
	} `yaml:"diarize"`

	Transcribe transcribe.Config `yaml:"transcribe"`

	Fetch struct {
		Minio fetch.MinioConfig `yaml:"minio"`
	} `yaml:"fetch"`
}

// Load reads the yaml config at path. A .env file next to the binary is
// loaded first so yaml-free credential setup works in development.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	cfg := &Config{}
	if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Locale.Language == "" {
		c.Locale.Language = "mn"
	}
}
