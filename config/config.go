// Copyright (c) 2025 Michael D Henderson. All rights reserved.

// Package config loads settings from defaults, a YAML file, a .env file,
// and the environment, in that order of increasing precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mdhender/blogbatch/web/auth"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Database   DatabaseConfig    `yaml:"database"`
	DataDir    string            `yaml:"data_dir"`
	Generation GenerationConfig  `yaml:"generation"`
	Scraper    ScraperConfig     `yaml:"scraper"`
	Batch      BatchConfig       `yaml:"batch"`
	Export     ExportConfig      `yaml:"export"`
	Server     ServerConfig      `yaml:"server"`
	Admin      AdminConfig       `yaml:"admin"`
	Posts      PostsConfig       `yaml:"posts"`
	Aliases    map[string]string `yaml:"header_aliases"` // extra spreadsheet header -> field name
}

type DatabaseConfig struct {
	Path string `yaml:"path"` // empty means in-memory
}

type GenerationConfig struct {
	URL               string        `yaml:"url"`
	Dialect           string        `yaml:"dialect"` // gemini or plain
	APIKey            string        `yaml:"api_key"`
	MaxAttempts       int           `yaml:"max_attempts"`
	InitialDelay      time.Duration `yaml:"initial_delay"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerMinute float64       `yaml:"requests_per_minute"` // 0 disables client-side limiting
	TemplateFile      string        `yaml:"template_file"`
}

type ScraperConfig struct {
	URL     string        `yaml:"url"` // empty disables enrichment
	Timeout time.Duration `yaml:"timeout"`
}

type BatchConfig struct {
	Workers int `yaml:"workers"`
}

type ExportConfig struct {
	Prefix     string `yaml:"prefix"`
	OutputDir  string `yaml:"output_dir"`
	S3Bucket   string `yaml:"s3_bucket"`
	S3Prefix   string `yaml:"s3_prefix"`
	S3Endpoint string `yaml:"s3_endpoint"`
}

type ServerConfig struct {
	Host       string        `yaml:"host"`
	Port       string        `yaml:"port"`
	Timeout    time.Duration `yaml:"timeout"` // shutdown deadline; 0 runs until signaled
	UsersFile  string        `yaml:"users_file"`
	BcryptCost int           `yaml:"bcrypt_cost"` // 0 selects the bcrypt default
}

type AdminConfig struct {
	User         string `yaml:"user"`
	PasswordHash string `yaml:"password_hash"` // bcrypt
}

type PostsConfig struct {
	DailyLimit int `yaml:"daily_limit"` // completions per writer per UTC day; 0 is unlimited
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Generation: GenerationConfig{
			Dialect:      "gemini",
			MaxAttempts:  5,
			InitialDelay: 2 * time.Second,
			Timeout:      2 * time.Minute,
		},
		Scraper: ScraperConfig{Timeout: 90 * time.Second},
		Batch:   BatchConfig{Workers: 1},
		Export:  ExportConfig{Prefix: "blog-contents", OutputDir: "."},
		Server:  ServerConfig{Host: "localhost", Port: "8080"},
	}
}

// Load returns the defaults overlaid with the YAML file at path (if not
// empty), the dotenv file (if it exists), and the process environment.
func Load(fs afero.Fs, path, dotenv string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.LoadYAML(fs, path); err != nil {
			return nil, err
		}
	}
	env, err := ReadDotEnv(fs, dotenv)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := env[key]
		return v, ok
	}); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadYAML overlays the settings in a YAML file.
func (c *Config) LoadYAML(fs afero.Fs, path string) error {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// ReadDotEnv parses a dotenv file. A missing file yields an empty map.
func ReadDotEnv(fs afero.Fs, path string) (map[string]string, error) {
	if path == "" {
		return map[string]string{}, nil
	}
	data, err := afero.ReadFile(fs, path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	env, err := godotenv.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return env, nil
}

// ApplyEnv overlays settings from environment variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("BLOGBATCH_DB", &c.Database.Path)
	str("BLOGBATCH_DATA_DIR", &c.DataDir)
	str("GEMINI_API_KEY", &c.Generation.APIKey)
	str("GENERATION_URL", &c.Generation.URL)
	str("GENERATION_DIALECT", &c.Generation.Dialect)
	str("GENERATION_TEMPLATE", &c.Generation.TemplateFile)
	str("SCRAPER_URL", &c.Scraper.URL)
	str("EXPORT_DIR", &c.Export.OutputDir)
	str("S3_BUCKET", &c.Export.S3Bucket)
	str("S3_PREFIX", &c.Export.S3Prefix)
	str("S3_ENDPOINT", &c.Export.S3Endpoint)
	str("HOST", &c.Server.Host)
	str("PORT", &c.Server.Port)
	str("USERS_FILE", &c.Server.UsersFile)
	str("ADMIN_USER", &c.Admin.User)
	str("ADMIN_PASSWORD_HASH", &c.Admin.PasswordHash)

	num := func(key string, dst *int) error {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
		return nil
	}
	if err := num("BLOGBATCH_WORKERS", &c.Batch.Workers); err != nil {
		return err
	}
	if err := num("BCRYPT_COST", &c.Server.BcryptCost); err != nil {
		return err
	}
	if err := num("DAILY_WORK_LIMIT", &c.Posts.DailyLimit); err != nil {
		return err
	}
	if v, ok := lookup("GENERATION_RPM"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("GENERATION_RPM: %w", err)
		}
		c.Generation.RequestsPerMinute = f
	}
	return nil
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Generation.Dialect) {
	case "", "gemini":
		if c.Generation.APIKey == "" {
			errs = append(errs, errors.New("generation: GEMINI_API_KEY is required for the gemini dialect"))
		}
	case "plain":
		if c.Generation.URL == "" {
			errs = append(errs, errors.New("generation: url is required for the plain dialect"))
		}
	default:
		errs = append(errs, fmt.Errorf("generation: unknown dialect %q", c.Generation.Dialect))
	}
	if c.Generation.MaxAttempts < 1 {
		errs = append(errs, errors.New("generation: max_attempts must be at least 1"))
	}
	if c.Generation.InitialDelay < 0 {
		errs = append(errs, errors.New("generation: initial_delay must not be negative"))
	}
	if c.Generation.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("generation: requests_per_minute must not be negative"))
	}
	if c.Batch.Workers < 1 {
		errs = append(errs, errors.New("batch: workers must be at least 1"))
	}
	if err := auth.ValidateCost(c.Server.BcryptCost); err != nil {
		errs = append(errs, fmt.Errorf("server: bcrypt_cost: %w", err))
	}
	if c.Posts.DailyLimit < 0 {
		errs = append(errs, errors.New("posts: daily_limit must not be negative"))
	}
	if (c.Admin.User == "") != (c.Admin.PasswordHash == "") {
		errs = append(errs, errors.New("admin: ADMIN_USER and ADMIN_PASSWORD_HASH must be set together"))
	}
	return errors.Join(errs...)
}

// Template returns the prompt template file contents, or "" when no file is configured.
func (c *Config) Template(fs afero.Fs) (string, error) {
	if c.Generation.TemplateFile == "" {
		return "", nil
	}
	data, err := afero.ReadFile(fs, c.Generation.TemplateFile)
	if err != nil {
		return "", fmt.Errorf("read template: %w", err)
	}
	return string(data), nil
}
