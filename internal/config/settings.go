package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every settings variable.
const EnvPrefix = "STEPGRAPH_"

// Settings are process-wide knobs read from the environment.
type Settings struct {
	// LogLevel is debug, info, warn, error or off.
	LogLevel      string
	Store         string
	StorePath     string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	ShellTimeout  time.Duration
	Concurrency   int
	ToolsFile     string
	// Images maps container names to the image that recreates them ("judge=python:3.12,db=postgres:16").
	Images map[string]string
	// Redact lists regular expressions masked in stored reports.
	Redact []string
	// ReportKeys are base64 AES-256 keys; the first seals new reports, the rest only open old ones.
	ReportKeys [][]byte
}

// DefaultSettings are used for every variable that is not set.
func DefaultSettings() Settings {
	return Settings{
		LogLevel:     "off",
		Store:        "file",
		RedisAddr:    "localhost:6379",
		ShellTimeout: 5 * time.Minute,
		Concurrency:  1,
		ToolsFile:    "tools.yaml",
	}
}

// LoadSettings loads envFile into the process environment (existing
// variables win) and reads the STEPGRAPH_* settings. A missing envFile is not an error.
func LoadSettings(envFile string) (Settings, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Settings{}, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv reads settings through lookup.
func FromEnv(lookup func(string) (string, bool)) (Settings, error) {
	s := DefaultSettings()
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		return v, ok && v != ""
	}

	if v, ok := get("LOG_LEVEL"); ok {
		s.LogLevel = v
	}
	if v, ok := get("STORE"); ok {
		switch v {
		case "memory", "file", "redis":
			s.Store = v
		default:
			return s, fmt.Errorf("%sSTORE: unknown store %q", EnvPrefix, v)
		}
	}
	if v, ok := get("STORE_PATH"); ok {
		s.StorePath = v
	}
	if v, ok := get("REDIS_ADDR"); ok {
		s.RedisAddr = v
	}
	if v, ok := get("REDIS_PASSWORD"); ok {
		s.RedisPassword = v
	}
	if v, ok := get("REDIS_DB"); ok {
		db, err := strconv.Atoi(v)
		if err != nil {
			return s, fmt.Errorf("%sREDIS_DB: %w", EnvPrefix, err)
		}
		s.RedisDB = db
	}
	if v, ok := get("SHELL_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return s, fmt.Errorf("%sSHELL_TIMEOUT: %w", EnvPrefix, err)
		}
		s.ShellTimeout = d
	}
	if v, ok := get("CONCURRENCY"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return s, fmt.Errorf("%sCONCURRENCY: want a positive integer, got %q", EnvPrefix, v)
		}
		s.Concurrency = n
	}
	if v, ok := get("TOOLS"); ok {
		s.ToolsFile = v
	}
	if v, ok := get("IMAGES"); ok {
		images, err := godotenv.Unmarshal(strings.ReplaceAll(v, ",", "\n"))
		if err != nil {
			return s, fmt.Errorf("%sIMAGES: %w", EnvPrefix, err)
		}
		s.Images = images
	}
	if v, ok := get("REDACT"); ok {
		for _, p := range splitList(v) {
			if _, err := regexp.Compile(p); err != nil {
				return s, fmt.Errorf("%sREDACT: %w", EnvPrefix, err)
			}
			s.Redact = append(s.Redact, p)
		}
	}
	if v, ok := get("REPORT_KEYS"); ok {
		for _, k := range splitList(v) {
			key, err := base64.StdEncoding.DecodeString(k)
			if err != nil {
				return s, fmt.Errorf("%sREPORT_KEYS: %w", EnvPrefix, err)
			}
			if len(key) != 32 {
				return s, fmt.Errorf("%sREPORT_KEYS: keys must be 32 bytes, got %d", EnvPrefix, len(key))
			}
			s.ReportKeys = append(s.ReportKeys, key)
		}
	}
	return s, nil
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
