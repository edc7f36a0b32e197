package config

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	DefaultAPIURL      = "http://127.0.0.1:7380"
	DefaultDBFileName  = ".carlot.db"
	DefaultLogLevel    = "info"
	DefaultObjectsDir  = ".carlot-objects"
	DefaultBackend     = "local"
	DefaultBucket      = "pics"
	DefaultMongoDBName = "carlot"
	DefaultFieldName   = "uploaded_files"

	DefaultMaxFiles           = 12
	DefaultMaxFileBytes int64 = 20_000_000
	DefaultLockTTLSeconds     = 30
	DefaultGraceMinutes       = 10

	configFileName           = ".carlot.toml"
	configDirEnvKey          = "CARLOT_CONFIG_DIR"
	trustProjectConfigEnvKey = "CARLOT_TRUST_PROJECT_CONFIG"
)

var (
	DefaultAllowedExtensions = []string{".gif", ".jpeg", ".jpg", ".png"}
	DefaultAllowedMediaTypes = []string{"image/gif", "image/jpeg", "image/jpg", "image/png"}
)

// ObjectsConfig selects and configures the object store backend.
type ObjectsConfig struct {
	Backend       string `toml:"backend"`
	LocalRoot     string `toml:"local_root"`
	Bucket        string `toml:"bucket"`
	MongoURI      string `toml:"mongo_uri"`
	MongoDatabase string `toml:"mongo_database"`
	S3Bucket      string `toml:"s3_bucket"`
	S3Region      string `toml:"s3_region"`
	S3Prefix      string `toml:"s3_prefix"`
	S3Endpoint    string `toml:"s3_endpoint"`
	S3PathStyle   bool   `toml:"s3_path_style"`
}

// UploadsConfig defines the upload policy.
type UploadsConfig struct {
	MaxFiles          int      `toml:"max_files"`
	MaxFileBytes      int64    `toml:"max_file_bytes"`
	AllowedExtensions []string `toml:"allowed_extensions"`
	AllowedMediaTypes []string `toml:"allowed_media_types"`
	FieldName         string   `toml:"field_name"`
}

// LocksConfig configures record locking. An empty RedisURL keeps locks in process.
type LocksConfig struct {
	RedisURL   string `toml:"redis_url"`
	TTLSeconds int    `toml:"ttl_seconds"`
}

// ReconcileConfig controls the orphan sweep. GraceMinutes of 0 deletes every
// unreferenced object.
type ReconcileConfig struct {
	GraceMinutes int `toml:"grace_minutes"`
}

// Config defines runtime configuration for carlot.
type Config struct {
	APIURL                   string          `toml:"api_url"`
	DBPath                   string          `toml:"db_path"`
	LogLevel                 string          `toml:"log_level"`
	Objects                  ObjectsConfig   `toml:"objects"`
	Uploads                  UploadsConfig   `toml:"uploads"`
	Locks                    LocksConfig     `toml:"locks"`
	Reconcile                ReconcileConfig `toml:"reconcile"`
	TrustedProjectConfigPath string          `toml:"-"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		APIURL:   DefaultAPIURL,
		LogLevel: DefaultLogLevel,
		Objects: ObjectsConfig{
			Backend:       DefaultBackend,
			Bucket:        DefaultBucket,
			MongoDatabase: DefaultMongoDBName,
		},
		Uploads: UploadsConfig{
			MaxFiles:          DefaultMaxFiles,
			MaxFileBytes:      DefaultMaxFileBytes,
			AllowedExtensions: append([]string(nil), DefaultAllowedExtensions...),
			AllowedMediaTypes: append([]string(nil), DefaultAllowedMediaTypes...),
			FieldName:         DefaultFieldName,
		},
		Locks: LocksConfig{
			TTLSeconds: DefaultLockTTLSeconds,
		},
		Reconcile: ReconcileConfig{
			GraceMinutes: DefaultGraceMinutes,
		},
	}
}

func loadFile(path string, cfg *Config) error {
	_, err := loadFileIfExists(path, cfg)
	return err
}

func loadFileIfExists(path string, cfg *Config) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return false, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return true, nil
}

func overrideConfigPath() (string, bool) {
	dir := strings.TrimSpace(os.Getenv(configDirEnvKey))
	if dir == "" {
		return "", false
	}
	return filepath.Join(dir, configFileName), true
}

func trustProjectConfig() bool {
	raw := strings.TrimSpace(os.Getenv(trustProjectConfigEnvKey))
	if raw == "" {
		return false
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return value
}

var allowedKeys = []string{
	"api_url",
	"db_path",
	"log_level",
	"objects.backend",
	"objects.local_root",
	"objects.bucket",
	"objects.mongo_uri",
	"objects.mongo_database",
	"objects.s3_bucket",
	"objects.s3_region",
	"objects.s3_prefix",
	"objects.s3_endpoint",
	"objects.s3_path_style",
	"uploads.max_files",
	"uploads.max_file_bytes",
	"uploads.allowed_extensions",
	"uploads.allowed_media_types",
	"uploads.field_name",
	"locks.redis_url",
	"locks.ttl_seconds",
	"reconcile.grace_minutes",
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "api_url":
		return c.APIURL, nil
	case "db_path":
		return c.DBPath, nil
	case "log_level":
		return c.LogLevel, nil
	case "objects.backend":
		return c.Objects.Backend, nil
	case "objects.local_root":
		return c.Objects.LocalRoot, nil
	case "objects.bucket":
		return c.Objects.Bucket, nil
	case "objects.mongo_uri":
		return c.Objects.MongoURI, nil
	case "objects.mongo_database":
		return c.Objects.MongoDatabase, nil
	case "objects.s3_bucket":
		return c.Objects.S3Bucket, nil
	case "objects.s3_region":
		return c.Objects.S3Region, nil
	case "objects.s3_prefix":
		return c.Objects.S3Prefix, nil
	case "objects.s3_endpoint":
		return c.Objects.S3Endpoint, nil
	case "objects.s3_path_style":
		return strconv.FormatBool(c.Objects.S3PathStyle), nil
	case "uploads.max_files":
		return strconv.Itoa(c.Uploads.MaxFiles), nil
	case "uploads.max_file_bytes":
		return strconv.FormatInt(c.Uploads.MaxFileBytes, 10), nil
	case "uploads.allowed_extensions":
		return strings.Join(c.Uploads.AllowedExtensions, ","), nil
	case "uploads.allowed_media_types":
		return strings.Join(c.Uploads.AllowedMediaTypes, ","), nil
	case "uploads.field_name":
		return c.Uploads.FieldName, nil
	case "locks.redis_url":
		return c.Locks.RedisURL, nil
	case "locks.ttl_seconds":
		return strconv.Itoa(c.Locks.TTLSeconds), nil
	case "reconcile.grace_minutes":
		return strconv.Itoa(c.Reconcile.GraceMinutes), nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// GlobalPath returns the path to the global config file.
func GlobalPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

// ProjectPath returns the path to the project config file.
func ProjectPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, configFileName), nil
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

// Load reads config from trusted files and applies env overrides.
func Load() (*Config, error) {
	cfg := Default()

	if overridePath, ok := overrideConfigPath(); ok {
		if err := loadFile(overridePath, &cfg); err != nil {
			return nil, err
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			if err := loadFile(filepath.Join(home, configFileName), &cfg); err != nil {
				return nil, err
			}
		}

		if trustProjectConfig() {
			if cwd, err := os.Getwd(); err == nil {
				projectPath := filepath.Join(cwd, configFileName)
				info, statErr := os.Stat(projectPath)
				switch {
				case statErr == nil && !info.IsDir():
					if err := loadFile(projectPath, &cfg); err != nil {
						return nil, err
					}
					cfg.TrustedProjectConfigPath = projectPath
				case statErr != nil && !os.IsNotExist(statErr):
					return nil, statErr
				}
			}
		}
	}

	if cwd, err := os.Getwd(); err == nil {
		if cfg.DBPath == "" {
			cfg.DBPath = filepath.Join(cwd, DefaultDBFileName)
		}
		if cfg.Objects.LocalRoot == "" {
			cfg.Objects.LocalRoot = filepath.Join(cwd, DefaultObjectsDir)
		}
	}

	cfg.applyEnv()
	cfg.normalize()

	return &cfg, nil
}

func (c *Config) applyEnv() {
	if apiURL := os.Getenv("CARLOT_API_URL"); apiURL != "" {
		c.APIURL = apiURL
	}
	if dbPath := os.Getenv("CARLOT_DB"); dbPath != "" {
		c.DBPath = dbPath
	}
	if level := strings.TrimSpace(os.Getenv("CARLOT_LOG_LEVEL")); level != "" {
		c.LogLevel = level
	}
	if backend := strings.TrimSpace(os.Getenv("CARLOT_OBJECTS_BACKEND")); backend != "" {
		c.Objects.Backend = backend
	}
	if uri := strings.TrimSpace(os.Getenv("MONGO_URI")); uri != "" {
		c.Objects.MongoURI = uri
	}
	if redisURL := strings.TrimSpace(os.Getenv("CARLOT_REDIS_URL")); redisURL != "" {
		c.Locks.RedisURL = redisURL
	}
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "uploads.max_file_bytes":
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "uploads.max_files", "locks.ttl_seconds":
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "reconcile.grace_minutes":
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("%s must be a non-negative integer", key)
		}
		return parsed, nil
	case "objects.s3_path_style":
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be true or false", key)
		}
		return parsed, nil
	case "objects.backend":
		backend := strings.ToLower(value)
		switch backend {
		case "local", "gridfs", "s3":
			return backend, nil
		}
		return nil, fmt.Errorf("%s must be one of local, gridfs, s3", key)
	case "uploads.allowed_extensions", "uploads.allowed_media_types":
		return splitCSV(value), nil
	default:
		return value, nil
	}
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}

func splitCSV(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func (c *Config) normalize() {
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = DefaultLogLevel
	}
	c.Objects.Backend = strings.ToLower(strings.TrimSpace(c.Objects.Backend))
	if c.Objects.Backend == "" {
		c.Objects.Backend = DefaultBackend
	}
	if c.Objects.Bucket == "" {
		c.Objects.Bucket = DefaultBucket
	}
	if c.Objects.MongoDatabase == "" {
		c.Objects.MongoDatabase = DefaultMongoDBName
	}
	if c.Uploads.MaxFiles <= 0 {
		c.Uploads.MaxFiles = DefaultMaxFiles
	}
	if c.Uploads.MaxFileBytes <= 0 {
		c.Uploads.MaxFileBytes = DefaultMaxFileBytes
	}
	if strings.TrimSpace(c.Uploads.FieldName) == "" {
		c.Uploads.FieldName = DefaultFieldName
	}
	if len(c.Uploads.AllowedExtensions) == 0 {
		c.Uploads.AllowedExtensions = append([]string(nil), DefaultAllowedExtensions...)
	}
	c.Uploads.AllowedMediaTypes = normalizeConfiguredMediaTypes(c.Uploads.AllowedMediaTypes)
	if len(c.Uploads.AllowedMediaTypes) == 0 {
		c.Uploads.AllowedMediaTypes = append([]string(nil), DefaultAllowedMediaTypes...)
	}
	if c.Locks.TTLSeconds <= 0 {
		c.Locks.TTLSeconds = DefaultLockTTLSeconds
	}
	if c.Reconcile.GraceMinutes < 0 {
		c.Reconcile.GraceMinutes = DefaultGraceMinutes
	}
}

func normalizeConfiguredMediaTypes(rawValues []string) []string {
	if len(rawValues) == 0 {
		return nil
	}
	out := make([]string, 0, len(rawValues))
	seen := map[string]struct{}{}
	for _, raw := range rawValues {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		parsed, _, err := mime.ParseMediaType(raw)
		if err != nil {
			continue
		}
		normalized := strings.ToLower(strings.TrimSpace(parsed))
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil
	}
	return out
}
