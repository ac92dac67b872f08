package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config is read once at startup. Changing any value requires a restart.
type Config struct {
	Port     string
	GinMode  string
	LogLevel string

	SecretKey   string
	DatabaseURL string
	AutoMigrate bool

	StorageBackend string // local|gcs|s3
	UploadDir      string
	GCSBucket      string
	S3Bucket       string
	S3Region       string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string

	ToolPath string

	STTProvider           string // whisper|openai|google
	WhisperBin            string
	Model                 string
	ModelFallback         bool // WHISPER_MODEL was not recognised
	Language              string
	OpenAIKey             string
	OpenAIBaseURL         string
	GoogleCredentialsFile string

	SessionStore string // memory|redis|mongo
	SessionTTL   time.Duration
	CookieSecure bool
	RedisAddr    string
	MongoURI     string
	MongoDB      string

	MaxUploadBytes     int64
	KeepFailedUploads  bool
	UploadsRequireAuth bool
}

const defaultModel = "tiny"

// quality labels of the upload form, mapped onto model sizes.
var qualityModels = map[string]string{
	"simple":  "tiny",
	"simples": "tiny",
	"medium":  "base",
	"media":   "base",
	"precise": "large",
	"precisa": "large",
}

var knownModels = map[string]struct{}{
	"tiny": {}, "tiny.en": {}, "base": {}, "base.en": {}, "small": {}, "small.en": {},
	"medium": {}, "medium.en": {}, "large": {}, "large-v2": {}, "large-v3": {}, "turbo": {},
}

// Load reads the environment. Call godotenv.Load before it to pick up a .env file.
func Load() (*Config, error) {
	c := &Config{
		Port:     getenv("PORT", "8080"),
		GinMode:  os.Getenv("GIN_MODE"),
		LogLevel: os.Getenv("LOG_LEVEL"),

		SecretKey:   os.Getenv("SECRET_KEY"),
		DatabaseURL: firstEnv("DATABASE_URL", "POSTGRES_URI"),

		StorageBackend: strings.ToLower(getenv("STORAGE_BACKEND", "local")),
		UploadDir:      getenv("UPLOAD_DIR", "uploads"),
		GCSBucket:      os.Getenv("GCS_BUCKET"),
		S3Bucket:       os.Getenv("S3_BUCKET"),
		S3Region:       getenv("S3_REGION", "us-east-1"),
		S3Endpoint:     os.Getenv("S3_ENDPOINT"),
		S3AccessKey:    os.Getenv("S3_ACCESS_KEY_ID"),
		S3SecretKey:    os.Getenv("S3_SECRET_ACCESS_KEY"),

		ToolPath: firstEnv("TOOL_PATH", "FFMPEG_BIN"),

		STTProvider:           strings.ToLower(getenv("STT_PROVIDER", "whisper")),
		WhisperBin:            getenv("WHISPER_BIN", "whisper"),
		Language:              os.Getenv("TRANSCRIBE_LANGUAGE"),
		OpenAIKey:             os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:         os.Getenv("OPENAI_BASE_URL"),
		GoogleCredentialsFile: os.Getenv("GOOGLE_CREDENTIALS_FILE"),

		SessionStore: strings.ToLower(getenv("SESSION_STORE", "memory")),
		RedisAddr:    firstEnv("REDIS_ADDR", "REDIS_URI", "REDIS_URL"),
		MongoURI:     os.Getenv("MONGO_URI"),
		MongoDB:      getenv("MONGO_DB", "scribe"),
	}
	if c.DatabaseURL == "" {
		c.DatabaseURL = "file:scribe.db"
	}
	var known bool
	c.Model, known = ResolveModel(os.Getenv("WHISPER_MODEL"))
	c.ModelFallback = !known

	var err error
	if c.AutoMigrate, err = getBool("AUTO_MIGRATE", true); err != nil {
		return nil, err
	}
	if c.CookieSecure, err = getBool("COOKIE_SECURE", false); err != nil {
		return nil, err
	}
	if c.KeepFailedUploads, err = getBool("KEEP_FAILED_UPLOADS", false); err != nil {
		return nil, err
	}
	if c.UploadsRequireAuth, err = getBool("UPLOADS_REQUIRE_AUTH", false); err != nil {
		return nil, err
	}
	if c.SessionTTL, err = getDuration("SESSION_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	mb, err := getInt("MAX_UPLOAD_MB", 100)
	if err != nil {
		return nil, err
	}
	c.MaxUploadBytes = int64(mb) << 20

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the combinations Load cannot default away.
func (c *Config) Validate() error {
	var errs []error

	switch c.StorageBackend {
	case "local":
		if c.UploadDir == "" {
			errs = append(errs, errors.New("UPLOAD_DIR must not be empty"))
		}
	case "gcs":
		if c.GCSBucket == "" {
			errs = append(errs, errors.New("GCS_BUCKET is required when STORAGE_BACKEND=gcs"))
		}
	case "s3":
		if c.S3Bucket == "" {
			errs = append(errs, errors.New("S3_BUCKET is required when STORAGE_BACKEND=s3"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q (local|gcs|s3)", c.StorageBackend))
	}

	switch c.STTProvider {
	case "whisper", "google":
	case "openai":
		if c.OpenAIKey == "" && c.OpenAIBaseURL == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY or OPENAI_BASE_URL is required when STT_PROVIDER=openai"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STT_PROVIDER %q (whisper|openai|google)", c.STTProvider))
	}

	switch c.SessionStore {
	case "memory":
	case "redis":
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR (or REDIS_URI/REDIS_URL) is required when SESSION_STORE=redis"))
		}
	case "mongo":
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required when SESSION_STORE=mongo"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown SESSION_STORE %q (memory|redis|mongo)", c.SessionStore))
	}

	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_MB must be positive"))
	}
	return errors.Join(errs...)
}

// ResolveModel maps a model name or quality label onto a model name.
// Unknown values fall back to tiny and report ok=false.
func ResolveModel(v string) (model string, ok bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return defaultModel, true
	}
	if m, found := qualityModels[v]; found {
		return m, true
	}
	if _, found := knownModels[v]; found {
		return v, true
	}
	return defaultModel, false
}

// ApplyToolPath prepends ToolPath to PATH so external binaries (ffmpeg) are found.
func (c *Config) ApplyToolPath() error {
	if c.ToolPath == "" {
		return nil
	}
	abs, err := filepath.Abs(c.ToolPath)
	if err != nil {
		return err
	}
	return os.Setenv("PATH", abs+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func getBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
