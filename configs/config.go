package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PublicURL  string
}

type Helper struct {
	Python      string
	PostScript  string
	StoryScript string
}

type Config struct {
	ListenAddr         string
	PostgresURI        string
	RedisURI           string
	SecretKey          string
	CookieName         string
	MediaBackend       string
	UploadDir          string
	R2                 R2
	Publisher          string
	Helper             Helper
	PublishTimeout     time.Duration
	StatusWriteTimeout time.Duration
	AuditSpec          string
	StuckGrace         time.Duration
	ReconcileMaxRetry  int
}

func LoadConfig() *Config {
	return &Config{
		ListenAddr:   getEnv("LISTEN_ADDR", ":3000"),
		PostgresURI:  getEnv("POSTGRES_URI", ""),
		RedisURI:     getEnv("REDIS_URI", ""),
		SecretKey:    getEnv("SECRET_KEY", ""),
		CookieName:   getEnv("COOKIE_NAME", "instaflow_token"),
		MediaBackend: getEnv("MEDIA_BACKEND", "local"),
		UploadDir:    getEnv("UPLOAD_DIR", "uploads"),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
			PublicURL:  getEnv("R2_PUBLIC_URL", ""),
		},
		Publisher: getEnv("PUBLISHER", "simulate"),
		Helper: Helper{
			Python:      getEnv("HELPER_PYTHON", "python3"),
			PostScript:  getEnv("HELPER_POST_SCRIPT", "python_scripts/post.py"),
			StoryScript: getEnv("HELPER_STORY_SCRIPT", "python_scripts/story.py"),
		},
		PublishTimeout:     getDuration("PUBLISH_TIMEOUT", 2*time.Minute),
		StatusWriteTimeout: getDuration("STATUS_WRITE_TIMEOUT", 10*time.Second),
		AuditSpec:          getEnv("AUDIT_SPEC", "@every 00h10m00s"),
		StuckGrace:         getDuration("STUCK_GRACE", 5*time.Minute),
		ReconcileMaxRetry:  getInt("RECONCILE_MAX_RETRY", 10),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		slog.Warn("invalid duration, using default", "key", key, "value", value, "default", defaultValue)
		return defaultValue
	}
	return d
}

func getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		slog.Warn("invalid integer, using default", "key", key, "value", value, "default", defaultValue)
		return defaultValue
	}
	return n
}
