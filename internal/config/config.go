package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env   string
	Port  int
	DBURL string

	// Opaque API token settings
	TokenSecret   string
	TokenTTLHours int // 0 means tokens never expire

	// Superuser seeded at boot when both email and password are set
	SuperuserEmail    string
	SuperuserPassword string
	SuperuserName     string

	// Redis-backed token resolution cache; empty Addr disables it
	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	TokenCacheTTLSeconds int

	// Image storage: "fs" (default) or "minio"
	MediaBackend string
	MediaRoot    string
	MediaBaseURL string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	OTLPEndpoint string

	CORSAllowedOrigins []string
	MaxBodyBytes       int64
	MaxUploadBytes     int64
}

func Load() Config {
	// .env is optional; deployments set the environment directly
	_ = godotenv.Load()

	return Config{
		Env:   getEnv("APP_ENV", "dev"),
		Port:  getEnvInt("PORT", 8080),
		DBURL: buildDBURL(),

		TokenSecret:   getEnv("TOKEN_SECRET", "dev-insecure-secret"),
		TokenTTLHours: getEnvInt("TOKEN_TTL_HOURS", 0),

		SuperuserEmail:    getEnv("SUPERUSER_EMAIL", ""),
		SuperuserPassword: getEnv("SUPERUSER_PASSWORD", ""),
		SuperuserName:     getEnv("SUPERUSER_NAME", "Admin"),

		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisPassword:        getEnv("REDIS_PASSWORD", ""),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		TokenCacheTTLSeconds: getEnvInt("TOKEN_CACHE_TTL_SECONDS", 60),

		MediaBackend: getEnv("MEDIA_BACKEND", "fs"),
		MediaRoot:    getEnv("MEDIA_ROOT", "media"),
		MediaBaseURL: getEnv("MEDIA_BASE_URL", "/media"),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "recipebox-media"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		OTLPEndpoint: getEnv("OTLP_ENDPOINT", ""),

		CORSAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "")),
		MaxBodyBytes:       int64(getEnvInt("MAX_BODY_BYTES", 1<<20)),
		MaxUploadBytes:     int64(getEnvInt("MAX_UPLOAD_BYTES", 10<<20)),
	}
}

func buildDBURL() string {
	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "recipebox")
	pass := getEnv("DB_PASSWORD", "recipebox")
	name := getEnv("DB_NAME", "recipebox")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			fmt.Println(err)
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)

		if err != nil {
			return fallback
		}

		return b
	}
	return fallback
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))

	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}

	return out
}
