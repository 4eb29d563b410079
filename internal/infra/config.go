package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Generator backends.
const (
	GeneratorOpenAI  = "openai"
	GeneratorGemini  = "gemini"
	GeneratorHFSpace = "hfspace"
)

// Storage backends.
const (
	StorageNone       = "none"
	StorageCloudinary = "cloudinary"
	StorageS3         = "s3"
	StorageFilesystem = "filesystem"
)

const defaultAllowedOrigins = "https://mora2.com,http://localhost:3000,http://localhost:5173"

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv                  string
	Port                    string
	AllowedOrigins          []string
	MaxBodyBytes            int64
	MaxImageBytes           int64
	SourceAllowPrivateHosts bool

	GeneratorBackend string
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	OpenAIModel      string
	GeminiAPIKey     string
	GeminiModel      string
	HFToken          string
	HFCartoonURL     string
	HFUpscaleURL     string
	PreviewSize      string
	HDSize           string
	DefaultStyle     string

	StorageBackend      string
	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	S3Bucket            string
	S3Region            string
	S3PublicBaseURL     string
	StoragePath         string
	StorageBaseURL      string
	PreviewSourceFolder string
	HDFolder            string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:                  getEnv("APP_ENV", "development"),
		Port:                    port,
		AllowedOrigins:          splitList(getEnv("ALLOWED_ORIGINS", defaultAllowedOrigins)),
		MaxBodyBytes:            int64(getEnvInt("MAX_BODY_BYTES", 10<<20)),
		MaxImageBytes:           int64(getEnvInt("MAX_IMAGE_BYTES", 10<<20)),
		SourceAllowPrivateHosts: getEnvBool("SOURCE_ALLOW_PRIVATE_HOSTS", false),

		GeneratorBackend: strings.ToLower(getEnv("GENERATOR_BACKEND", GeneratorOpenAI)),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:      getEnv("OPENAI_IMAGE_MODEL", "gpt-image-1"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		GeminiModel:      getEnv("GEMINI_IMAGE_MODEL", "gemini-2.5-flash-image"),
		HFToken:          os.Getenv("HF_TOKEN"),
		HFCartoonURL:     os.Getenv("HF_SPACE_CARTOON_URL"),
		HFUpscaleURL:     os.Getenv("HF_SPACE_UPSCALE_URL"),
		PreviewSize:      getEnv("PREVIEW_SIZE", "small"),
		HDSize:           getEnv("HD_SIZE", "auto"),
		DefaultStyle:     getEnv("DEFAULT_STYLE", "urban"),

		StorageBackend:      strings.ToLower(getEnv("STORAGE_BACKEND", StorageNone)),
		CloudinaryCloudName: os.Getenv("CLOUDINARY_CLOUD_NAME"),
		CloudinaryAPIKey:    os.Getenv("CLOUDINARY_API_KEY"),
		CloudinaryAPISecret: os.Getenv("CLOUDINARY_API_SECRET"),
		S3Bucket:            os.Getenv("S3_BUCKET"),
		S3Region:            getEnv("S3_REGION", "us-east-1"),
		S3PublicBaseURL:     os.Getenv("S3_PUBLIC_BASE_URL"),
		StoragePath:         getEnv("STORAGE_PATH", "./data"),
		StorageBaseURL:      getEnv("STORAGE_BASE_URL", "http://localhost:"+port+"/static"),
		PreviewSourceFolder: getEnv("PREVIEW_SOURCE_FOLDER", "mora2/previews_src"),
		HDFolder:            getEnv("HD_FOLDER", "mora2/generated_hd"),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 30)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 300)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.GeneratorBackend {
	case GeneratorOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required")
		}
	case GeneratorGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required")
		}
	case GeneratorHFSpace:
		if c.HFCartoonURL == "" {
			return fmt.Errorf("HF_SPACE_CARTOON_URL is required")
		}
	default:
		return fmt.Errorf("unknown GENERATOR_BACKEND %q", c.GeneratorBackend)
	}

	switch c.StorageBackend {
	case StorageNone, StorageFilesystem:
	case StorageCloudinary:
		if c.CloudinaryCloudName == "" || c.CloudinaryAPIKey == "" || c.CloudinaryAPISecret == "" {
			return fmt.Errorf("CLOUDINARY_CLOUD_NAME, CLOUDINARY_API_KEY and CLOUDINARY_API_SECRET are required")
		}
	case StorageS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}

	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("MAX_BODY_BYTES must be positive")
	}
	if c.MaxImageBytes <= 0 {
		return fmt.Errorf("MAX_IMAGE_BYTES must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
