// Package bootstrap assembles the service from configuration. Both the api
// server and the lambda entry point use it so they expose the same handler.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/mora2/cartoonify/internal/http/handlers"
	"github.com/mora2/cartoonify/internal/http/httpapi"
	"github.com/mora2/cartoonify/internal/imaging"
	"github.com/mora2/cartoonify/internal/infra"
	"github.com/mora2/cartoonify/internal/pipeline"
	image "github.com/mora2/cartoonify/internal/providers/image"
	"github.com/mora2/cartoonify/internal/storage"
	"github.com/mora2/cartoonify/internal/style"
)

// NewEditor builds the generation backend named by cfg.GeneratorBackend.
func NewEditor(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) (image.Editor, error) {
	l := logger.With().Str("component", "generator").Logger()
	switch cfg.GeneratorBackend {
	case infra.GeneratorOpenAI:
		return image.NewOpenAIEditor(image.OpenAIOptions{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
			Logger:  &l,
		}), nil
	case infra.GeneratorGemini:
		return image.NewGeminiEditor(ctx, image.GeminiOptions{
			APIKey: cfg.GeminiAPIKey,
			Model:  cfg.GeminiModel,
			Logger: &l,
		})
	case infra.GeneratorHFSpace:
		return image.NewHFSpaceEditor(image.HFSpaceOptions{
			Token:         cfg.HFToken,
			CartoonURL:    cfg.HFCartoonURL,
			UpscaleURL:    cfg.HFUpscaleURL,
			MaxImageBytes: cfg.MaxImageBytes,
			Logger:        &l,
		}), nil
	default:
		return nil, fmt.Errorf("unknown generator backend %q", cfg.GeneratorBackend)
	}
}

// NewStore builds the storage backend named by cfg.StorageBackend.
func NewStore(ctx context.Context, cfg *infra.Config) (storage.Store, error) {
	switch cfg.StorageBackend {
	case infra.StorageNone, "":
		return storage.Disabled{}, nil
	case infra.StorageCloudinary:
		return storage.NewCloudinaryStore(storage.CloudinaryOptions{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
		})
	case infra.StorageS3:
		return storage.NewS3Store(ctx, storage.S3Options{
			Bucket:        cfg.S3Bucket,
			Region:        cfg.S3Region,
			PublicBaseURL: cfg.S3PublicBaseURL,
		})
	case infra.StorageFilesystem:
		return storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// NewService wires the pipeline with the configured backends.
func NewService(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) (*pipeline.Service, error) {
	editor, err := NewEditor(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("generator: %w", err)
	}
	store, err := NewStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	l := logger.With().Str("component", "pipeline").Logger()
	return pipeline.New(pipeline.Options{
		Normalizer: imaging.NewNormalizer(imaging.Options{
			MaxImageBytes:     cfg.MaxImageBytes,
			AllowPrivateHosts: cfg.SourceAllowPrivateHosts,
		}),
		Styles:              style.NewResolver(cfg.DefaultStyle),
		Editor:              editor,
		Store:               store,
		Logger:              &l,
		PreviewSize:         image.ParseSize(cfg.PreviewSize),
		HDSize:              image.ParseSize(cfg.HDSize),
		PreviewSourceFolder: cfg.PreviewSourceFolder,
		HDFolder:            cfg.HDFolder,
	})
}

// NewHandler returns the fully wired HTTP handler.
func NewHandler(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) (http.Handler, error) {
	svc, err := NewService(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	app := handlers.NewApp(svc, logger, cfg.AppEnv, cfg.MaxBodyBytes)
	opts := httpapi.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		Logger:         logger,
	}
	if cfg.StorageBackend == infra.StorageFilesystem {
		opts.StaticDir = cfg.StoragePath
	}
	return httpapi.NewRouter(app, opts), nil
}
