package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/timmy/snapcaption/internal/api"
	"github.com/timmy/snapcaption/internal/api/handler"
	"github.com/timmy/snapcaption/internal/api/middleware"
	"github.com/timmy/snapcaption/internal/cache"
	"github.com/timmy/snapcaption/internal/captioner"
	"github.com/timmy/snapcaption/internal/config"
	"github.com/timmy/snapcaption/internal/imaging"
	"github.com/timmy/snapcaption/internal/logger"
	"github.com/timmy/snapcaption/internal/repository"
	"github.com/timmy/snapcaption/internal/service"
	"github.com/timmy/snapcaption/internal/source"
	"github.com/timmy/snapcaption/internal/source/directory"
	"github.com/timmy/snapcaption/internal/storage"
	"gorm.io/gorm"
)

// App is the wired set of components shared by the API server and the
// batch command.
type App struct {
	Config    *config.Config
	DB        *gorm.DB
	Storage   storage.ObjectStorage
	Cache     *cache.ContentCache
	Captioner *captioner.Captioner

	CaptionService *service.CaptionService
	RatingService  *service.RatingService
	HistoryService *service.HistoryService
	BatchService   *service.BatchService

	models []handler.ModelInfo
	logger *logger.Logger
}

// New connects to the database and storage backend and builds every service.
// Parameters:
//   - ctx: context for startup I/O such as bucket creation.
//   - cfg: loaded configuration.
//   - log: application logger.
// Returns:
//   - *App: wired application; call Close when done.
//   - error: non-nil if the database or storage cannot be initialized.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	if log == nil {
		log = logger.GetDefault()
	}

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	objectStorage, err := storage.NewStorage(&storage.Config{
		Type:      storage.StorageType(cfg.Storage.Type),
		LocalDir:  cfg.Storage.LocalDir,
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		UseSSL:    cfg.Storage.UseSSL,
		Bucket:    cfg.Storage.Bucket,
		Region:    cfg.Storage.Region,
		PublicURL: cfg.Storage.PublicURL,
	})
	if err != nil {
		closeDB(db)
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if err := objectStorage.EnsureBucket(ctx); err != nil {
		closeDB(db)
		return nil, fmt.Errorf("failed to ensure storage bucket: %w", err)
	}

	normalizer := imaging.NewNormalizer(imaging.Options{
		MaxDimension:      cfg.Performance.MaxImageDimension,
		AllowedExtensions: cfg.Upload.AllowedExtensions,
		StorageQuality:    cfg.Upload.StorageQuality,
		AutoOrient:        cfg.Upload.AutoOrient,
	})
	contentCache := cache.New(cfg.Cache.Enabled)

	gen, models := newCaptioner(cfg, log)

	captionRepo := repository.NewCaptionRepository(db)
	ratingRepo := repository.NewRatingRepository(db)
	captionService := service.NewCaptionService(normalizer, contentCache, gen, objectStorage, captionRepo, log)

	log.WithFields(logger.Fields{
		"database":           cfg.Database.Driver,
		"storage":            cfg.Storage.Type,
		"cache_enabled":      cfg.Cache.Enabled,
		logger.FieldProvider: gen.ActiveProvider(),
		"max_dimension":      normalizer.MaxDimension(),
	}).Info("Application components initialized")

	return &App{
		Config:         cfg,
		DB:             db,
		Storage:        objectStorage,
		Cache:          contentCache,
		Captioner:      gen,
		CaptionService: captionService,
		RatingService:  service.NewRatingService(ratingRepo),
		HistoryService: service.NewHistoryService(captionRepo, ratingRepo),
		BatchService: service.NewBatchService(captionService, log, &service.BatchConfig{
			Workers:   cfg.Batch.Workers,
			BatchSize: cfg.Batch.BatchSize,
		}),
		models: models,
		logger: log,
	}, nil
}

// newCaptioner builds the local model and, when configured with a key, the
// remote model. Remote requested without a key starts on local.
func newCaptioner(cfg *config.Config, log *logger.Logger) (*captioner.Captioner, []handler.ModelInfo) {
	local := captioner.NewLocalModel(&captioner.LocalConfig{
		BaseURL:     cfg.LocalModel.BaseURL,
		Model:       cfg.LocalModel.Model,
		MaxTokens:   cfg.Caption.MaxTokens,
		LoadTimeout: cfg.LocalModel.LoadTimeout,
	})
	models := []handler.ModelInfo{{
		ID:       local.Name(),
		Name:     local.Name(),
		Provider: "Ollama",
		Type:     "local",
	}}

	var remote captioner.Model
	if cfg.Caption.UseRemote {
		rm, err := captioner.NewRemoteModel(&captioner.RemoteConfig{
			APIKey:      cfg.Remote.APIKey,
			BaseURL:     cfg.Remote.BaseURL,
			Model:       cfg.Remote.Model,
			Instruction: cfg.Caption.Prompt,
			MaxTokens:   cfg.Caption.MaxTokens,
		})
		if err != nil {
			log.WithError(err).Warn("Remote caption provider requested but not usable, starting on local model")
		} else {
			remote = rm
		}
	}
	if cfg.Remote.Model != "" {
		models = append(models, handler.ModelInfo{
			ID:             cfg.Remote.Model,
			Name:           cfg.Remote.Model,
			Provider:       "OpenAI-compatible API",
			Type:           "api",
			RequiresAPIKey: true,
		})
	}

	gen := captioner.New(local, remote, &captioner.Config{
		InferenceTimeout:    cfg.Performance.InferenceTimeout,
		TargetInferenceTime: cfg.Performance.TargetInferenceTime,
	}, log)
	return gen, models
}

// BatchSource returns a fresh directory source for the configured inbox, or
// nil when no inbox is configured.
func (a *App) BatchSource() func() source.Source {
	if a.Config.Batch.Dir == "" {
		return nil
	}
	return func() source.Source {
		return directory.NewAdapter(a.Config.Batch.Dir, a.Config.Upload.AllowedExtensions, a.Config.Batch.Recursive)
	}
}

// Router builds the HTTP handler for the API server.
func (a *App) Router() *gin.Engine {
	return api.SetupRouter(&api.Dependencies{
		CaptionService: a.CaptionService,
		RatingService:  a.RatingService,
		HistoryService: a.HistoryService,
		BatchService:   a.BatchService,
		Cache:          a.Cache,
		Providers:      a.Captioner,
		Models:         a.models,
		Logger:         a.logger,
		BatchSource:    a.BatchSource(),
	}, &api.RouterConfig{
		Mode:          a.Config.Server.Mode,
		MaxUploadSize: a.Config.Upload.MaxSize,
		CORS: middleware.CORSConfig{
			AllowedOrigins:  a.Config.Server.CORS.AllowedOrigins,
			AllowAllOrigins: a.Config.Server.CORS.AllowAllOrigins,
			MaxAge:          600,
		},
	})
}

// Close releases the database connection pool.
func (a *App) Close() error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
