package builder

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/AutobookNft/UltraUploadManager-sub004/internal/api"
	"github.com/AutobookNft/UltraUploadManager-sub004/internal/api/errsim"
	uploadapi "github.com/AutobookNft/UltraUploadManager-sub004/internal/api/upload"
	"github.com/AutobookNft/UltraUploadManager-sub004/internal/config"
	"github.com/AutobookNft/UltraUploadManager-sub004/internal/entity"
	"github.com/AutobookNft/UltraUploadManager-sub004/internal/errormgr"
	"github.com/AutobookNft/UltraUploadManager-sub004/internal/pkg/i18n"
	"github.com/AutobookNft/UltraUploadManager-sub004/internal/pkg/limits"
	"github.com/AutobookNft/UltraUploadManager-sub004/internal/pkg/validator"
	"github.com/AutobookNft/UltraUploadManager-sub004/internal/realtime"
	"github.com/AutobookNft/UltraUploadManager-sub004/internal/repository"
	"github.com/AutobookNft/UltraUploadManager-sub004/internal/scanner"
	"github.com/AutobookNft/UltraUploadManager-sub004/internal/uploader"
	pkghttp "github.com/AutobookNft/UltraUploadManager-sub004/pkg/http"
)

func Build() (*App, error) {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := setupLogger(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}

	logger.Info("Building application",
		zap.String("environment", cfg.Environment),
		zap.String("server_addr", cfg.ServerAddr),
	)

	// Setup database connection
	db, err := setupDatabase(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("setup database: %w", err)
	}

	// Run database migrations
	logger.Info("Running database migrations")
	if err := repository.RunMigrations(cfg.DatabaseURL, cfg.MigrationsSource); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("Database migrations completed successfully")

	if err := os.MkdirAll(cfg.StorageDir, 0o750); err != nil {
		db.Close()
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	// Localization
	translator := i18n.New(cfg.Locale)
	if cfg.TranslationsFile != "" {
		if err := translator.LoadFile(cfg.TranslationsFile); err != nil {
			db.Close()
			return nil, fmt.Errorf("load translations: %w", err)
		}
	}

	// Error engine: registry, handler chain, manager
	registry := errormgr.NewRegistry()
	if cfg.ErrorDefinitionsFile != "" {
		if err := registry.LoadFile(cfg.ErrorDefinitionsFile); err != nil {
			db.Close()
			return nil, fmt.Errorf("load error definitions: %w", err)
		}
	}

	errorLogRepo := repository.NewErrorLogPostgres(db)
	dispatcher := errormgr.NewDispatcher(logger)
	dispatcher.Register(errormgr.NewLogHandler(logger))
	dispatcher.Register(errormgr.NewDatabaseHandler(errorLogRepo, translator, logger))
	if cfg.NotifyCfg.Enabled {
		notifier, err := errormgr.NewNotificationHandler(cfg.NotifyCfg.TelegramBotToken, cfg.NotifyCfg.TelegramChatID, logger)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("initialize team notifications: %w", err)
		}
		dispatcher.Register(notifier)
		logger.Info("Team notifications enabled")
	}
	errorManager := errormgr.NewManager(registry, dispatcher, translator, cfg.Locale, logger)
	logger.Info("Error engine initialized", zap.Int("known_codes", len(registry.Codes())))

	// Negotiate effective upload limits
	negotiator := limits.NewNegotiator(
		limits.PlatformLimits{
			PostMaxSize:       cfg.PlatformCfg.PostMaxSize,
			UploadMaxFilesize: cfg.PlatformCfg.UploadMaxFilesize,
			MaxFileUploads:    cfg.PlatformCfg.MaxFileUploads,
		},
		limits.AppLimits{
			MaxTotalSize: cfg.UploadCfg.MaxTotalSize,
			MaxFileSize:  cfg.UploadCfg.MaxFileSize,
			MaxFiles:     cfg.UploadCfg.MaxFiles,
		},
		logger,
	)
	effective, err := negotiator.Effective()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("negotiate upload limits: %w", err)
	}

	// Server-side validation uses the negotiated ceiling, not the raw
	// application one.
	fileValidator := validator.New(validator.Policy{
		AllowedExtensions: cfg.UploadCfg.AllowedExtensions,
		AllowedMimeTypes:  cfg.UploadCfg.AllowedMimeTypes,
		MaxFileSize:       effective.MaxFileSize,
	}, translator, cfg.Locale)

	// Realtime channel and virus scanner
	broker := realtime.NewBroker(logger)
	fileRepo := repository.NewFilePostgres(db)
	scan := scanner.New(scanner.StubEngine{}, fileRepo, broker, scanner.Config{
		Workers:         cfg.ScanCfg.Workers,
		QueueSize:       cfg.ScanCfg.QueueSize,
		ContinueOnError: cfg.ScanCfg.ContinueOnError,
	}, logger)

	// Error simulation store (gated by environment at the router level)
	simStore := errsim.NewStore(cfg.SimulationTTL)

	// Setup API handlers
	uploadHandler := uploadapi.NewHandler(fileRepo, scan, errorManager, simStore, fileValidator, translator, effective, cfg)
	errsimHandler := errsim.NewHandler(simStore, registry, errorLogRepo)
	logger.Info("API handlers initialized")

	// Setup router
	router := api.SetupRouter(uploadHandler, errsimHandler, broker, cfg.SimulationAllowed(), logger)
	logger.Info("HTTP router configured")

	// Create HTTP server. WriteTimeout stays unset: the SSE stream
	// writes for as long as the subscriber stays connected.
	server := &http.Server{
		Addr:        cfg.ServerAddr,
		Handler:     router,
		ReadTimeout: 5 * time.Minute,
		IdleTimeout: 60 * time.Second,
	}

	logger.Info("Application built successfully",
		zap.String("environment", cfg.Environment),
	)

	return &App{
		server:  server,
		db:      db,
		scanner: scan,
		logger:  logger,
	}, nil
}

// BuildUploader assembles the client-side upload pipeline used by the
// uploadctl binary.
func BuildUploader(status uploader.StatusFunc) (*uploader.Orchestrator, *uploader.Listener, *config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := setupLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("setup logger: %w", err)
	}

	client := cfg.ClientCfg
	if client.Url == "" {
		return nil, nil, nil, nil, fmt.Errorf("CLIENT_SERVICE_URL is required")
	}

	connector := pkghttp.NewConnector(&pkghttp.ConnectorConfig{
		BaseURL: client.Url,
		Logger:  logger,
	},
		pkghttp.WithRequestTimeout(client.RequestTimeout),
		pkghttp.WithConnClientTimeout(client.ConnTimeout),
		pkghttp.WithClientKeepAlive(client.KeepAlive),
		pkghttp.WithIdleConnTimeout(client.IdleConnTimeout),
		pkghttp.WithResponseHeaderTimeout(client.ResponseHeaderTimeout),
		pkghttp.WithRequestLogging(),
		pkghttp.WithCSRFToken(client.CSRFToken),
	)

	// Fetch the server policy so client-side validation matches.
	policy, scanEnabled, err := fetchPolicy(connector, logger)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("fetch upload configuration: %w", err)
	}

	// The batch ceilings come from the limits endpoint so the client
	// rejects an oversized batch before transmitting anything.
	limitsDoc, err := fetchLimits(connector, logger)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("fetch upload limits: %w", err)
	}

	translator := i18n.New(cfg.Locale)
	fileValidator := validator.New(policy, translator, cfg.Locale)

	transport := uploader.NewTransport(connector, &client.Retry, client.CSRFToken, logger)
	orchestrator := uploader.NewOrchestrator(transport, fileValidator, uploader.OrchestratorConfig{
		Concurrency:  client.Concurrency,
		ScanEnabled:  scanEnabled,
		ScanTimeout:  client.ScanTimeout,
		MaxFiles:     limitsDoc.MaxFiles,
		MaxTotalSize: limitsDoc.MaxTotalSize,
	}, status, logger)
	listener := uploader.NewListener(client.Url, logger)

	return orchestrator, listener, cfg, logger, nil
}

// fetchPolicy pulls the validation policy from the config endpoint.
func fetchPolicy(connector *pkghttp.Connector, logger *zap.Logger) (validator.Policy, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var doc struct {
		AllowedExtensions []string `json:"allowed_extensions"`
		AllowedMimeTypes  []string `json:"allowed_mime_types"`
		MaxSize           int64    `json:"max_size"`
		ScanEnabled       bool     `json:"scan_enabled"`
	}
	if err := connector.DoJSON(ctx, http.MethodGet, "/api/uploads/config", nil, &doc); err != nil {
		return validator.Policy{}, false, err
	}

	logger.Info("Upload policy fetched",
		zap.Int("extensions", len(doc.AllowedExtensions)),
		zap.Int64("max_size", doc.MaxSize),
		zap.Bool("scan_enabled", doc.ScanEnabled),
	)

	return validator.Policy{
		AllowedExtensions: doc.AllowedExtensions,
		AllowedMimeTypes:  doc.AllowedMimeTypes,
		MaxFileSize:       doc.MaxSize,
	}, doc.ScanEnabled, nil
}

// fetchLimits pulls the negotiated batch ceilings from the limits
// endpoint.
func fetchLimits(connector *pkghttp.Connector, logger *zap.Logger) (entity.LimitsDocument, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var doc entity.LimitsDocument
	if err := connector.DoJSON(ctx, http.MethodGet, "/api/uploads/limits", nil, &doc); err != nil {
		return entity.LimitsDocument{}, err
	}

	logger.Info("Upload limits fetched",
		zap.Int64("max_total_size", doc.MaxTotalSize),
		zap.Int("max_files", doc.MaxFiles),
	)
	return doc, nil
}
