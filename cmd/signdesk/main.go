package main

// @title           signdesk API
// @version         1.0
// @description     Fill and sign PDF templates, with signature capture handed off to a second device.

// @host      localhost:8080
// @BasePath  /api/v1
// @schemes   http https

// @securityDefinitions.apikey HandoffToken
// @in header
// @name Authorization
// @description Hand-off token from the capture link. Format: "Bearer {token}"

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"

	"github.com/custodia-labs/signdesk/internal/adapters/driven/auth"
	"github.com/custodia-labs/signdesk/internal/adapters/driven/badger"
	"github.com/custodia-labs/signdesk/internal/adapters/driven/memory"
	"github.com/custodia-labs/signdesk/internal/adapters/driven/objectstore"
	"github.com/custodia-labs/signdesk/internal/adapters/driven/pdfcpu"
	"github.com/custodia-labs/signdesk/internal/adapters/driven/postgres"
	"github.com/custodia-labs/signdesk/internal/adapters/driven/qrcode"
	redisadapter "github.com/custodia-labs/signdesk/internal/adapters/driven/redis"
	"github.com/custodia-labs/signdesk/internal/adapters/driven/secrets"
	"github.com/custodia-labs/signdesk/internal/adapters/driving/http"
	"github.com/custodia-labs/signdesk/internal/adapters/driving/mcp"
	"github.com/custodia-labs/signdesk/internal/config"
	"github.com/custodia-labs/signdesk/internal/core/domain"
	"github.com/custodia-labs/signdesk/internal/core/ports/driven"
	"github.com/custodia-labs/signdesk/internal/core/services"
	"github.com/custodia-labs/signdesk/internal/flatten"
	"github.com/custodia-labs/signdesk/internal/overlay"
	"github.com/custodia-labs/signdesk/internal/worker"
)

var version = "dev"

const importTemplateCommand = "import-template"

// stores is the set of driven adapters selected by configuration
type stores struct {
	templates driven.TemplateStore
	documents driven.SignedDocumentStore
	sessions  driven.SessionStore
	handoffs  driven.HandoffStore
	events    driven.EventStream
	lock      driven.DistributedLock

	checks  map[string]http.Pinger
	sweep   []worker.Target
	closers []func() error
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			log.Printf("Warning: close failed: %v", err)
		}
	}
}

func main() {
	args := os.Args[1:]
	var importArgs []string
	if len(args) > 0 && args[0] == importTemplateCommand {
		if len(args) < 3 {
			log.Fatalf("usage: signdesk %s <manifest.json> <template.pdf> [flags]", importTemplateCommand)
		}
		importArgs, args = args[1:3], args[3:]
	}

	cfg, err := config.Load(args)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// stdout carries the MCP protocol, so logs always go to stderr
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	log.Printf("signdesk %s starting in %s mode", version, cfg.Mode)
	logger.Debug("configuration loaded", "config", cfg.String())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var sealer driven.ValueSealer
	if cfg.ValuesKey != "" {
		s, err := secrets.NewSealerFromSecret(cfg.ValuesKey)
		if err != nil {
			log.Fatalf("Failed to create value sealer: %v", err)
		}
		sealer = s
		log.Println("Form values are sealed at rest")
	}

	st, err := openStores(ctx, cfg, sealer, logger)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer st.close()

	objects := objectstore.NewDirStore(cfg.ObjectStoreDir, cfg.PublicBaseURL+"/objects")

	if importArgs != nil {
		if err := importTemplate(ctx, st.templates, objects, importArgs[0], importArgs[1]); err != nil {
			log.Fatalf("Failed to import template: %v", err)
		}
		return
	}

	// ===== Flattening =====
	pipeline := flatten.DefaultPipeline(flatten.Config{
		Engine:  pdfcpu.NewEngine(),
		Overlay: overlay.NewEngine(overlay.Config{FontName: cfg.FontName, FontSize: cfg.FontSize}),
		Logger:  logger,
	})

	// ===== Services (core business logic) =====
	signingService := services.NewSigningService(services.SigningConfig{
		Templates:  st.templates,
		Documents:  st.documents,
		Sessions:   st.sessions,
		Handoffs:   st.handoffs,
		Objects:    objects,
		Events:     st.events,
		Lock:       st.lock,
		Logger:     logger,
		SessionTTL: cfg.SessionTTL,
	})
	handoffService := services.NewHandoffService(services.HandoffConfig{
		Templates:    st.templates,
		Documents:    st.documents,
		Sessions:     st.sessions,
		Handoffs:     st.handoffs,
		Events:       st.events,
		Lock:         st.lock,
		Tokens:       auth.NewAdapter(cfg.HandoffSecret),
		Codes:        qrcode.NewRenderer(),
		Logger:       logger,
		BaseURL:      cfg.PublicBaseURL,
		TTL:          cfg.HandoffTTL,
		AwaitTimeout: cfg.AwaitTimeout,
	})
	renderService := services.NewRenderService(services.RenderConfig{
		Templates: st.templates,
		Documents: st.documents,
		Objects:   objects,
		Pipeline:  pipeline,
		Logger:    logger,
	})

	// ===== Background sweeper for stores without native expiry =====
	if len(st.sweep) > 0 {
		sweeper := worker.NewSweeper(worker.Config{
			Targets: st.sweep,
			Lock:    st.lock,
			Logger:  logger,
		})
		if err := sweeper.Start(ctx); err != nil {
			log.Fatalf("Failed to start sweeper: %v", err)
		}
		defer sweeper.Stop()
	}

	switch cfg.Mode {
	case config.ModeMCP:
		mcpCfg := mcp.DefaultConfig()
		mcpCfg.Version = version
		mcpCfg.Logger = logger
		server, err := mcp.NewServer(mcpCfg, signingService, handoffService, renderService)
		if err != nil {
			log.Fatalf("Failed to create MCP server: %v", err)
		}
		if err := server.Run(ctx); err != nil {
			log.Fatalf("MCP server error: %v", err)
		}

	default:
		httpCfg := http.DefaultConfig()
		httpCfg.Host = cfg.Host
		httpCfg.Port = cfg.Port
		httpCfg.Version = version
		httpCfg.Logger = logger
		server := http.NewServer(httpCfg, signingService, handoffService, renderService, st.checks)

		log.Printf("Starting HTTP server on %s", cfg.Address())
		if err := server.Start(); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}

	log.Println("signdesk stopped")
}

// openStores selects the primary storage backend and, when Redis is
// configured, moves sessions, hand-offs, locking and events onto it.
func openStores(ctx context.Context, cfg *config.Config, sealer driven.ValueSealer, logger *slog.Logger) (*stores, error) {
	st := &stores{checks: make(map[string]http.Pinger)}

	switch cfg.Storage {
	case config.StorageBadger:
		log.Println("Opening Badger...")
		db, err := badger.Open(cfg.BadgerDir, logger)
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, db.Close)
		st.checks["badger"] = db

		st.templates = badger.NewTemplateStore(db)
		st.documents = badger.NewSignedDocumentStore(db, sealer)
		st.sessions = badger.NewSessionStore(db)
		st.handoffs = badger.NewHandoffStore(db)
		st.events = memory.NewBroker(logger)
		st.lock = memory.NewLock()
		if cfg.BadgerDir == "" {
			log.Println("Badger running in memory; data is lost on exit")
		}

	default:
		log.Println("Connecting to PostgreSQL...")
		db, err := postgres.Connect(ctx, postgres.DefaultConfig(cfg.DatabaseURL))
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, db.Close)
		if err := db.InitSchema(ctx); err != nil {
			st.close()
			return nil, fmt.Errorf("initialize schema: %w", err)
		}
		st.checks["postgres"] = db
		log.Println("PostgreSQL connected and schema initialized")

		sessions := postgres.NewSessionStore(db)
		handoffs := postgres.NewHandoffStore(db)
		notifier := postgres.NewNotifier(db, logger)
		st.closers = append(st.closers, notifier.Close)

		st.templates = postgres.NewTemplateStore(db)
		st.documents = postgres.NewSignedDocumentStore(db, sealer)
		st.sessions = sessions
		st.handoffs = handoffs
		st.events = notifier
		st.lock = postgres.NewAdvisoryLock(db)
		st.sweep = []worker.Target{
			{Name: "sessions", Store: sessions},
			{Name: "handoffs", Store: handoffs},
		}
	}

	if cfg.RedisURL == "" {
		return st, nil
	}

	log.Println("Connecting to Redis...")
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		st.close()
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		st.close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	st.closers = append(st.closers, client.Close)

	lock := redisadapter.NewLock(client)
	st.sessions = redisadapter.NewSessionStore(client)
	st.handoffs = redisadapter.NewHandoffStore(client)
	st.events = redisadapter.NewEventStream(client, logger)
	st.lock = lock
	st.checks["redis"] = lock
	// Redis expires sessions and hand-offs itself
	st.sweep = nil
	log.Println("Using Redis for sessions, hand-offs, locks and events")

	return st, nil
}

// importTemplate registers a template from a JSON manifest and uploads its PDF
func importTemplate(ctx context.Context, templates driven.TemplateStore, objects driven.ObjectStore, manifestPath, pdfPath string) error {
	fs := afero.NewOsFs()

	manifest, err := afero.ReadFile(fs, manifestPath)
	if err != nil {
		return err
	}
	var tmpl domain.Template
	if err := json.Unmarshal(manifest, &tmpl); err != nil {
		return fmt.Errorf("parse manifest: %w", err)
	}
	if tmpl.FilePath == "" {
		tmpl.FilePath = "templates/" + tmpl.ID + ".pdf"
	}
	if tmpl.CreatedAt.IsZero() {
		tmpl.CreatedAt = time.Now()
	}
	if err := tmpl.Validate(); err != nil {
		return err
	}

	pdf, err := afero.ReadFile(fs, pdfPath)
	if err != nil {
		return err
	}
	if err := objects.Upload(ctx, tmpl.FilePath, pdf); err != nil {
		return fmt.Errorf("upload template pdf: %w", err)
	}
	if err := templates.Save(ctx, &tmpl); err != nil {
		return fmt.Errorf("save template: %w", err)
	}

	log.Printf("Imported template %s (%d fields) from %s", tmpl.ID, len(tmpl.Fields), pdfPath)
	return nil
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
