// Package restforge derives a complete REST API from a set of declared
// database models: routes, query-string filtering, pagination, serialization
// and OpenAPI documentation all follow from the model definitions.
package restforge

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/restforge/restforge/internal/config"
	"github.com/restforge/restforge/internal/schema"
	"github.com/restforge/restforge/internal/web/server"
)

// Re-exported model declaration surface.
type (
	Model       = schema.Model
	ModelConfig = schema.ModelConfig
	ColumnType  = schema.ColumnType
)

const (
	TypeInteger  = schema.TypeInteger
	TypeFloat    = schema.TypeFloat
	TypeString   = schema.TypeString
	TypeText     = schema.TypeText
	TypeBoolean  = schema.TypeBoolean
	TypeDate     = schema.TypeDate
	TypeDateTime = schema.TypeDateTime
	TypeTime     = schema.TypeTime
	TypeJSON     = schema.TypeJSON
	TypeUUID     = schema.TypeUUID
)

var (
	NewModel      = schema.NewModel
	Nullable      = schema.Nullable
	PrimaryKey    = schema.PrimaryKey
	Unique        = schema.Unique
	Default       = schema.Default
	AutoIncrement = schema.AutoIncrement
	References    = schema.References
	Values        = schema.Values
)

// App holds the registered models and serves the derived API.
type App struct {
	registry *schema.Registry
	logger   *zap.Logger
	cfg      *config.Config
	db       *sql.DB
}

// New creates an empty application.
func New() *App {
	return &App{registry: schema.NewRegistry()}
}

// Register adds models to the application catalog. It must be called before
// Serve or Run.
func (a *App) Register(models ...*schema.Model) error {
	for _, m := range models {
		if err := a.registry.Register(m); err != nil {
			return err
		}
	}
	return nil
}

// MustRegister is Register panicking on error, for package-level declarations.
func (a *App) MustRegister(models ...*schema.Model) {
	if err := a.Register(models...); err != nil {
		panic(err)
	}
}

// WithDB supplies an existing database handle instead of opening one from the
// configured URL.
func (a *App) WithDB(db *sql.DB) *App {
	a.db = db
	return a
}

// Serve loads configuration, opens the database and serves until ctx is
// canceled or an interrupt arrives.
func (a *App) Serve(ctx context.Context) error {
	srv, cleanup, err := a.build()
	if err != nil {
		return err
	}
	defer cleanup()
	return srv.Run(ctx)
}

func (a *App) build() (*server.Server, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	a.cfg = cfg

	logger, err := zap.NewProduction()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	a.logger = logger

	db := a.db
	ownsDB := false
	if db == nil {
		db, err = openDatabase(cfg)
		if err != nil {
			logger.Sync()
			return nil, nil, err
		}
		ownsDB = true
	}

	srv, err := server.New(cfg, a.registry, db, logger)
	if err != nil {
		if ownsDB {
			db.Close()
		}
		logger.Sync()
		return nil, nil, err
	}

	cleanup := func() {
		if ownsDB {
			db.Close()
		}
		logger.Sync()
	}
	return srv, cleanup, nil
}

func openDatabase(cfg *config.Config) (*sql.DB, error) {
	url := cfg.DatabaseURL()
	if url == "" {
		return nil, fmt.Errorf("no database URL configured; set database.url or DATABASE_URL")
	}

	driver := cfg.Database.Driver
	switch driver {
	case "", "postgres", "pgx":
		driver = "pgx"
	case "sqlite", "sqlite3":
		driver = "sqlite3"
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	db, err := sql.Open(driver, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	return db, nil
}
