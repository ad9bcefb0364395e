package app

import (
	"fmt"
	"time"

	"threebr/pkg/catalog"
	"threebr/pkg/store"
)

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL    string
	RedisAddr      string
	RedisPassword  string
	SessionTTL     time.Duration
	JWTSecret      string
	CatalogBaseURL string
	Store          store.Store
	Sessions       store.SessionStore
	Catalog        *catalog.Client
}

// App wires the catalog gateway, data store, and session store together.
type App struct {
	store    store.Store
	sessions store.SessionStore
	catalog  *catalog.Client
}

// New constructs the application. Store and session implementations from the
// config take precedence; otherwise they are built from connection settings.
func New(cfg Config) (*App, error) {
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 24 * time.Hour
	}

	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}

	sessionStore := cfg.Sessions
	if sessionStore == nil {
		switch {
		case cfg.JWTSecret != "":
			var err error
			sessionStore, err = store.NewJWTSessionStore(cfg.JWTSecret, cfg.SessionTTL)
			if err != nil {
				return nil, fmt.Errorf("init jwt sessions: %w", err)
			}
		case cfg.RedisAddr != "":
			sessionStore = store.NewRedisSessionStore(cfg.RedisAddr, cfg.RedisPassword, cfg.SessionTTL)
		default:
			return nil, fmt.Errorf("session store required (jwtSecret or redisAddr)")
		}
	}

	catalogClient := cfg.Catalog
	if catalogClient == nil {
		catalogClient = catalog.NewClient(cfg.CatalogBaseURL)
	}

	return &App{
		store:    dataStore,
		sessions: sessionStore,
		catalog:  catalogClient,
	}, nil
}

// Store exposes the data store for the HTTP layer's read-only needs.
func (a *App) Store() store.Store { return a.store }
