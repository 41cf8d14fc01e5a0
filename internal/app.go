// Package internal wires the application together: config, logging,
// database and the report service.
package internal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/karloscodes/cartridge"

	"trailmark/internal/config"
	"trailmark/internal/database"
	"trailmark/internal/reports"
)

// Application bundles the long-lived components commands operate on.
type Application struct {
	Config    *config.Config
	Logger    *slog.Logger
	DBManager *database.DBManager
	Reports   *reports.Service
}

// NewApp creates a new application instance with default settings
func NewApp() (*Application, error) {
	return NewAppWithConfig(config.GetConfig())
}

// NewAppWithConfig creates a new application with the provided config
func NewAppWithConfig(cfg *config.Config) (*Application, error) {
	logger := cartridge.NewLogger(cfg, nil)

	dbManager := database.NewDBManager(cfg, logger)
	if err := dbManager.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return &Application{
		Config:    cfg,
		Logger:    logger,
		DBManager: dbManager,
		Reports:   reports.NewService(dbManager.GetConnection(), cfg, logger),
	}, nil
}

// Shutdown closes the database connection. The context bounds how long
// the close may take.
func (a *Application) Shutdown(ctx context.Context) error {
	db := a.DBManager.GetConnection()
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to access underlying connection: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- sqlDB.Close() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
