package migration

import (
	"fmt"
	"io/fs"
	"os"

	"gorm.io/gorm"

	"github.com/accesshub/accesshub/internal/shared/config"
	"github.com/accesshub/accesshub/internal/shared/logger"
)

// Manager handles database migrations with different strategies
type Manager struct {
	strategy Strategy
	logger   logger.Interface
}

// NewManager picks the strategy named by cfg.MigrationStrategy. Scripts come
// from the embedded set unless cfg.ScriptsPath points at a directory with
// the same layout.
func NewManager(cfg *config.DatabaseConfig, log logger.Interface) (*Manager, error) {
	fsys, err := scriptsFS(cfg.ScriptsPath)
	if err != nil {
		return nil, err
	}
	dir := func(tool string) string {
		return scriptDir(tool, cfg.Driver)
	}

	var strategy Strategy
	switch cfg.MigrationStrategy {
	case StrategyGoose:
		strategy, err = NewGooseStrategy(fsys, dir("goose"), cfg.Driver, log)
	case StrategyGolangMigrate:
		strategy, err = NewGolangMigrateStrategy(fsys, dir("migrate"), cfg.Driver, cfg.GetDSN(), log)
	case StrategyAuto, "":
		strategy = NewGormAutoMigrateStrategy(log)
	default:
		err = fmt.Errorf("unknown migration strategy %q", cfg.MigrationStrategy)
	}
	if err != nil {
		return nil, err
	}

	return NewManagerWithStrategy(strategy, log), nil
}

// NewManagerWithStrategy creates a new migration manager with a specific strategy
func NewManagerWithStrategy(strategy Strategy, log logger.Interface) *Manager {
	return &Manager{
		strategy: strategy,
		logger:   log.With("component", "migration.manager"),
	}
}

// Migrate executes the configured migration strategy over all models.
func (m *Manager) Migrate(db *gorm.DB) error {
	m.logger.Infow("starting database migration", "strategy", m.strategy.GetName())

	if err := m.strategy.Migrate(db, Models()...); err != nil {
		m.logger.Errorw("migration failed", "strategy", m.strategy.GetName(), "error", err)
		return fmt.Errorf("migration failed with strategy %s: %w", m.strategy.GetName(), err)
	}

	m.logger.Infow("database migration completed successfully", "strategy", m.strategy.GetName())
	return nil
}

// Down rolls back steps versions when the strategy supports it.
func (m *Manager) Down(db *gorm.DB, steps int) error {
	r, ok := m.strategy.(Reverter)
	if !ok {
		return fmt.Errorf("down migration is not supported by strategy %s", m.strategy.GetName())
	}
	return r.MigrateDown(db, steps)
}

// Version reports the schema version when the strategy tracks one.
func (m *Manager) Version(db *gorm.DB) (int64, bool, error) {
	v, ok := m.strategy.(Versioner)
	if !ok {
		return 0, false, fmt.Errorf("strategy %s does not track versions", m.strategy.GetName())
	}
	return v.GetVersion(db)
}

func scriptsFS(scriptsPath string) (fs.FS, error) {
	if scriptsPath != "" {
		return os.DirFS(scriptsPath), nil
	}
	sub, err := fs.Sub(Scripts, "scripts")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded scripts: %w", err)
	}
	return sub, nil
}

// GetStrategy returns the current migration strategy
func (m *Manager) GetStrategy() Strategy {
	return m.strategy
}
