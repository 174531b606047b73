package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sunrised/internal/api"
	"github.com/dokzlo13/sunrised/internal/config"
	"github.com/dokzlo13/sunrised/internal/db"
	"github.com/dokzlo13/sunrised/internal/eventbus"
	"github.com/dokzlo13/sunrised/internal/ledger"
)

// LedgerService records controller lifecycle events in SQLite.
type LedgerService struct {
	cfg    *config.Config
	DB     *db.DB
	Ledger *ledger.Ledger
}

// NewLedgerService opens the database and subscribes the ledger to lifecycle
// events. A disabled ledger opens nothing.
func NewLedgerService(cfg *config.Config, bus *eventbus.Bus) (*LedgerService, error) {
	s := &LedgerService{cfg: cfg}
	if !cfg.Ledger.IsEnabled() {
		log.Info().Msg("Fade ledger is disabled")
		return s, nil
	}

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	s.DB = database
	s.Ledger = ledger.New(database.DB)

	bus.Subscribe(s.Ledger.Handler(), eventbus.Lifecycle...)
	return s, nil
}

// History returns the ledger as an API history source, or nil when disabled.
func (s *LedgerService) History() api.History {
	if s.Ledger == nil {
		return nil
	}
	return s.Ledger
}

// Start begins the periodic retention cleanup.
func (s *LedgerService) Start(ctx context.Context, wg *sync.WaitGroup) {
	if s.Ledger == nil {
		return
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Ledger.RunCleanup(ctx, s.cfg.Ledger.CleanupInterval.Duration(), s.cfg.Ledger.Retention.Duration())
	}()
}

// Close closes the database.
func (s *LedgerService) Close() {
	if s.DB != nil {
		s.DB.Close()
	}
}
