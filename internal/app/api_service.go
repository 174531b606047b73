package app

import (
	"context"
	"sync"

	"github.com/dokzlo13/sunrised/internal/api"
	"github.com/dokzlo13/sunrised/internal/config"
	"github.com/dokzlo13/sunrised/internal/state"
)

// APIService runs the configuration API, which also serves health checks.
type APIService struct {
	cfg    *config.Config
	Server *api.Server
}

// NewAPIService creates a new APIService.
func NewAPIService(cfg *config.Config, runtime *state.Runtime, history api.History, ready func() bool) *APIService {
	return &APIService{
		cfg:    cfg,
		Server: api.NewServer(cfg.API.Addr(), runtime, history, ready),
	}
}

// Start serves the API in the background. A listen failure is fatal.
func (s *APIService) Start(ctx context.Context, wg *sync.WaitGroup, onFatalError func(error)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.Server.Run(ctx, s.cfg.ShutdownTimeout.Duration()); err != nil {
			onFatalError(err)
		}
	}()
}
