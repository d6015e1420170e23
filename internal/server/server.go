package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"daoquery/internal/balancer"
	"daoquery/internal/cache"
	"daoquery/internal/config"
	"daoquery/internal/drafts"
	"daoquery/internal/proxy"
	"daoquery/internal/subscription"
	"daoquery/internal/upstream"
	"daoquery/internal/ws"
)

// Server represents the main server
type Server struct {
	cfg        *config.Config
	router     *proxy.Router
	cache      *cache.Cache
	store      drafts.Store
	drafts     *drafts.Manager
	registry   *subscription.Registry
	subManager *subscription.Manager
	rpcServer  *http.Server
	wsServer   *http.Server
	logger     zerolog.Logger

	stopStats chan struct{}
	statsWg   sync.WaitGroup
}

// New creates a new Server
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	router := proxy.NewRouter()

	queryCache, err := cache.New(router, cache.Options{
		Size:         cfg.Cache.Size,
		TTL:          cfg.Cache.GetTTLDuration(),
		FetchTimeout: cfg.Cache.GetFetchTimeoutDuration(),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}

	logger.Info().
		Int("size", cfg.Cache.Size).
		Int("ttl", cfg.Cache.TTL).
		Int("fetchTimeout", cfg.Cache.FetchTimeout).
		Msg("query cache created")

	store, err := openDraftStore(ctx, cfg.Drafts)
	if err != nil {
		queryCache.Close()
		return nil, err
	}

	logger.Info().
		Str("backend", cfg.Drafts.Backend).
		Int("debounce", cfg.Drafts.Debounce).
		Msg("draft store opened")

	registry := subscription.NewRegistry(queryCache, logger)
	subManager := subscription.NewManager(registry, cfg.MaxSubscriptions, logger)

	return &Server{
		cfg:        cfg,
		router:     router,
		cache:      queryCache,
		store:      store,
		drafts:     drafts.NewManager(store, cfg.Drafts.GetDebounceDuration(), cfg.Drafts.KeyPrefix, logger),
		registry:   registry,
		subManager: subManager,
		logger:     logger,
		stopStats:  make(chan struct{}),
	}, nil
}

// openDraftStore opens the configured draft backend
func openDraftStore(ctx context.Context, cfg config.DraftsConfig) (drafts.Store, error) {
	switch cfg.Backend {
	case config.BackendRedis:
		store, err := drafts.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("failed to open redis draft store: %w", err)
		}
		return store, nil
	case config.BackendSQLite:
		store, err := drafts.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite draft store: %w", err)
		}
		return store, nil
	default:
		return drafts.NewMemoryStore(), nil
	}
}

// AddChain adds the LCD endpoints of a chain to the server
func (s *Server) AddChain(chainCfg config.ChainConfig) {
	pool := upstream.NewPool(chainCfg, s.cfg, s.logger)
	pool.SetSelector(balancer.NewWeightedRoundRobin(pool))

	s.router.AddPool(pool)
	s.logger.Info().
		Str("chain", chainCfg.ChainID).
		Int("endpoints", len(chainCfg.Endpoints)).
		Msg("added chain")
}

// Start starts the server
func (s *Server) Start() error {
	rpcHandler := proxy.NewHandler(s.router, s.cache, s.drafts, s.cfg, s.logger)
	wsHandler := ws.NewHandler(rpcHandler, s.subManager, s.logger)

	rpcAddr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.RPCPort)
	wsAddr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.WSPort)

	// Start RPC server
	s.rpcServer = &http.Server{
		Addr:         rpcAddr,
		Handler:      rpcHandler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		s.logger.Info().
			Str("addr", rpcAddr).
			Msg("starting RPC server")
		if err := s.rpcServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("RPC server error")
		}
	}()

	// WebSocket connections are long lived, so no read/write timeouts here
	s.wsServer = &http.Server{
		Addr:        wsAddr,
		Handler:     wsHandler,
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		s.logger.Info().
			Str("addr", wsAddr).
			Msg("starting WebSocket server")
		if err := s.wsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("WebSocket server error")
		}
	}()

	if interval := s.cfg.GetStatsLogIntervalDuration(); interval > 0 {
		s.statsWg.Add(1)
		go s.statsLoop(interval)
	}

	for _, chainID := range s.router.ChainIDs() {
		s.logger.Info().
			Str("chain", chainID).
			Str("rpc", fmt.Sprintf("http://%s/", rpcAddr)).
			Str("ws", fmt.Sprintf("ws://%s/", wsAddr)).
			Msg("chain available")
	}

	return nil
}

// statsLoop periodically logs endpoint and cache counters
func (s *Server) statsLoop(interval time.Duration) {
	defer s.statsWg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopStats:
			return
		case <-ticker.C:
			s.router.LogStats()
			stats := s.cache.SwapStats()
			s.logger.Info().
				Uint64("hits", stats.Hits).
				Uint64("misses", stats.Misses).
				Uint64("coalesced", stats.Coalesced).
				Uint64("failures", stats.Failures).
				Uint64("invalidations", stats.Invalidations).
				Int("entries", s.cache.Len()).
				Uint64("draftFailures", s.drafts.Failures()).
				Msg("cache stats")
		}
	}
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("shutting down server...")

	close(s.stopStats)
	s.statsWg.Wait()

	// Shutdown HTTP servers
	var rpcErr, wsErr error
	if s.rpcServer != nil {
		rpcErr = s.rpcServer.Shutdown(ctx)
	}
	if s.wsServer != nil {
		wsErr = s.wsServer.Shutdown(ctx)
	}

	// Hijacked WebSocket connections are not closed by Shutdown
	s.subManager.CloseAll()
	s.registry.Close()

	var errs []error
	if err := s.drafts.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("draft flush error: %w", err))
	}

	s.cache.Close()
	s.router.CloseAll()

	if closer, ok := s.store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("draft store close error: %w", err))
		}
	}

	if rpcErr != nil {
		errs = append(errs, fmt.Errorf("RPC server shutdown error: %w", rpcErr))
	}
	if wsErr != nil {
		errs = append(errs, fmt.Errorf("WebSocket server shutdown error: %w", wsErr))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	s.logger.Info().Msg("server stopped")
	return nil
}

// GetRouter returns the router
func (s *Server) GetRouter() *proxy.Router {
	return s.router
}

// GetCache returns the query cache
func (s *Server) GetCache() *cache.Cache {
	return s.cache
}

// GetSubscriptionManager returns the subscription manager
func (s *Server) GetSubscriptionManager() *subscription.Manager {
	return s.subManager
}
