// Package api exposes the derivation pipeline over HTTP for browser
// front-ends: quote derivation, call building, health, and metrics. The
// server holds no keys and never submits; clients sign and broadcast the
// returned calls themselves.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"swapScope/internal/dex"
	"swapScope/internal/router"
	"swapScope/internal/swap"
)

const (
	// defaultSlippageBips applies when a request leaves the tolerance unset.
	defaultSlippageBips = 50
	// defaultDeadlineTTL is how long built calls stay valid past the latest
	// block timestamp.
	defaultDeadlineTTL = 20 * time.Minute
	// defaultShutdownTimeout bounds the drain of in-flight requests.
	defaultShutdownTimeout = 5 * time.Second
)

// Config carries the HTTP surface settings. Tokens is optional; a fresh
// metadata cache is created when nil.
type Config struct {
	ListenAddr      string
	SlippageBips    uint64
	DeadlineTTL     time.Duration
	ShutdownTimeout time.Duration
	Contracts       dex.Contracts
	Tokens          *dex.TokenMetaCache
}

// Server is the HTTP quote surface.
type Server struct {
	cfg       Config
	deriver   router.TradeDeriver
	caller    dex.Caller
	head      swap.HeadReader
	contracts dex.Contracts
	tokens    *dex.TokenMetaCache
	logger    *zap.Logger
	engine    *gin.Engine
}

// NewServer wires the quote surface around a trade deriver.
func NewServer(cfg Config, deriver router.TradeDeriver, caller dex.Caller, head swap.HeadReader, logger *zap.Logger) (*Server, error) {
	if deriver == nil {
		return nil, fmt.Errorf("trade deriver is nil")
	}
	if caller == nil {
		return nil, fmt.Errorf("chain caller is nil")
	}
	if head == nil {
		return nil, fmt.Errorf("head reader is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.SlippageBips == 0 {
		cfg.SlippageBips = defaultSlippageBips
	}
	if cfg.DeadlineTTL <= 0 {
		cfg.DeadlineTTL = defaultDeadlineTTL
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	tokens := cfg.Tokens
	if tokens == nil {
		tokens = dex.NewTokenMetaCache()
	}

	s := &Server{
		cfg:       cfg,
		deriver:   deriver,
		caller:    caller,
		head:      head,
		contracts: cfg.Contracts,
		tokens:    tokens,
		logger:    logger,
	}
	s.engine = s.routes()
	return s, nil
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	corsConf := cors.DefaultConfig()
	corsConf.AllowAllOrigins = true
	r.Use(cors.New(corsConf))

	r.Use(observeRequests())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	api.GET("/quote", s.getQuote)
	api.POST("/swap/build", s.buildSwap)
	return r
}

// Handler returns the routing table, primarily for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until the context ends, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.ListenAddr, Handler: s.engine}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	s.logger.Info("http server started", zap.String("addr", s.cfg.ListenAddr))

	select {
	case err := <-errc:
		return fmt.Errorf("serve http: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("http server did not drain", zap.Error(err))
		return err
	}
	<-errc
	s.logger.Info("http server stopped")
	return ctx.Err()
}
