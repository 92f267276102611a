package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"quote-ticker/src/logger"
	"quote-ticker/src/models"

	"github.com/gin-gonic/gin"
)

// QuoteService is the engine surface the HTTP and WebSocket handlers use.
type QuoteService interface {
	RefreshAll(ctx context.Context, symbols []string) ([]models.MQuote, error)
	Refresh(ctx context.Context, symbols []string) ([]models.MQuote, error)
	CachedQuotes() []models.MQuote
	Settings(ctx context.Context) models.MQuoteSettings
	UpdateSettings(ctx context.Context, update models.MQuoteSettingsUpdate) (models.MQuoteSettings, error)
}

// -----------------------------------------------------------------------------
// APIServer
// -----------------------------------------------------------------------------

type APIServer struct {
	Config *models.MConfig
	Logger *logger.Logger
	engine *gin.Engine
	quotes QuoteService
	http   *http.Server

	// WebSocket clients, owned by the hub goroutine
	clients     map[*Client]struct{}
	connections atomic.Int64
	broadcast   chan models.MEvent // Buffered Queue
	register    chan *Client
	unregister  chan *Client
	quit        chan struct{}
	hubOnce     sync.Once
	stopOnce    sync.Once
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewAPIServer(cfg *models.MConfig, quotes QuoteService, log *logger.Logger) *APIServer {
	// Set Gin mode
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &APIServer{
		Config:  cfg,
		Logger:  log,
		engine:  gin.New(),
		quotes:  quotes,
		clients: make(map[*Client]struct{}),
		// Queue size of 256 absorbs bursts of refreshes
		broadcast:  make(chan models.MEvent, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
	}

	s.engine.Use(gin.Recovery(), requestID(), accessLog(log))

	// Add CORS Middleware
	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "OPTIONS, GET, PUT")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *APIServer) setupRoutes() {
	api := s.engine.Group("/api")
	api.GET("/health", s.getHealth)
	api.GET("/quotes", s.getQuotes)
	api.GET("/quotes/default", s.getDefaultQuotes)
	api.GET("/quotes/settings", s.getSettings)
	api.PUT("/quotes/settings", s.putSettings)

	// WebSocket endpoint
	s.engine.GET("/ws", s.handleWebSocket)
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// Handler starts the hub and returns the router.
func (s *APIServer) Handler() http.Handler {
	s.hubOnce.Do(func() { go s.handleWebsockets() })
	return s.engine
}

// -----------------------------------------------------------------------------

// Start serves until Stop is called.
func (s *APIServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.Logger.Info("Starting server on %s", addr)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

// Stop shuts the listener down and disconnects every client.
func (s *APIServer) Stop(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		if s.http != nil {
			err = s.http.Shutdown(ctx)
		}
		close(s.quit)
	})
	return err
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *APIServer) getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"connections": s.connections.Load(),
		"timestamp":   time.Now().UnixMilli(),
	})
}

// -----------------------------------------------------------------------------

func (s *APIServer) getQuotes(c *gin.Context) {
	ctx := c.Request.Context()

	var symbols []string
	if raw := c.Query("symbols"); raw != "" {
		symbols = strings.Split(raw, ",")
	}

	var (
		quotes []models.MQuote
		err    error
	)
	switch {
	case len(symbols) > 0 && strings.TrimSpace(symbols[0]) != "":
		quotes, err = s.quotes.RefreshAll(ctx, symbols)
	default:
		quotes = s.quotes.CachedQuotes()
		if len(quotes) == 0 {
			quotes, err = s.quotes.Refresh(ctx, nil)
		}
	}

	s.respondQuotes(c, quotes, err, "Failed to fetch quotes")
}

// -----------------------------------------------------------------------------

func (s *APIServer) getDefaultQuotes(c *gin.Context) {
	quotes, err := s.quotes.Refresh(c.Request.Context(), nil)
	s.respondQuotes(c, quotes, err, "Failed to fetch default quotes")
}

// -----------------------------------------------------------------------------

func (s *APIServer) respondQuotes(c *gin.Context, quotes []models.MQuote, err error, failure string) {
	if err != nil && !isEmptyResult(err) {
		s.Logger.Error("%s: %v", failure, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": failure})
		return
	}
	if quotes == nil {
		quotes = []models.MQuote{}
	}
	c.JSON(http.StatusOK, gin.H{"quotes": quotes, "timestamp": time.Now().UnixMilli()})
}

// -----------------------------------------------------------------------------

func (s *APIServer) getSettings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"settings":  s.quotes.Settings(c.Request.Context()),
		"timestamp": time.Now().UnixMilli(),
	})
}

// -----------------------------------------------------------------------------

func (s *APIServer) putSettings(c *gin.Context) {
	update, err := bindSettingsUpdate(c)
	if err != nil {
		s.Logger.Warning("Rejected settings update: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	settings, err := s.quotes.UpdateSettings(c.Request.Context(), update)
	if err != nil {
		status := http.StatusInternalServerError
		if isInvalidInput(err) {
			status = http.StatusBadRequest
		}
		s.Logger.Error("Failed to update quote settings: %v", err)
		c.JSON(status, gin.H{"error": "Failed to update quote settings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"settings": settings, "status": "ok"})
}
