package api

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/aof-gg/aofkeeper/internal/config"
	intnet "github.com/aof-gg/aofkeeper/internal/network"
	"github.com/aof-gg/aofkeeper/internal/storage"
	"github.com/aof-gg/aofkeeper/internal/util"
)

// Server is the REST API over the replay archive.
type Server struct {
	cfg       config.APIConfig
	archive   *storage.Archive
	replayDir string
	version   string
	logger    zerolog.Logger

	httpServer *http.Server
	router     *gin.Engine
}

// NewServer creates a new API server. replayDir is reported in the status
// endpoint's disk usage.
func NewServer(cfg config.APIConfig, archive *storage.Archive, replayDir, version string, debug bool) *Server {
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	return &Server{
		cfg:       cfg,
		archive:   archive,
		replayDir: replayDir,
		version:   version,
		logger:    util.ComponentLogger("api"),
	}
}

// Handler returns the router, building it on first use.
func (s *Server) Handler() http.Handler {
	if s.router == nil {
		s.router = s.buildRouter()
	}
	return s.router
}

// Start listens on the configured address and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.BindAddress, s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	lc := intnet.ListenConfig()
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("API server error: %w", err)
	}

	if s.cfg.TLSEnabled {
		tlsCfg, err := loadTLSConfig(s.cfg)
		if err != nil {
			ln.Close()
			return err
		}
		s.httpServer.TLSConfig = tlsCfg
		ln = tls.NewListener(ln, tlsCfg)
	}

	s.logger.Info().Str("addr", addr).Bool("tls", s.cfg.TLSEnabled).Msg("REST API server starting")

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("API server error: %w", err)
	}
	return nil
}

// loadTLSConfig loads the configured certificate, generating a self-signed
// one first when the certificate file does not exist.
func loadTLSConfig(cfg config.APIConfig) (*tls.Config, error) {
	if _, err := os.Stat(cfg.TLSCertFile); errors.Is(err, os.ErrNotExist) {
		if err := util.GenerateSelfSignedCert(cfg.TLSCertFile, cfg.TLSKeyFile, cfg.BindAddress, "localhost"); err != nil {
			return nil, fmt.Errorf("failed to generate API TLS certificate: %w", err)
		}
	}

	cert, err := tls.LoadX509KeyPair(cfg.TLSCertFile, cfg.TLSKeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load API TLS certificate: %w", err)
	}
	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
	}, nil
}

func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(RequestLogger(s.logger))
	router.Use(SecurityHeaders())

	allowedOrigins := s.cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	router.Use(NewRateLimiter(s.cfg.RateLimitRPS).Middleware())

	public := router.Group("/api/public")
	{
		public.GET("/ping", s.handlePing)
		public.GET("/status", s.handleStatus)
	}

	replays := router.Group("/api/replays")
	{
		replays.GET("", s.handleListReplays)
		replays.GET("/:name", s.handleGetReplay)
		replays.GET("/:name/raw", s.handleGetRaw)
		replays.GET("/:name/keyframes/:id", s.handleGetFragment(keyframes))
		replays.GET("/:name/chunks/:id", s.handleGetFragment(chunks))
		replays.POST("/:name", s.handleUploadRaw)
		replays.PUT("/:name", s.handleSaveReplay)
		replays.DELETE("/:name", s.handleDeleteReplay)
	}

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "aofkeeper API is running"})
	})

	return router
}

// Stop gracefully stops the API server.
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
