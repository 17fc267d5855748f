package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/loinc-conversion/internal/config"
	"github.com/ehr/loinc-conversion/internal/domain/conversion"
	"github.com/ehr/loinc-conversion/internal/platform/auth"
	"github.com/ehr/loinc-conversion/internal/platform/middleware"
	"github.com/ehr/loinc-conversion/internal/platform/refdata"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "conversion-server",
		Short:        "LOINC unit conversion service",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(convertCmd())
	rootCmd.AddCommand(checkDataCmd())
	rootCmd.AddCommand(healthcheckCmd())
	return rootCmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the conversion API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func convertCmd() *cobra.Command {
	var loinc, unit, value string
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Resolve a single (loinc, unit, value) and print the result as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			data, err := refdata.Load(cfg.TablePaths(), logger)
			if err != nil {
				return err
			}

			req := conversion.Request{Loinc: loinc, Unit: unit}
			if value != "" {
				req.Value = value
			}
			svc := newConversionService(data, cfg, logger)
			out := svc.Convert(cmd.Context(), req)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				return err
			}
			if out.Failed() {
				return fmt.Errorf("conversion failed")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&loinc, "loinc", "", "LOINC code")
	cmd.Flags().StringVar(&unit, "unit", "", "UCUM unit of the value")
	cmd.Flags().StringVar(&value, "value", "", "value to convert (default 1)")
	return cmd
}

func checkDataCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-data",
		Short: "Load the reference tables and print their sizes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			data, err := refdata.Load(cfg.TablePaths(), logger)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(data.Stats())
		},
	}
}

func healthcheckCmd() *cobra.Command {
	var url string
	var timeout time.Duration
	var retries int
	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Probe a running server's /health endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			if url == "" {
				port := os.Getenv("PORT")
				if port == "" {
					port = "8080"
				}
				url = "http://localhost:" + port + "/health"
			}
			if err := checkHealth(cmd.Context(), url, timeout, retries); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "healthy")
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "health endpoint (default http://localhost:$PORT/health)")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "per-attempt timeout")
	cmd.Flags().IntVar(&retries, "retries", 2, "retries after a failed attempt")
	return cmd
}

// checkHealth succeeds when url answers 200 with status "healthy".
func checkHealth(ctx context.Context, url string, timeout time.Duration, retries int) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var body healthResponse
	resp, err := resty.New().
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetRetryWaitTime(250*time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		}).
		R().
		SetContext(ctx).
		SetResult(&body).
		ForceContentType("application/json").
		Get(url)
	if err != nil {
		return fmt.Errorf("health check %s: %w", url, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("health check %s: status %d", url, resp.StatusCode())
	}
	if body.Status != "healthy" {
		return fmt.Errorf("health check %s: status %q", url, body.Status)
	}
	return nil
}

type healthResponse struct {
	Status      string `json:"status"`
	Description string `json:"description"`
}

func setup(logOut io.Writer) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if err := cfg.Validate(); err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("invalid config: %w", err)
	}
	return cfg, newLogger(cfg, logOut), nil
}

func newLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	logger := zerolog.New(out).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	}
	return logger.Level(cfg.Level())
}

func newConversionService(data *refdata.ReferenceData, cfg *config.Config, logger zerolog.Logger) *conversion.Service {
	resolver := conversion.NewResolver(data, conversion.NewUnitEngine())
	return conversion.NewService(resolver, cfg.BatchConcurrency, logger)
}

// newServer wires the middleware stack and routes.
func newServer(cfg *config.Config, data *refdata.ReferenceData, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	// Auth middleware
	jwtCfg := auth.JWTConfig{
		Secret:   []byte(cfg.AuthJWTSecret),
		JWKSURL:  cfg.AuthJWKSURL,
		Issuer:   cfg.AuthIssuer,
		Audience: cfg.AuthAudience,
		Skipper:  auth.AuthSkipper,
	}
	var routeMiddleware []echo.MiddlewareFunc
	if jwtCfg.Enabled() {
		e.Use(auth.JWTMiddleware(jwtCfg))
		if cfg.AuthScope != "" {
			routeMiddleware = append(routeMiddleware, auth.RequireScope(cfg.AuthScope))
		}
	} else {
		logger.Warn().Msg("authentication disabled: AUTH_JWT_SECRET and AUTH_JWKS_URL are empty")
	}

	// Rate limiting middleware
	rateLimitCfg := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rateLimitCfg.RequestsPerSecond = cfg.RateLimitRPS
	}
	if cfg.RateLimitBurst > 0 {
		rateLimitCfg.BurstSize = cfg.RateLimitBurst
	}
	e.Use(middleware.RateLimit(rateLimitCfg))

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, healthResponse{
			Status:      "healthy",
			Description: "application is healthy",
		})
	})
	e.GET("/health/ready", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":         "ready",
			"reference_data": data.Stats(),
		})
	})

	handler := conversion.NewHandler(newConversionService(data, cfg, logger), routeMiddleware...)
	handler.RegisterRoutes(e.Group(""), e.Group("/api/v1"))

	return e
}

func runServer() error {
	cfg, logger, err := setup(os.Stdout)
	if err != nil {
		// Logger is not configured yet.
		bootLogger := zerolog.New(os.Stdout).With().Timestamp().Logger()
		bootLogger.Fatal().Err(err).Msg("failed to load config")
	}

	// Reference data; a partial load must never serve traffic.
	data, err := refdata.Load(cfg.TablePaths(), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load reference data")
	}

	e := newServer(cfg, data, logger)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
