package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/devilmonastery/cvbuilder/internal/auth"
	"github.com/devilmonastery/cvbuilder/internal/auth/oidc"
	"github.com/devilmonastery/cvbuilder/internal/config"
	"github.com/devilmonastery/cvbuilder/internal/domain/services"
	"github.com/devilmonastery/cvbuilder/internal/pkg/idgen"
	"github.com/devilmonastery/cvbuilder/internal/pkg/logger"
	"github.com/devilmonastery/cvbuilder/internal/pkg/secretbox"
	"github.com/devilmonastery/cvbuilder/server/internal/api"
	"github.com/devilmonastery/cvbuilder/server/internal/middleware"
)

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand
type globalFlags struct {
	configPath    string
	logLevel      string
	logFile       string
	logToStderr   bool
	alsoLogStderr bool
	logFormat     string
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:   "server",
		Short: "CV builder identity server",
		Long:  "Resolves Google, Auth0, GitHub and Microsoft sign-ins to CV builder accounts and issues session tokens",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupServerLogging(flags)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), flags.configPath)
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "Path to config file (optional)")

	// Add logging flags
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&flags.logFile, "log-file", "", "Log file path (if specified, logs to file instead of stderr)")
	cmd.PersistentFlags().BoolVar(&flags.logToStderr, "logtostderr", false, "Log to stderr (default behavior unless --log-file specified)")
	cmd.PersistentFlags().BoolVar(&flags.alsoLogStderr, "alsologtostderr", false, "Log to both file and stderr")
	cmd.PersistentFlags().StringVar(&flags.logFormat, "log-format", "json", "Log format (text, json)")

	cmd.AddCommand(newServeCommand(flags))
	cmd.AddCommand(newMigrateCommand(flags))
	cmd.AddCommand(newAccountCommand(flags))

	return cmd
}

func newServeCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), flags.configPath)
		},
	}
}

// setupServerLogging configures the global logger for the server
func setupServerLogging(flags *globalFlags) error {
	logToStderr := flags.logToStderr
	// Default to stderr logging unless file is specified
	if flags.logFile == "" {
		logToStderr = true
	}

	globalLogger, err := logger.SetupLogger(logger.Config{
		Level:         logger.ParseLevel(flags.logLevel),
		LogFile:       flags.logFile,
		LogToStderr:   logToStderr,
		AlsoLogStderr: flags.alsoLogStderr,
		Format:        flags.logFormat,
	})
	if err != nil {
		return err
	}

	slog.SetDefault(globalLogger)
	return nil
}

func runServer(ctx context.Context, configPath string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.WithCommand(slog.Default(), "serve")
	log.Info("Starting server initialization")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := idgen.Initialize(cfg.NodeID); err != nil {
		return fmt.Errorf("failed to initialize ID generator: %w", err)
	}

	stores, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stores.Close()

	registry, err := oidc.NewRegistry(cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to initialize identity providers: %w", err)
	}
	for _, pt := range registry.ListAvailable() {
		log.Info("Identity provider configured", "provider", pt)
	}
	if len(registry.ListAvailable()) == 0 {
		log.Warn("No identity providers configured; every sign-in will be rejected")
	}

	jwtManager, err := auth.NewJWTManager(cfg.Auth.JWT)
	if err != nil {
		return fmt.Errorf("failed to initialize session tokens: %w", err)
	}

	var box *secretbox.Box
	if cfg.Auth.EncryptionKey != "" {
		box, err = secretbox.New(cfg.Auth.EncryptionKey)
		if err != nil {
			return fmt.Errorf("invalid auth.encryption_key: %w", err)
		}
	} else {
		log.Info("No encryption key configured; provider access tokens will not be stored")
	}

	identityService := services.NewIdentityService(registry, stores.Accounts, stores.Identities, jwtManager, services.IdentityServiceOptions{
		Box:                          box,
		RequireVerifiedEmailForMerge: cfg.Auth.RequireVerifiedEmailForMerge,
		Logger:                       slog.Default(),
	})

	handler := api.NewHandler(identityService, registry, stores.Pinger, slog.Default())
	limiter := middleware.NewRateLimiter(cfg.Server.RateLimit, slog.Default())

	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      api.NewRouter(handler, limiter, middleware.NewSessionMiddleware(jwtManager, slog.Default()), slog.Default()),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		ErrorLog:     slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn),
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", "address", server.Addr, "environment", cfg.Environment)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve HTTP: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down", "timeout", cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down cleanly: %w", err)
	}
	log.Info("Server stopped")
	return nil
}
