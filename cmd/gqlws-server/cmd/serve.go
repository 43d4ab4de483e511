package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tsarna/graphql-transport-ws/config"
	"github.com/tsarna/graphql-transport-ws/examples/greeter"
	"github.com/tsarna/graphql-transport-ws/server"
	"go.uber.org/zap"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve [config-files-or-directories...]",
	Short: "Start the gqlws server",
	Long: `Start the gqlws server with the specified configuration files or
directories.

The server loads HCL configuration describing one or more listener
blocks, mounts each at its configured path, and serves until it
receives SIGINT or SIGTERM.

Examples:
  gqlws-server serve config.hcl
  gqlws-server serve ./configs/
  gqlws-server serve config1.hcl config2.hcl ./more-configs/`,
	Args: cobra.MinimumNArgs(1),
	RunE: runServe,
}

var (
	logLevel   string
	listenAddr string
	production bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&logLevel, "log-level", "l", "info", "log level (debug, info, warn, error)")
	serveCmd.Flags().StringVarP(&listenAddr, "addr", "a", ":8080", "address to listen on")
	serveCmd.Flags().BoolVar(&production, "production", false, "replace internal-error close reasons with a generic message")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, err := setupLogger()
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer logger.Sync()

	cfg, diags := config.NewConfig().
		WithLogger(logger).
		WithSources(stringSliceToAnySlice(args)...).
		Build()
	if diags.HasErrors() {
		logger.Error("failed to build config", zap.Any("diags", diags))
		return diags
	}
	if len(cfg.Listeners) == 0 {
		return errors.New("no listener blocks defined")
	}

	mux := http.NewServeMux()
	var listeners []*server.Listener
	for name, spec := range cfg.Listeners {
		listener, err := server.NewListenerConfig().
			WithLogger(logger.Named(name)).
			WithFactory(greeter.New(0)).
			WithProduction(production).
			FromListenerSpec(spec).
			Build()
		if err != nil {
			return fmt.Errorf("listener %q: %w", name, err)
		}
		logger.Info("mounting listener", zap.String("name", name), zap.String("path", spec.Path))
		mux.Handle(spec.Path, listener)
		listeners = append(listeners, listener)
	}

	httpServer := &http.Server{
		Addr:    listenAddr,
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", listenAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown error", zap.Error(err))
	}
	for _, listener := range listeners {
		if err := listener.Shutdown(shutdownCtx); err != nil {
			logger.Warn("listener shutdown error", zap.Error(err))
		}
	}

	return <-serveErr
}

func setupLogger() (*zap.Logger, error) {
	level := logLevel
	debugFlag := GetDebug()
	verboseFlag := GetVerbose()

	if debugFlag {
		level = "debug"
	} else if verboseFlag && level == "info" {
		level = "debug"
	}

	var zapLevel zap.AtomicLevel
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn", "warning":
		zapLevel = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapLevel = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zapLevel
	cfg.Development = debugFlag

	return cfg.Build()
}

func stringSliceToAnySlice(strs []string) []any {
	anys := make([]any, len(strs))
	for i, s := range strs {
		anys[i] = s
	}
	return anys
}
