package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/viper"

	"ufsvault/pkg/app"
	"ufsvault/pkg/config"
	"ufsvault/pkg/server"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load Config
	cfgFile := flag.String("config", "", "config file (default is ./.ufs/config.yaml or $HOME/.ufs/config.yaml)")
	addr := flag.String("addr", "", "listen address (overrides server.addr)")
	flag.Parse()

	if err := config.Load(*cfgFile); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := config.SetupLogger(os.Stderr); err != nil {
		return err
	}
	if *addr != "" {
		viper.Set("server.addr", *addr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Init Core Application
	application, err := app.NewApp(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize app: %w", err)
	}
	defer application.Close()
	slog.Info("ufsvault core initialized", "repo", application.RepoPath, "storage", viper.GetString("storage.type"))

	// 3. Setup Network
	listenAddr := viper.GetString("server.addr")
	lis, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", listenAddr, err)
	}

	// 4. Start Server (Async)
	grpcServer := server.New(application)
	errCh := make(chan error, 1)
	go func() {
		slog.Info("gRPC server listening", "addr", lis.Addr().String())
		errCh <- grpcServer.Serve(lis)
	}()

	// 5. Graceful Shutdown
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down server")
	grpcServer.GracefulStop()
	slog.Info("server stopped")
	return nil
}
