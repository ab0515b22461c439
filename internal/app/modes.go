package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"alpacon-mcp/pkg/logging"
)

// shutdownTimeout bounds the graceful stop sequence.
const shutdownTimeout = 10 * time.Second

// runServer starts the credential watcher and the MCP server, then waits for
// SIGINT, SIGTERM, context cancellation, or the transport exiting (stdin
// closed for stdio).
func runServer(ctx context.Context, services *Services) error {
	if services.Watcher != nil {
		if err := services.Watcher.Start(); err != nil {
			logging.Warn("App", "Credential watcher disabled: %v", err)
		}
	}

	if err := services.Server.Start(ctx); err != nil {
		logging.Error("App", err, "Failed to start MCP server")
		services.Close()
		return err
	}
	if addr := services.Server.Addr(); addr != "" {
		logging.Info("App", "MCP server listening on %s", addr)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		logging.Info("App", "Received %s, shutting down", sig)
	case <-ctx.Done():
		logging.Info("App", "Context cancelled, shutting down")
	case <-services.Server.Done():
		logging.Info("App", "Transport closed, shutting down")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := services.Server.Stop(stopCtx); err != nil {
		logging.Warn("App", "Error stopping MCP server: %v", err)
	}
	services.Close()
	return nil
}
