package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/deidaraiorek/siteindex/internal/api"
)

// Execute implements the go-flags Commander interface for ServeCommand.
func (c *ServeCommand) Execute(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, c.globals)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := a.cfg.Server.Addr
	if c.Addr != "" {
		addr = c.Addr
	}

	server := api.NewServer(a.scheduler, a.store, a.lemmatizer, addr, a.logger)
	serveErr := server.Start(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := a.scheduler.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("Indexing did not drain before shutdown", "error", err)
	}

	a.logger.Info("Server stopped")
	return serveErr
}
