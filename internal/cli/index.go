package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/deidaraiorek/siteindex/internal/scheduler"
)

// Execute implements the go-flags Commander interface for IndexCommand.
func (c *IndexCommand) Execute(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(context.Background(), c.globals)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.scheduler.StartFullIndexing(ctx); err != nil {
		return err
	}

	if err := a.scheduler.Wait(ctx); err != nil {
		a.logger.Info("Interrupted, stopping indexing")
		drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := a.scheduler.Shutdown(drainCtx); err != nil {
			return fmt.Errorf("stop indexing: %w", err)
		}
	}

	stats, err := a.scheduler.Statistics(context.Background())
	if err != nil {
		return err
	}
	return printStatistics(c.out, stats, c.globals.JSON)
}

// Execute implements the go-flags Commander interface for StatsCommand.
func (c *StatsCommand) Execute(args []string) error {
	ctx := context.Background()

	a, err := newApp(ctx, c.globals)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.scheduler.Statistics(ctx)
	if err != nil {
		return err
	}
	return printStatistics(c.out, stats, c.globals.JSON)
}

func printStatistics(out io.Writer, stats scheduler.Statistics, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	fmt.Fprintln(out, "Index Statistics")
	fmt.Fprintln(out, "================")
	fmt.Fprintf(out, "Sites:    %d\n", stats.Total.Sites)
	fmt.Fprintf(out, "Pages:    %d\n", stats.Total.Pages)
	fmt.Fprintf(out, "Lemmas:   %d\n", stats.Total.Lemmas)
	fmt.Fprintf(out, "Indexing: %t\n", stats.Total.Indexing)

	if len(stats.Detailed) == 0 {
		return nil
	}
	fmt.Fprintln(out)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SITE\tSTATUS\tPAGES\tLEMMAS\tUPDATED\tERROR")
	for _, d := range stats.Detailed {
		status := d.Status
		if status == "" {
			status = "-"
		}
		updated := "-"
		if d.StatusTime > 0 {
			updated = time.UnixMilli(d.StatusTime).Format(time.DateTime)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n", d.URL, status, d.Pages, d.Lemmas, updated, d.Error)
	}
	return tw.Flush()
}
