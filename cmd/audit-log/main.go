// Command audit-log prints the most recent sign-in attempts from the audit log.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/url"
	"os"
	"text/tabwriter"
	"time"

	"github.com/pscheid92/thereiwas/internal/adapter/postgres"
	"github.com/pscheid92/thereiwas/internal/domain"
	"github.com/pscheid92/thereiwas/internal/platform/logging"
)

func main() {
	var (
		databaseURL = flag.String("database", os.Getenv("DATABASE_URL"), "PostgreSQL URL (or set DATABASE_URL env)")
		limit       = flag.Int("limit", 50, "Number of entries to print")
		failedOnly  = flag.Bool("failed", false, "Only print failed attempts")
		verbose     = flag.Bool("verbose", false, "Verbose logging")
	)
	flag.Parse()

	if *databaseURL == "" {
		log.Fatal("Database URL required (--database or DATABASE_URL env)")
	}
	if *limit < 1 {
		log.Fatal("--limit must be at least 1")
	}

	logLevel := "info"
	if *verbose {
		logLevel = "debug"
	}
	slog.SetDefault(logging.New(os.Stderr, logLevel, "text"))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := postgres.Connect(ctx, *databaseURL, postgres.ConnectOptions{
		ApplicationName: "thereiwas-audit-log",
		MaxConns:        1,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()
	slog.Debug("Connected to database", "url", sanitizeURL(*databaseURL))

	entries, err := loadEntries(ctx, postgres.NewAuditRepo(pool), *limit, *failedOnly)
	if err != nil {
		log.Fatalf("Failed to read audit log: %v", err)
	}

	if err := printEntries(os.Stdout, entries); err != nil {
		log.Fatalf("Failed to print audit log: %v", err)
	}
}

type auditLister interface {
	Recent(ctx context.Context, limit int) ([]domain.AuditEntry, error)
	RecentWithResult(ctx context.Context, limit int, result domain.AuditResult) ([]domain.AuditEntry, error)
}

// loadEntries lets the database apply the -failed filter so -limit counts failed attempts only.
func loadEntries(ctx context.Context, lister auditLister, limit int, failedOnly bool) ([]domain.AuditEntry, error) {
	if failedOnly {
		return lister.RecentWithResult(ctx, limit, domain.AuditFailed)
	}
	return lister.Recent(ctx, limit)
}

func printEntries(w io.Writer, entries []domain.AuditEntry) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tACTION\tRESULT\tSOURCE")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.RequestTime.UTC().Format(time.RFC3339), e.Action, e.Result, e.Source)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}
	return nil
}

// sanitizeURL hides the password of a connection URL for logging.
func sanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	return u.Redacted()
}
