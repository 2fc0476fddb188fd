// Command tagctl is the FurTag operations CLI.
//
// Usage:
//
//	tagctl scans recent --pet p1 --limit 20
//	tagctl scans purge --days 90
//	tagctl mail test --to owner@example.com
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/X-404JPG/furtagph/internal/config"
	"github.com/X-404JPG/furtagph/internal/db"
	"github.com/X-404JPG/furtagph/internal/mail"
	"github.com/X-404JPG/furtagph/internal/postgres"
	"github.com/X-404JPG/furtagph/internal/scan"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "tagctl",
		Short: "FurTag operations CLI",
	}

	root.AddCommand(scansCmd())
	root.AddCommand(mailCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// scans command
// --------------------------------------------------------------------------

func scansCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scans",
		Short: "Inspect and prune the scan-event audit trail",
	}
	cmd.AddCommand(scansRecentCmd())
	cmd.AddCommand(scansPurgeCmd())
	return cmd
}

func scansRecentCmd() *cobra.Command {
	var petID string
	var limit int
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List recent scan events for a pet, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(ctx context.Context, store *postgres.Store) error {
				events, err := store.RecentScans(ctx, petID, limit)
				if err != nil {
					return err
				}
				if len(events) == 0 {
					fmt.Println("no scan events")
					return nil
				}
				for _, ev := range events {
					loc := "-"
					if ev.Lat != nil && ev.Lng != nil {
						loc = fmt.Sprintf("%.5f,%.5f", *ev.Lat, *ev.Lng)
					}
					fmt.Printf("%s  %-9s  emailed=%-5t  loc=%s\n",
						ev.CreatedAt.Format(time.RFC3339), ev.Outcome, ev.Emailed, loc)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&petID, "pet", "", "pet ID (required)")
	cmd.Flags().IntVar(&limit, "limit", 20, "max events to list")
	_ = cmd.MarkFlagRequired("pet")
	return cmd
}

func scansPurgeCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete scan events older than N days",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(ctx context.Context, store *postgres.Store) error {
				cutoff := time.Now().UTC().AddDate(0, 0, -days)
				purged, err := store.PurgeScans(ctx, cutoff)
				if err != nil {
					return err
				}
				logger.Info("Purged scan events", "count", purged, "cutoff", cutoff)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 90, "retention in days")
	return cmd
}

// --------------------------------------------------------------------------
// mail command
// --------------------------------------------------------------------------

func mailCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mail",
		Short: "Exercise the configured mail transport",
	}
	cmd.AddCommand(mailTestCmd())
	return cmd
}

func mailTestCmd() *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Send a probe message through the configured provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			mailer, err := mail.New(cfg)
			if err != nil {
				return err
			}
			if mailer == nil {
				return fmt.Errorf("no mail transport configured (set MAIL_PROVIDER)")
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			msg := scan.Compose("FurTag operator", "Probe", nil, nil)
			if err := mailer.Send(ctx, to, msg.Subject, msg.HTMLBody); err != nil {
				return fmt.Errorf("probe send failed: %w", err)
			}
			logger.Info("Probe message sent", "provider", cfg.MailProvider, "to", to)
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "recipient address (required)")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

// withStore connects, runs fn, and tears the pool down.
func withStore(fn func(ctx context.Context, store *postgres.Store) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	pool, err := db.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(ctx, postgres.NewStore(pool.Pool))
}
