/*
Command seed loads review exports into the reviews table.

Usage:

	seed --file reviews.json
	mongoexport --jsonArray -c reviews | seed --file -

The input is a JSON array of review documents with snake_case keys
(review_id, review_date, rating, review_title, review_text, year, month,
domain, entity_name, category). Re-running with the same export updates
rows in place.
*/
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/review-insights/internal/config"
	"github.com/suPer8Hu/review-insights/internal/db"
	"github.com/suPer8Hu/review-insights/internal/logger"
	"github.com/suPer8Hu/review-insights/internal/review"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	zapLog := logger.New(cfg.LogLevel, cfg.LogFormat)
	defer zapLog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(cfg, zapLog).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(cfg config.Config, zapLog *zap.Logger) *cobra.Command {
	var (
		file  string
		dsn   string
		batch int
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Import a JSON review export into the database",
		Example: `  seed --file reviews.json
  seed --file - < reviews.json
  seed --file reviews.json --dsn sqlite://reviews.db`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("open %s: %w", file, err)
				}
				defer f.Close()
				in = f
			}
			return runSeed(cmd.Context(), dsn, in, batch, zapLog)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", `JSON array of reviews ("-" reads stdin)`)
	cmd.Flags().StringVar(&dsn, "dsn", cfg.DBDSN, "database DSN (defaults to DB_DSN)")
	cmd.Flags().IntVar(&batch, "batch", 500, "rows per insert batch")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runSeed(ctx context.Context, dsn string, in io.Reader, batch int, zapLog *zap.Logger) error {
	gdb, err := db.Connect(dsn, zapLog)
	if err != nil {
		return err
	}
	if sqlDB, err := gdb.DB(); err == nil {
		defer sqlDB.Close()
	}
	if err := db.Migrate(gdb); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	start := time.Now()
	n, err := review.ImportJSON(ctx, in, review.NewRepo(gdb), batch)
	if err != nil {
		zapLog.Error("review import failed", zap.Int("imported", n), zap.Error(err))
		return err
	}
	zapLog.Info("reviews imported", zap.Int("count", n), zap.Duration("took", time.Since(start)))
	return nil
}
