// Command worksync mirrors the work-records table of a relational
// database into a table of a Coda-style document service, replacing the
// remote table's contents on every run. It is meant to run as a
// single-instance cron job; concurrent runs against the same remote
// table are not guarded.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/acordero/worksync/internal/coda"
	"github.com/acordero/worksync/internal/config"
	"github.com/acordero/worksync/internal/credential"
	"github.com/acordero/worksync/internal/store"
	"github.com/acordero/worksync/internal/sync"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "worksync:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "worksync",
		Short:         "Mirror work records into a remote document table",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCmd())
	root.AddCommand(newAuthCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var logFile string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one full synchronization pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(logFile)

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()

			db, err := store.Open(ctx, cfg.DBDriver, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()

			client := coda.NewClient(cfg.BaseURL, cfg.APIToken)

			syncer := sync.New(client, db, sync.Options{
				DocName:   cfg.DocName,
				TableName: cfg.TableName,
				Logger:    log,
			})

			if err := syncer.Run(ctx); err != nil {
				log.Error("sync aborted", "error", err)
				return err
			}

			log.Info("sync complete")
			return nil
		},
	}

	cmd.Flags().StringVar(&logFile, "log-file", "",
		"append logs to this file (rotated) instead of stderr")
	return cmd
}

func newAuthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auth <token>",
		Short: "Store the document API token in the system keyring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := credential.Set(credential.TokenKey, args[0]); err != nil {
				return err
			}
			fmt.Println("token stored")
			return nil
		},
	}
}

// newLogger builds the run logger: text handler on stderr, or a
// size-rotated file when --log-file is set. Every record carries a
// short run ID so interleaved cron logs stay attributable.
func newLogger(logFile string) *slog.Logger {
	var w io.Writer = os.Stderr
	if logFile != "" {
		w = &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
		}
	}

	log := slog.New(slog.NewTextHandler(w, nil))
	return log.With("run", uuid.NewString()[:8])
}
