package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"fieldsign/internal/config"
	"fieldsign/internal/mirror"
	"fieldsign/internal/notify"
	"fieldsign/internal/signing"
	"fieldsign/internal/store"
)

// newSweepCmd runs one maintenance pass: expire stale signing requests and,
// when the mirror is configured, drain the outbox.
func newSweepCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire stale signing requests and flush the mirror outbox",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg == nil || cfg.DBPath == "" {
				return fmt.Errorf("db path is required")
			}

			st, err := store.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			// The sweep never sends anything; the dispatcher is unused
			// past construction.
			quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
			svc := signing.NewService(st, noIdentity{}, &notify.LogDispatcher{Logger: quiet},
				cfg.ReviewBaseURL, slog.Default().With("component", "sweep"))

			expired, err := svc.CleanupExpired(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("expired %d signing request(s)\n", expired)

			if !cfg.Mirror.Enabled {
				return nil
			}

			client, err := mirror.NewPostgresClient(cfg.Mirror.DSN)
			if err != nil {
				return fmt.Errorf("connect mirror: %w", err)
			}
			defer client.Close()

			flusher := mirror.NewFlusher(st, client, slog.Default().With("component", "mirror"))
			if err := flusher.Flush(cmd.Context()); err != nil {
				return err
			}

			depth, err := st.OutboxDepth(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("outbox depth after flush: %d\n", depth)
			return nil
		},
	}
}

// noIdentity is used by maintenance commands that never create requests.
type noIdentity struct{}

func (noIdentity) UserID(ctx context.Context) (string, bool) { return "", false }
