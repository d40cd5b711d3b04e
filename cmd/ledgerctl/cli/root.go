// Package cli implements the ledgerctl administration commands.
package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tallyerp/bookkeeping/internal/accounting/reports"
	"github.com/tallyerp/bookkeeping/internal/accounting/store"
	"github.com/tallyerp/bookkeeping/internal/app"
	"github.com/tallyerp/bookkeeping/internal/platform/db"
	"github.com/tallyerp/bookkeeping/internal/shared"
	"github.com/tallyerp/bookkeeping/migrations"
)

// Books is the part of the store service the commands drive.
type Books interface {
	SeedCompany(ctx context.Context, sess shared.Session) error
	Companies(ctx context.Context) ([]uuid.UUID, error)
	VerifyIntegrity(ctx context.Context, companyID uuid.UUID) (store.IntegrityReport, error)
	ExportCSV(ctx context.Context, sess shared.Session, kind reports.Kind, q store.ReportQuery, w io.Writer) error
	ExportHSN(ctx context.Context, sess shared.Session, month, year int, w io.Writer) error
}

// Runtime holds what the commands operate on. Nil fields disable the commands needing them.
type Runtime struct {
	Books   Books
	Migrate func() (db.MigrationResult, error)
	Jobs    *JobsCLI
	Close   func() error
}

// Opener builds the runtime once flags are parsed.
type Opener func(ctx context.Context) (*Runtime, error)

var errNotConfigured = errors.New("ledgerctl: command not available in this runtime")

// Execute runs ledgerctl against the configured PostgreSQL and Redis.
func Execute() error {
	root, st := newRoot(openFromEnv)
	err := root.Execute()
	return errors.Join(err, st.close())
}

type state struct {
	rt     *Runtime
	cancel context.CancelFunc
}

func (s *state) runtime() *Runtime { return s.rt }

func (s *state) close() error {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.rt == nil || s.rt.Close == nil {
		return nil
	}
	closeFn := s.rt.Close
	s.rt.Close = nil
	return closeFn()
}

// newRoot assembles the command tree over open. The caller closes the session once
// the command has run, whether or not it succeeded.
func newRoot(open Opener) (*cobra.Command, *state) {
	st := &state{}
	var timeout time.Duration

	root := &cobra.Command{
		Use:          "ledgerctl",
		Short:        "Administer the double-entry books",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if timeout > 0 {
				ctx, st.cancel = context.WithTimeout(ctx, timeout)
				cmd.SetContext(ctx)
			}
			rt, err := open(ctx)
			if err != nil {
				return err
			}
			st.rt = rt
			return nil
		},
	}
	root.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "abort the command after this long")

	root.AddCommand(
		migrateCmd(st.runtime),
		seedCmd(st.runtime),
		verifyCmd(st.runtime),
		exportCmd(st.runtime),
		jobsCmd(st.runtime),
	)
	return root, st
}

func openFromEnv(ctx context.Context) (*Runtime, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger := app.NewLogger(cfg).With(slog.String("component", "ledgerctl"))
	books, err := app.OpenBooks(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	jobsCLI, err := NewJobsCLI(cfg.AsynqRedis())
	if err != nil {
		return nil, errors.Join(err, books.Close())
	}
	return &Runtime{
		Books: books.Service,
		Migrate: func() (db.MigrationResult, error) {
			return db.Migrate(books.Pool, migrations.Files)
		},
		Jobs: jobsCLI,
		Close: func() error {
			return errors.Join(jobsCLI.Close(), books.Close())
		},
	}, nil
}

func companyFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVar(target, "company", "", "company UUID")
}

func parseCompany(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, shared.NewValidationError("--company is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, shared.NewValidationError("--company " + raw + " is not a valid UUID")
	}
	return id, nil
}
