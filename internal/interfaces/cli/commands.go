package cli

import (
	"context"
	"fmt"

	"github.com/returnflow/backend/internal/bootstrap"
	"github.com/returnflow/backend/internal/domain/sequence"
	"github.com/returnflow/backend/internal/infrastructure/auth"
	"github.com/spf13/cobra"
)

// CounterView is the printed form of a sequence counter
type CounterView struct {
	Family     string `json:"family"`
	Exists     bool   `json:"exists"`
	Year       int    `json:"year,omitempty"`
	Month      *int   `json:"month,omitempty"`
	LastNumber int    `json:"lastNumber"`
	LastIssued string `json:"lastIssued,omitempty"`
}

func newSweepOrphansCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep-orphans",
		Short: "Delete return records whose problem report is gone or canceled",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withEngine(cmd, true, func(ctx context.Context, eng *bootstrap.Engine) (any, error) {
				return eng.Reconcile.PurgeOrphans(ctx), nil
			})
		},
	}
}

func newRepairMissingCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "repair-missing",
		Short: "Recreate return records for reports that have none",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withEngine(cmd, true, func(ctx context.Context, eng *bootstrap.Engine) (any, error) {
				return eng.Reconcile.RepairMissing(ctx), nil
			})
		},
	}
}

func newCounterCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "counter <family>",
		Short: "Show a sequence counter (ncr, return, collection)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			family, err := sequence.ParseFamily(args[0])
			if err != nil {
				return err
			}
			return opts.withEngine(cmd, false, func(ctx context.Context, eng *bootstrap.Engine) (any, error) {
				return peekCounter(ctx, eng, family)
			})
		},
	}
}

func newRollbackCounterCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rollback-counter <family>",
		Short: "Give back the last number issued for a family",
		Long: `Decrements the counter of a family by one within its current period.
Use it when a number was allocated but the document was never written.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			family, err := sequence.ParseFamily(args[0])
			if err != nil {
				return err
			}
			return opts.withEngine(cmd, true, func(ctx context.Context, eng *bootstrap.Engine) (any, error) {
				eng.Allocator.Rollback(ctx, family)
				return peekCounter(ctx, eng, family)
			})
		},
	}
}

func newHashSecretCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-secret <secret>",
		Short: "Print the bcrypt hash to use as admin.secret_hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashSecret(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return err
		},
	}
}

func peekCounter(ctx context.Context, eng *bootstrap.Engine, family sequence.Family) (CounterView, error) {
	counter, exists, err := eng.Allocator.Peek(ctx, family)
	if err != nil {
		return CounterView{}, err
	}
	view := CounterView{Family: family.Key, Exists: exists}
	if exists {
		view.Year = counter.Year
		view.Month = counter.Month
		view.LastNumber = counter.LastNumber
		if counter.LastNumber > 0 {
			view.LastIssued = family.Format(counter)
		}
	}
	return view, nil
}
