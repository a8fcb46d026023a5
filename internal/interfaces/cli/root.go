// Package cli implements returnctl, the operator command line for the
// maintenance sweeps and counter repair.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/returnflow/backend/internal/bootstrap"
	"github.com/returnflow/backend/internal/infrastructure/auth"
	"github.com/returnflow/backend/internal/infrastructure/config"
	"github.com/returnflow/backend/internal/infrastructure/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootOptions holds global flags for all commands
type RootOptions struct {
	ConfigPath string
	Secret     string
	Verbose    bool

	// LoadConfig reads configuration. Tests replace it.
	LoadConfig func(path string) (*config.Config, error)
}

// NewRootCommand creates the returnctl root command
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{LoadConfig: loadConfig}
	return newRootCommand(opts)
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "returnctl",
		Short: "Maintenance tool for the return engine",
		Long: `returnctl runs the administrative operations of the return engine
directly against the configured document store: orphan sweeps, repair of
missing records and counter rollback.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default: ./config.toml)")
	cmd.PersistentFlags().StringVar(&opts.Secret, "secret", "", "admin confirmation secret")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log at debug level")

	cmd.AddCommand(newSweepOrphansCommand(opts))
	cmd.AddCommand(newRepairMissingCommand(opts))
	cmd.AddCommand(newCounterCommand(opts))
	cmd.AddCommand(newRollbackCounterCommand(opts))
	cmd.AddCommand(newHashSecretCommand())

	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFile(path)
}

func (o *RootOptions) logger() *zap.Logger {
	level := "warn"
	if o.Verbose {
		level = "debug"
	}
	log, err := logger.New(logger.Config{Level: level, Format: "console", Output: "stderr"})
	if err != nil {
		return zap.NewNop()
	}
	return log
}

// withEngine checks the admin secret when needSecret is set, then builds the
// engine and prints what fn returns as JSON
func (o *RootOptions) withEngine(cmd *cobra.Command, needSecret bool, fn func(context.Context, *bootstrap.Engine) (any, error)) error {
	cfg, err := o.LoadConfig(o.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if needSecret {
		verifier, err := auth.NewSecretVerifier(cfg.Admin)
		if err != nil && !errors.Is(err, auth.ErrNoSecretConfigured) {
			return fmt.Errorf("admin secret: %w", err)
		}
		if err := verifier.Verify(o.Secret); err != nil {
			return err
		}
	}

	log := o.logger()
	defer func() { _ = log.Sync() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logger.WithContext(ctx, log)

	eng, err := bootstrap.Build(ctx, cfg, nil, log)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := eng.Close(context.WithoutCancel(ctx)); cerr != nil {
			log.Warn("close engine", zap.Error(cerr))
		}
	}()

	out, err := fn(ctx, eng)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), out)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
