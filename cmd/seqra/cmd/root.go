// Package cmd implements the seqra command line interface: running,
// resuming, inspecting, and clearing checkpointed workflows defined in
// YAML files.
package cmd

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/seqra/seqra"
	"github.com/seqra/seqra/engine"
	"github.com/seqra/seqra/id"
	"github.com/seqra/seqra/observability"
	"github.com/seqra/seqra/resume"
)

// NewRootCmd builds the seqra command tree.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seqra",
		Short: "Run sequential workflows with encrypted, resumable checkpoints.",
		Long: `
Seqra executes YAML-defined task sequences with tamper-evident encrypted
checkpoints, so an interrupted or reboot-spanning workflow continues from
where it stopped instead of starting over.
`,
		Example: `
	# Run a workflow definition
	seqra run rollout.yaml

	# Continue after an interruption or reboot
	seqra resume rollout.yaml

	# Inspect persisted state
	seqra status wf_01h2xcejqtf2nbrexx3vqjhp41

	# Discard persisted state
	seqra clear wf_01h2xcejqtf2nbrexx3vqjhp41
`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("state-dir", "", "directory holding checkpoints and the instance key")
	cmd.PersistentFlags().Duration("cancel-grace", 0, "grace period before a cancelled task is force-killed")
	cmd.PersistentFlags().Bool("verbose", false, "enable debug logging")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newResumeCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newClearCmd())

	return cmd
}

// loadConfig merges defaults, an optional seqra.yaml, SEQRA_*
// environment variables, and command line flags, in ascending
// precedence.
func loadConfig(cmd *cobra.Command) (seqra.Config, error) {
	v := viper.New()
	v.SetConfigName("seqra")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if dir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(dir, "seqra"))
	}
	v.SetEnvPrefix("SEQRA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return seqra.Config{}, err
		}
	}

	if err := v.BindPFlag("state-dir", cmd.Flags().Lookup("state-dir")); err != nil {
		return seqra.Config{}, err
	}
	if err := v.BindPFlag("cancel-grace", cmd.Flags().Lookup("cancel-grace")); err != nil {
		return seqra.Config{}, err
	}

	var opts []seqra.Option
	if dir := v.GetString("state-dir"); dir != "" {
		opts = append(opts, seqra.WithStateDir(dir))
	}
	if grace := v.GetDuration("cancel-grace"); grace > 0 {
		opts = append(opts, seqra.WithCancelGrace(grace))
	}
	return seqra.NewConfig(opts...)
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// buildEngine assembles an engine from the resolved configuration. The
// login hook re-launches "seqra resume <definition>" at the next login
// for workflows parked across a reboot.
func buildEngine(cmd *cobra.Command, definitionPath string) (*engine.Engine, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cmd)

	// The hook always uses the login-entry backend so that clear and
	// status can remove entries left by earlier runs; the resume
	// command is only rendered when a definition path is known.
	var command resume.CommandFunc
	if definitionPath != "" {
		abs, err := filepath.Abs(definitionPath)
		if err != nil {
			return nil, err
		}
		exe, err := os.Executable()
		if err != nil {
			exe = "seqra"
		}
		command = func(_ id.WorkflowID, _ string) string {
			return exe + " resume " + abs
		}
	}
	hook, err := resume.NewLoginHook(afero.NewOsFs(), "", command)
	if err != nil {
		return nil, err
	}

	return engine.New(cfg,
		engine.WithLogger(logger),
		engine.WithResumeHook(hook),
		engine.WithExtension(observability.NewAuditExtension(logger)),
	)
}

const waitTimeout = 24 * time.Hour
