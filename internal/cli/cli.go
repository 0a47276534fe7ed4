// Package cli implements the realestate command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"realestate/internal/config"
	"realestate/internal/dispatch"
	"realestate/internal/logging"
	"realestate/internal/normalize"
	"realestate/internal/providers/portal"
	"realestate/internal/region"
	"realestate/internal/service"
	"realestate/internal/store/sqlite"
	"realestate/internal/tools"
)

type Options struct {
	Output    io.Writer
	ErrOutput io.Writer
	// EnvFiles override the default .env lookup.
	EnvFiles []string
	Now      func() time.Time
}

type CLI struct {
	opts       Options
	configPath string
	rootCmd    *cobra.Command
}

func New(opts Options) *CLI {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.ErrOutput == nil {
		opts.ErrOutput = os.Stderr
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	c := &CLI{opts: opts}
	c.rootCmd = c.newRootCmd()
	return c
}

func (c *CLI) Execute(ctx context.Context) error {
	return c.rootCmd.ExecuteContext(ctx)
}

// SetArgs replaces os.Args[1:], for tests.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

func (c *CLI) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "realestate",
		Short:         "Korean real-estate open data and financial calculators",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(c.opts.Output)
	cmd.SetErr(c.opts.ErrOutput)
	cmd.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "path to a YAML config file (default ./realestate.yaml when present)")

	cmd.AddCommand(c.newServeCmd())
	cmd.AddCommand(c.newQueryCmd())
	cmd.AddCommand(c.newExportCmd())
	cmd.AddCommand(c.newRegionCmd())
	cmd.AddCommand(c.newToolsCmd())
	cmd.AddCommand(c.newLoanCmd())
	cmd.AddCommand(c.newGrowthCmd())
	cmd.AddCommand(c.newCashflowCmd())
	return cmd
}

// app is the wired engine behind every command.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	index    *sqlite.Store
	registry *tools.Registry
}

func (c *CLI) buildApp() (*app, error) {
	cfg, err := config.Load(c.configPath, c.opts.EnvFiles...)
	if err != nil {
		return nil, err
	}

	logOpts := cfg.LogOptions()
	logOpts.Out = c.opts.ErrOutput
	logger, err := logging.New(logOpts)
	if err != nil {
		return nil, err
	}

	index, err := sqlite.New(cfg.Region.IndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open region index: %w", err)
	}

	client := portal.NewWithConfig(cfg.PortalConfig())
	resolver := region.New(client, index)
	dispatcher := dispatch.New(resolver, cfg.DispatchConfig())
	engine := service.New(dispatcher, resolver, client, normalize.New(), cfg.ServiceConfig())

	return &app{
		cfg:      cfg,
		logger:   logger,
		index:    index,
		registry: tools.NewRegistry(engine),
	}, nil
}

func (a *app) Close() error {
	return a.index.Close()
}

// withApp builds the app for one command run and closes it afterwards.
func (c *CLI) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	a, err := c.buildApp()
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a.logger.WithContext(cmd.Context()), a)
}
