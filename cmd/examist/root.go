package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"examist/internal/blob"
	"examist/internal/catalog"
	"examist/internal/catalog/backend"
	"examist/internal/config"
	"examist/internal/core"
	"examist/internal/model"
)

var errNoCredentials = errors.New("no credentials: set auth.key or auth.email and auth.password")

// cli carries what a command needs once the root pre-run has opened the
// configured backends.
type cli struct {
	stdout io.Writer
	stderr io.Writer

	configPath  string
	output      string
	dumpMetrics bool

	cfg     config.Config
	logger  *slog.Logger
	docs    blob.Store
	backend *backend.Backend
	metrics *metricsSink
	app     *model.App
}

// run executes the command line in args and releases whatever setup opened.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	c := &cli{stdout: stdout, stderr: stderr}
	root := c.rootCmd()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if cerr := c.close(); err == nil {
		err = cerr
	}
	return err
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "examist",
		Short:         "Browse the exam paper archive",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd.Context())
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if !c.dumpMetrics {
				return nil
			}
			return c.metrics.dump(c.stderr)
		},
	}
	root.SetOut(c.stdout)
	root.SetErr(c.stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "YAML config file; EXAMIST_* variables override it")
	flags.StringVarP(&c.output, "output", "o", "text", "output format: text or json")
	flags.BoolVar(&c.dumpMetrics, "metrics", false, "print store metrics to stderr when the command ends")

	root.AddCommand(
		c.loginCmd(),
		c.coursesCmd(),
		c.courseCmd(),
		c.searchCmd(),
		c.paperCmd(),
		c.commentsCmd(),
		c.commentCmd(),
		c.deleteCommentCmd(),
		c.serveCmd(),
	)
	return root
}

func (c *cli) setup(ctx context.Context) error {
	if c.output != "text" && c.output != "json" {
		return fmt.Errorf("unknown output format %q", c.output)
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.logger = newLogger(c.stderr, cfg.Log)

	if c.docs, err = blob.Open(ctx, cfg.Blob); err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}
	docs := catalog.Documents{Store: c.docs, Expiry: cfg.Blob.PresignExpiry}
	if c.backend, err = backend.Open(ctx, cfg.Catalog, docs); err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	if c.metrics, err = newMetricsSink(cfg.Store.Metrics); err != nil {
		return err
	}
	c.app, err = model.NewApp(
		model.WithAuthenticator(c.backend),
		model.WithLogger(c.logger),
		model.WithMemoSize(cfg.Store.MemoSize),
		model.WithStoreOptions(c.metrics.storeOptions()...),
	)
	return err
}

func (c *cli) close() error {
	if c.app != nil {
		c.app.Store.Wait()
	}
	if c.backend == nil {
		return nil
	}
	return c.backend.Close()
}

// signIn resumes the configured key, or logs in with the configured email.
func (c *cli) signIn(ctx context.Context) error {
	auth := c.cfg.Auth
	var inv *core.Invocation
	switch {
	case auth.Key != "":
		inv = c.app.Resume(ctx, auth.Key)
	case auth.Email != "":
		inv = c.app.Login(ctx, auth.Email, auth.Password)
	default:
		return errNoCredentials
	}
	_, err := inv.Wait(ctx)
	return err
}

func newLogger(w io.Writer, cfg config.Log) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
