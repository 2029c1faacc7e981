// Package cli implements the planner command, a terminal client for the task
// board. It hosts the board controller against a remote task service.
package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jay8860/DD-TaskDashboardClone/board"
	"github.com/jay8860/DD-TaskDashboardClone/client"
)

// Exit codes.
const (
	ExitSuccess    = 0
	ExitError      = 1
	ExitRolledBack = 2
)

// CLI holds the command tree and the state shared by its commands.
type CLI struct {
	root *cobra.Command
	v    *viper.Viper
	cfg  Config

	configPath string
	debug      bool

	out    io.Writer
	errOut io.Writer
	log    *log.Logger
	now    func() time.Time
}

// Option configures a CLI.
type Option func(*CLI)

// WithOutput redirects command output and diagnostics.
func WithOutput(out, errOut io.Writer) Option {
	return func(c *CLI) {
		c.out = out
		c.errOut = errOut
	}
}

// WithClock overrides the source of the current time.
func WithClock(now func() time.Time) Option {
	return func(c *CLI) { c.now = now }
}

// New builds the planner command tree.
func New(opts ...Option) *CLI {
	c := &CLI{
		v:      viper.New(),
		out:    os.Stdout,
		errOut: os.Stderr,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = log.New()
	c.log.SetOutput(c.errOut)
	c.log.SetFormatter(&log.TextFormatter{DisableTimestamp: true})
	c.root = c.newRootCmd()
	return c
}

// Execute runs the command line args and returns the process exit code.
func (c *CLI) Execute(ctx context.Context, args []string) int {
	c.root.SetArgs(args)
	c.root.SetOut(c.out)
	c.root.SetErr(c.errOut)
	err := c.root.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}
	c.log.Error(err)
	var upd *board.UpdateError
	if errors.As(err, &upd) {
		return ExitRolledBack
	}
	return ExitError
}

func (c *CLI) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "planner",
		Short: "Weekly task board client",
		Long: `planner shows tasks on a weekly board and moves their scheduled or
deadline dates. Moving a deadline keeps the time given in step with it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if c.debug {
				c.log.SetLevel(log.DebugLevel)
			}
			cfg, err := loadConfig(c.v, c.configPath)
			if err != nil {
				return err
			}
			c.cfg = cfg
			c.log.WithField("endpoint", cfg.Endpoint).Debug("config loaded")
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&c.configPath, "config", "", "config file (default: ~/.config/planner/config.yaml)")
	pf.String("endpoint", "", "task service base URL")
	pf.String("token", "", "bearer token")
	pf.String("view", "", "board view: scheduled, deadline or both")
	pf.StringP("output", "o", "", "output format: table, json or yaml")
	pf.Duration("interval", 0, "refresh interval for watch")
	pf.BoolVar(&c.debug, "debug", false, "verbose logs")
	for _, key := range []string{"endpoint", "token", "view", "output", "interval"} {
		_ = c.v.BindPFlag(key, pf.Lookup(key))
	}

	cmd.AddCommand(
		c.newBoardCmd(),
		c.newListCmd(),
		c.newStatsCmd(),
		c.newMoveCmd(),
		c.newScheduleCmd(),
		c.newRescheduleCmd(),
		c.newWatchCmd(),
		c.newConfigCmd(),
	)
	return cmd
}

func (c *CLI) client() *client.Client {
	return client.New(c.cfg.Endpoint, c.cfg.Token)
}

func (c *CLI) controller() *board.Controller {
	return board.NewController(c.client(), c.log,
		board.WithClock(c.now),
		board.WithViewMode(c.cfg.viewMode()))
}
