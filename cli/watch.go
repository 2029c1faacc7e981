package cli

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jay8860/DD-TaskDashboardClone/board"
	"github.com/jay8860/DD-TaskDashboardClone/domain"
)

func (c *CLI) newWatchCmd() *cobra.Command {
	var (
		week     string
		noStream bool
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the week board on screen and redraw it when tasks change",
		Long: `watch reloads the task list every --interval and whenever the service
announces a change on its event stream. The board is printed again only when
it differs from the last one shown. Failed reloads are logged and retried on
the next tick.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			ctl := c.controller()
			if err := c.setWeek(ctl, week); err != nil {
				return err
			}
			if err := ctl.Load(ctx); err != nil {
				return fmt.Errorf("load tasks: %w", err)
			}
			last, err := c.redraw(ctl, nil)
			if err != nil {
				return err
			}

			kick := make(chan struct{}, 1)
			g, gctx := errgroup.WithContext(ctx)
			if !noStream {
				g.Go(func() error {
					err := c.client().Watch(gctx, func(domain.Event) {
						select {
						case kick <- struct{}{}:
						default:
						}
					}, func(err error) {
						c.log.WithError(err).Debug("event stream dropped; reconnecting")
					})
					if gctx.Err() != nil {
						return nil
					}
					return err
				})
			}
			g.Go(func() error {
				t := time.NewTicker(c.cfg.Interval)
				defer t.Stop()
				for {
					select {
					case <-gctx.Done():
						return nil
					case <-t.C:
					case <-kick:
					}
					if err := ctl.Refresh(gctx); err != nil {
						if gctx.Err() != nil {
							return nil
						}
						c.log.WithError(err).Warn("refresh failed")
						continue
					}
					if last, err = c.redraw(ctl, last); err != nil {
						return err
					}
				}
			})
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&week, "week", "", "any day of the week to show (default: today)")
	cmd.Flags().BoolVar(&noStream, "no-stream", false, "poll only, without the event stream")
	return cmd
}

// redraw prints the board when it differs from last and returns its
// fingerprint.
func (c *CLI) redraw(ctl *board.Controller, last []byte) ([]byte, error) {
	b := ctl.Board()
	fp, err := sonic.Marshal(b)
	if err != nil {
		return last, err
	}
	if last != nil && bytes.Equal(fp, last) {
		return last, nil
	}
	if c.cfg.Output == OutputTable {
		fmt.Fprintf(c.out, "week of %s (%s)\n", domain.FormatDate(ctl.Week()), ctl.ViewMode())
	}
	return fp, c.render(b, func(w io.Writer) error { return writeBoard(w, b) })
}
