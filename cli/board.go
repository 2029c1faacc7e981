package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/jay8860/DD-TaskDashboardClone/board"
	"github.com/jay8860/DD-TaskDashboardClone/domain"
)

func (c *CLI) newBoardCmd() *cobra.Command {
	var week string
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Show the week board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctl := c.controller()
			if err := c.setWeek(ctl, week); err != nil {
				return err
			}
			if err := ctl.Load(cmd.Context()); err != nil {
				return fmt.Errorf("load tasks: %w", err)
			}
			b := ctl.Board()
			return c.render(b, func(w io.Writer) error { return writeBoard(w, b) })
		},
	}
	cmd.Flags().StringVar(&week, "week", "", "any day of the week to show (default: today)")
	return cmd
}

func (c *CLI) setWeek(ctl *board.Controller, day string) error {
	if day == "" {
		return nil
	}
	d, ok := domain.ParseDate(day)
	if !ok {
		return fmt.Errorf("%w: %q", board.ErrInvalidDate, day)
	}
	ctl.SetWeek(d)
	return nil
}

func (c *CLI) newMoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move <task-id> <scheduled|deadline> <date>",
		Short: "Drag a task's slot to another day",
		Long: `move drags the scheduled or deadline slot of a task onto another day,
the same way as on the board. A moved deadline also updates the time given.
If the service rejects the change the board is reloaded and the command fails.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID := args[0]
			kind, err := parseSlotKind(args[1])
			if err != nil {
				return err
			}
			dest, ok := domain.ParseDate(args[2])
			if !ok {
				return fmt.Errorf("%w: %q", board.ErrInvalidDate, args[2])
			}

			ctl := board.NewController(c.client(), c.log, board.WithClock(c.now), board.WithViewMode(board.ViewBoth))
			if err := ctl.Load(cmd.Context()); err != nil {
				return fmt.Errorf("load tasks: %w", err)
			}
			from, err := slotDate(ctl.Tasks(), taskID, kind)
			if err != nil {
				return err
			}
			ctl.SetWeek(from)

			if err := ctl.DragStart(board.SlotID(taskID, kind)); err != nil {
				return err
			}
			outcome, err := ctl.Drop(cmd.Context(), board.ColumnID(dest))
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "%s: %s %s -> %s\n", outcome, taskID, kind, domain.FormatDate(dest))
			return nil
		},
	}
}

func parseSlotKind(s string) (board.SlotKind, error) {
	switch s {
	case "scheduled", "sched":
		return board.SlotScheduled, nil
	case "deadline", "dead":
		return board.SlotDeadline, nil
	}
	return "", fmt.Errorf("unknown slot kind %q", s)
}

func slotDate(tasks []domain.Task, taskID string, kind board.SlotKind) (time.Time, error) {
	for _, t := range tasks {
		if t.ID != taskID {
			continue
		}
		raw := t.DeadlineDate
		if kind == board.SlotScheduled {
			raw = t.ScheduledDate
		}
		d, ok := domain.ParseDate(raw)
		if !ok {
			return time.Time{}, fmt.Errorf("task %s has no %s date to move", taskID, kind)
		}
		return d, nil
	}
	return time.Time{}, fmt.Errorf("task %s: %w", taskID, domain.ErrTaskNotFound)
}

func (c *CLI) newScheduleCmd() *cobra.Command {
	var unset bool
	cmd := &cobra.Command{
		Use:   "schedule <task-id> [date] [HH:MM]",
		Short: "Set or clear a task's scheduled date and time",
		Args:  cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var date, clock string
			if len(args) > 1 {
				date = args[1]
			}
			if len(args) > 2 {
				clock = args[2]
			}
			if date == "" && !unset {
				return fmt.Errorf("a date is required unless --clear is set")
			}
			if unset {
				date, clock = "", ""
			}

			ctl := c.controller()
			if err := ctl.Load(cmd.Context()); err != nil {
				return fmt.Errorf("load tasks: %w", err)
			}
			outcome, err := ctl.Schedule(cmd.Context(), args[0], date, clock)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "%s: %s scheduled %s\n", outcome, args[0], dash(date))
			return nil
		},
	}
	cmd.Flags().BoolVar(&unset, "clear", false, "remove the scheduled date and time")
	return cmd
}
