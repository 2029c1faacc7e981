package cli

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jay8860/DD-TaskDashboardClone/api"
)

func (c *CLI) newListCmd() *cobra.Command {
	var (
		agencies []string
		statuses []string
		search   string
		sortBy   string
		dir      string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks with their due status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := url.Values{}
			if len(agencies) > 0 {
				q.Set("agency", strings.Join(agencies, ","))
			}
			if len(statuses) > 0 {
				q.Set("status", strings.Join(statuses, ","))
			}
			if search != "" {
				q.Set("search", search)
			}
			if sortBy != "" {
				q.Set("sort", sortBy)
			}
			if dir != "" {
				q.Set("dir", dir)
			}
			views, err := c.client().ListTasks(cmd.Context(), q)
			if err != nil {
				return err
			}
			return c.render(views, func(w io.Writer) error { return writeTaskTable(w, views) })
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&agencies, "agency", nil, "only tasks of these agencies")
	f.StringSliceVar(&statuses, "status", nil, "only tasks with these statuses")
	f.StringVar(&search, "search", "", "text to look for in task number or description")
	f.StringVar(&sortBy, "sort", "", "due_in, deadline_date or task_number")
	f.StringVar(&dir, "dir", "", "asc or desc")
	return cmd
}

func (c *CLI) newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show task counts per agency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := c.client().Stats(cmd.Context())
			if err != nil {
				return err
			}
			return c.render(s, func(w io.Writer) error { return writeStats(w, s) })
		},
	}
}

func (c *CLI) newRescheduleCmd() *cobra.Command {
	var extend, fromToday int
	cmd := &cobra.Command{
		Use:   "reschedule <task-id>...",
		Short: "Move the deadlines of several tasks at once",
		Long: `reschedule either extends each deadline by --extend days or sets it
--from-today days after today. The time given follows the new deadline.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.RescheduleRequest{IDs: args}
			extendSet, fromSet := cmd.Flags().Changed("extend"), cmd.Flags().Changed("from-today")
			switch {
			case extendSet == fromSet:
				return errors.New("exactly one of --extend or --from-today is required")
			case extendSet:
				req.ExtendDays = &extend
			default:
				req.DaysFromToday = &fromToday
			}
			n, err := c.client().Reschedule(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "rescheduled %d of %d tasks\n", n, len(args))
			return nil
		},
	}
	cmd.Flags().IntVar(&extend, "extend", 0, "days to add to each deadline")
	cmd.Flags().IntVar(&fromToday, "from-today", 0, "days from today for the new deadline")
	return cmd
}
