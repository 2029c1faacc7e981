package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/bytedance/sonic"
	"gopkg.in/yaml.v3"

	"github.com/jay8860/DD-TaskDashboardClone/api"
	"github.com/jay8860/DD-TaskDashboardClone/board"
	"github.com/jay8860/DD-TaskDashboardClone/domain"
	"github.com/jay8860/DD-TaskDashboardClone/due"
)

// render writes v in the configured format, calling table for the table form.
func (c *CLI) render(v any, table func(w io.Writer) error) error {
	switch c.cfg.Output {
	case OutputJSON:
		data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(c.out, "%s\n", data)
		return err
	case OutputYAML:
		data, err := toYAML(v)
		if err != nil {
			return err
		}
		_, err = c.out.Write(data)
		return err
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	if err := table(tw); err != nil {
		return err
	}
	return tw.Flush()
}

// toYAML goes through JSON so field names follow the json tags and key order
// is kept.
func toYAML(v any) ([]byte, error) {
	data, err := sonic.ConfigStd.Marshal(v)
	if err != nil {
		return nil, err
	}
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	blockStyle(&node)
	return yaml.Marshal(&node)
}

func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, child := range n.Content {
		blockStyle(child)
	}
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func writeTaskTable(w io.Writer, views []api.TaskView) error {
	fmt.Fprintln(w, "NUMBER\tAGENCY\tSTATUS\tDEADLINE\tDUE\tID")
	for _, v := range views {
		label := v.DueLabel
		if v.NearDue {
			label += " !"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			dash(v.TaskNumber), dash(v.AssignedAgency), v.DisplayStatus, dash(v.DeadlineDate), label, v.ID)
	}
	return nil
}

func writeBoard(w io.Writer, b board.Board) error {
	for _, col := range b.Columns {
		fmt.Fprintf(w, "%s %s\t\t\n", col.Date.Format("Mon"), domain.FormatDate(col.Date))
		if len(col.Items) == 0 {
			fmt.Fprintln(w, "  -\t\t")
			continue
		}
		for _, it := range col.Items {
			fmt.Fprintf(w, "  [%s]\t%s\t%s\n", it.Kind, cardTitle(it.Task), it.ID)
		}
	}
	return nil
}

func cardTitle(t domain.Task) string {
	title := dash(t.TaskNumber)
	if t.AssignedAgency != "" {
		title += " " + t.AssignedAgency
	}
	if t.ScheduledTime != "" {
		title += " @" + t.ScheduledTime
	}
	return title
}

func writeStats(w io.Writer, s due.Stats) error {
	fmt.Fprintln(w, "AGENCY\tTOTAL\tCOMPLETED\tPENDING\tOVERDUE\tNEAR DUE")
	row := func(name string, c due.Counts) {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\n", name, c.Total, c.Completed, c.Pending, c.Overdue, c.NearDue)
	}
	agencies := make([]string, 0, len(s.ByAgency))
	for a := range s.ByAgency {
		agencies = append(agencies, a)
	}
	sort.Strings(agencies)
	for _, a := range agencies {
		row(a, s.ByAgency[a])
	}
	row("ALL", s.Counts)
	return nil
}
