package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/kriya/internal/bus"
	"github.com/zulandar/kriya/internal/logging"
	"github.com/zulandar/kriya/internal/models"
)

func newHandoffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "handoff",
		Short: "Handoff commands",
		Long:  "Create, list, and move handoffs through pending, accepted, completed, and rejected.",
	}

	cmd.AddCommand(newHandoffCreateCmd())
	cmd.AddCommand(newHandoffListCmd())
	cmd.AddCommand(newHandoffShowCmd())
	cmd.AddCommand(newHandoffUpdateCmd())
	return cmd
}

// parseContext turns key=value pairs into a handoff context map.
func parseContext(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --context %q: want key=value", p)
		}
		out[k] = v
	}
	return out, nil
}

func newHandoffCreateCmd() *cobra.Command {
	var (
		configPath string
		from       string
		to         string
		task       string
		ctxPairs   []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Hand a task from one agent to another",
		RunE: func(cmd *cobra.Command, args []string) error {
			hctx, err := parseContext(ctxPairs)
			if err != nil {
				return err
			}
			a, err := newApp(configPath)
			if err != nil {
				return err
			}
			defer a.close()

			h, err := a.bus.CreateHandoff(context.Background(), from, to, task, hctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created handoff %s: %s -> %s (%s)\n", h.ID, h.From, h.To, h.Status)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&from, "from", "", "source agent ID (required)")
	cmd.Flags().StringVar(&to, "to", "", "target agent ID (required)")
	cmd.Flags().StringVar(&task, "task", "", "task description (required)")
	cmd.Flags().StringArrayVar(&ctxPairs, "context", nil, "context entry as key=value (repeatable)")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")
	cmd.MarkFlagRequired("task")
	return cmd
}

func newHandoffListCmd() *cobra.Command {
	var (
		configPath string
		all        bool
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pending handoffs",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPath)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := context.Background()
			var hs []bus.Handoff
			if all {
				hs, err = a.bus.Handoffs(ctx, limit)
			} else {
				hs, err = a.bus.PendingHandoffs(ctx)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(hs) == 0 {
				fmt.Fprintln(out, "No handoffs")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tFROM\tTO\tSTATUS\tCREATED\tTASK")
			for _, h := range hs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					h.ID, h.From, h.To, h.Status,
					h.CreatedAt.Format("2006-01-02 15:04"), logging.Preview(h.Task, 60))
			}
			w.Flush()
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().BoolVar(&all, "all", false, "include handoffs in every status")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum handoffs with --all")
	return cmd
}

func newHandoffShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <handoff-id>",
		Short: "Show one handoff",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPath)
			if err != nil {
				return err
			}
			defer a.close()

			h, err := a.bus.GetHandoff(context.Background(), args[0])
			if err != nil {
				return err
			}
			printHandoff(cmd, h)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newHandoffUpdateCmd() *cobra.Command {
	var (
		configPath string
		status     string
		result     string
	)

	cmd := &cobra.Command{
		Use:   "update <handoff-id>",
		Short: "Move a handoff to a new status",
		Long:  "Moves a handoff along its lifecycle. Illegal transitions are rejected and leave the handoff unchanged.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPath)
			if err != nil {
				return err
			}
			defer a.close()

			var res *string
			if cmd.Flags().Changed("result") {
				res = &result
			}
			h, err := a.bus.UpdateHandoff(context.Background(), args[0], models.HandoffStatus(status), res)
			if err != nil {
				return err
			}
			printHandoff(cmd, h)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&status, "status", "", "new status: accepted, completed, or rejected (required)")
	cmd.Flags().StringVar(&result, "result", "", "result text to record")
	cmd.MarkFlagRequired("status")
	return cmd
}

func printHandoff(cmd *cobra.Command, h bus.Handoff) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Handoff: %s\n", h.ID)
	fmt.Fprintf(out, "From:    %s\n", h.From)
	fmt.Fprintf(out, "To:      %s\n", h.To)
	fmt.Fprintf(out, "Status:  %s\n", h.Status)
	fmt.Fprintf(out, "Created: %s\n", h.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Task:    %s\n", h.Task)
	for k, v := range h.Context {
		fmt.Fprintf(out, "Context: %s=%v\n", k, v)
	}
	if h.Result != nil {
		fmt.Fprintf(out, "Result:  %s\n", *h.Result)
	}
}
