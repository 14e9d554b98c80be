package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/kriya/internal/bus"
	"github.com/zulandar/kriya/internal/logging"
)

func newMessageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "message",
		Short: "Messaging commands",
		Long:  "Send messages and broadcasts between agents and review bus activity.",
	}

	cmd.AddCommand(newMessageSendCmd())
	cmd.AddCommand(newMessageActivityCmd())
	cmd.AddCommand(newInboxCmd())
	return cmd
}

func newMessageSendCmd() *cobra.Command {
	var (
		configPath string
		from       string
		to         string
		content    string
		msgType    string
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a message to an agent, or to all",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPath)
			if err != nil {
				return err
			}
			defer a.close()

			msg, err := a.bus.Send(context.Background(), from, to, content, msgType)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sent message %s from %s to %s\n", msg.ID, msg.From, msg.To)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&from, "from", "", "sender agent ID (required)")
	cmd.Flags().StringVar(&to, "to", "", `recipient agent ID, or "all" (required)`)
	cmd.Flags().StringVar(&content, "content", "", "message content (required)")
	cmd.Flags().StringVar(&msgType, "type", "message", "message type (message, request, response, broadcast)")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")
	cmd.MarkFlagRequired("content")
	return cmd
}

func newMessageActivityCmd() *cobra.Command {
	var (
		configPath string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Show recent messages across all agents",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPath)
			if err != nil {
				return err
			}
			defer a.close()

			msgs, err := a.bus.Activity(context.Background(), limit)
			if err != nil {
				return err
			}
			printMessages(cmd, msgs, "No activity")
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum messages to show")
	return cmd
}

func newInboxCmd() *cobra.Command {
	var (
		configPath string
		agent      string
		unread     bool
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "View an agent's inbox",
		Long: `Lists messages addressed to an agent or broadcast to all, newest first.
With --unread, lists only unread messages oldest first and marks them read.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPath)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := context.Background()
			var msgs []bus.Message
			if unread {
				msgs, err = a.bus.GetUnreadFor(ctx, agent)
			} else {
				msgs, err = a.bus.MessagesFor(ctx, agent, limit)
			}
			if err != nil {
				return err
			}
			printMessages(cmd, msgs, fmt.Sprintf("No messages for %s", agent))
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&agent, "agent", "", "agent ID to check inbox (required)")
	cmd.Flags().BoolVar(&unread, "unread", false, "show only unread messages and mark them read")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum messages to show")
	cmd.MarkFlagRequired("agent")
	return cmd
}

func printMessages(cmd *cobra.Command, msgs []bus.Message, empty string) {
	out := cmd.OutOrStdout()
	if len(msgs) == 0 {
		fmt.Fprintln(out, empty)
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFROM\tTO\tTYPE\tREAD\tCREATED\tCONTENT")
	for _, m := range msgs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\t%s\n",
			m.ID, m.From, m.To, m.Type, m.Read,
			m.CreatedAt.Format("2006-01-02 15:04"), logging.Preview(m.Content, 60))
	}
	w.Flush()
}
