package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/kriya/internal/models"
)

func newConversationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversation",
		Aliases: []string{"conv"},
		Short:   "Conversation history commands",
	}

	cmd.AddCommand(newConversationShowCmd())
	cmd.AddCommand(newConversationClearCmd())
	return cmd
}

func newConversationShowCmd() *cobra.Command {
	var (
		configPath string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "show <agent-id>",
		Short: "Print an agent's conversation in write order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPath)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := context.Background()
			var entries []models.ConversationEntry
			if limit > 0 {
				entries, err = a.store.RecentConversation(ctx, args[0], limit)
			} else {
				entries, err = a.store.Conversation(ctx, args[0])
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintf(out, "No conversation for %s\n", args[0])
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(out, "[%s] %s:\n%s\n\n", e.CreatedAt.Format("2006-01-02 15:04"), e.Role, e.Content)
			}
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().IntVar(&limit, "limit", 0, "show only the most recent N entries")
	return cmd
}

func newConversationClearCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "clear <agent-id>",
		Short: "Delete an agent's conversation history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPath)
			if err != nil {
				return err
			}
			defer a.close()

			n, err := a.store.ClearConversation(context.Background(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d entries for %s\n", n, args[0])
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}
