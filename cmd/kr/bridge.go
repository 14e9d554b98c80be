package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"github.com/zulandar/kriya/internal/bridge"
	"github.com/zulandar/kriya/internal/config"
	"github.com/zulandar/kriya/internal/logging"
	"github.com/zulandar/kriya/internal/server"
)

// bridgeClient talks to a running server's bridge endpoints as the external
// participant.
type bridgeClient struct {
	base   string
	secret string
	http   *http.Client
}

type bridgeFlags struct {
	configPath string
	url        string
	secret     string
}

func (f *bridgeFlags) register(cmd *cobra.Command) {
	addConfigFlag(cmd, &f.configPath)
	cmd.Flags().StringVar(&f.url, "url", "", "server base URL (default http://localhost:<server.port>)")
	cmd.Flags().StringVar(&f.secret, "secret", "", "bridge shared secret (default bridge.secret or $KRIYA_BRIDGE_SECRET)")
}

// client resolves the URL and secret from flags, the environment, and, for
// whatever is still missing, the config file.
func (f *bridgeFlags) client() (*bridgeClient, error) {
	url, secret := f.url, f.secret
	if secret == "" {
		secret = os.Getenv("KRIYA_BRIDGE_SECRET")
	}
	if url == "" || secret == "" {
		cfg, err := config.Load(f.configPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		if url == "" {
			url = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
		}
		if secret == "" {
			secret = cfg.Bridge.Secret
		}
	}
	return &bridgeClient{
		base:   strings.TrimRight(url, "/"),
		secret: secret,
		http:   &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (c *bridgeClient) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("bridge client: encode: %w", err)
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+"/api/bridge"+path, rd)
	if err != nil {
		return fmt.Errorf("bridge client: %w", err)
	}
	req.Header.Set(server.BridgeSecretHeader, c.secret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("bridge client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("bridge client: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(raw, "error").String()
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return fmt.Errorf("bridge client: %s %s: %s: %s", method, path, resp.Status, msg)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("bridge client: decode: %w", err)
	}
	return nil
}

func (c *bridgeClient) pending(ctx context.Context) ([]bridge.Item, error) {
	var items []bridge.Item
	err := c.do(ctx, http.MethodGet, "/pending", nil, &items)
	return items, err
}

func (c *bridgeClient) get(ctx context.Context, id string) (bridge.Item, error) {
	var item bridge.Item
	err := c.do(ctx, http.MethodGet, "/"+id, nil, &item)
	return item, err
}

func (c *bridgeClient) claim(ctx context.Context, id string) (bridge.Item, error) {
	var item bridge.Item
	err := c.do(ctx, http.MethodPost, "/"+id+"/claim", nil, &item)
	return item, err
}

func (c *bridgeClient) respond(ctx context.Context, id, response string) (bridge.Item, error) {
	var out struct {
		Item bridge.Item `json:"item"`
	}
	err := c.do(ctx, http.MethodPost, "/"+id+"/respond", map[string]string{"response": response}, &out)
	return out.Item, err
}

func newBridgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bridge",
		Short: "Bridge participant commands",
		Long: `Poll and answer the bridge queue of a running Kriya server. These commands
speak HTTP and authenticate with the bridge shared secret.`,
	}

	cmd.AddCommand(newBridgePendingCmd())
	cmd.AddCommand(newBridgeGetCmd())
	cmd.AddCommand(newBridgeClaimCmd())
	cmd.AddCommand(newBridgeRespondCmd())
	return cmd
}

func newBridgePendingCmd() *cobra.Command {
	var flags bridgeFlags

	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List pending bridge items",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.client()
			if err != nil {
				return err
			}
			items, err := c.pending(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "No pending items")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tAGENT\tCREATED\tCONTENT")
			for _, it := range items {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					it.ID, it.AgentID, it.CreatedAt.Format("2006-01-02 15:04"), logging.Preview(it.Content, 60))
			}
			w.Flush()
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

func newBridgeGetCmd() *cobra.Command {
	var flags bridgeFlags

	cmd := &cobra.Command{
		Use:   "get <item-id>",
		Short: "Show one bridge item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.client()
			if err != nil {
				return err
			}
			item, err := c.get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printBridgeItem(cmd, item)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

func newBridgeClaimCmd() *cobra.Command {
	var flags bridgeFlags

	cmd := &cobra.Command{
		Use:   "claim <item-id>",
		Short: "Mark a pending item as being processed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.client()
			if err != nil {
				return err
			}
			item, err := c.claim(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Claimed %s (%s)\n", item.ID, item.Status)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

func newBridgeRespondCmd() *cobra.Command {
	var (
		flags    bridgeFlags
		response string
	)

	cmd := &cobra.Command{
		Use:   "respond <item-id>",
		Short: "Submit the response for an item",
		Long:  `Completes an item with --response, or with stdin when --response is "-".`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if response == "-" {
				raw, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				response = string(raw)
			}
			c, err := flags.client()
			if err != nil {
				return err
			}
			item, err := c.respond(cmd.Context(), args[0], response)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Completed %s\n", item.ID)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&response, "response", "", `response text, or "-" for stdin (required)`)
	cmd.MarkFlagRequired("response")
	return cmd
}

func printBridgeItem(cmd *cobra.Command, it bridge.Item) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Item:    %s\n", it.ID)
	fmt.Fprintf(out, "Agent:   %s\n", it.AgentID)
	fmt.Fprintf(out, "Status:  %s\n", it.Status)
	fmt.Fprintf(out, "Created: %s\n", it.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Content: %s\n", it.Content)
	if it.Response != nil {
		fmt.Fprintf(out, "Response: %s\n", *it.Response)
	}
}
