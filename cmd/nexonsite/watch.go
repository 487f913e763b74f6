package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nexonsite/internal/adapters/site"
)

var (
	watchServer string
	watchToken  string
)

var watchCmd = &cobra.Command{
	Use:   "watch <collection | collection/id>",
	Short: "Stream live snapshots from a running server as JSON lines",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runWatch(ctx, cmd.OutOrStdout(), watchServer, args[0])
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchServer, "server", "http://localhost:8080", "Base URL of the nexonsite server")
	watchCmd.Flags().StringVar(&watchToken, "token", "", "Admin bearer token for non-public collections")
}

// watchURL turns the server base URL and target into the websocket address.
func watchURL(server, target string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("server url: unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/api/v1/watch"
	q := url.Values{}
	if strings.Contains(target, "/") {
		q.Set("doc", target)
	} else {
		q.Set("collection", target)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// runWatch prints every frame until the server ends the stream or ctx is done.
// A subscription_error frame is printed and returned as an error.
func runWatch(ctx context.Context, out io.Writer, server, target string) error {
	addr, err := watchURL(server, target)
	if err != nil {
		return err
	}
	header := http.Header{}
	if watchToken != "" {
		header.Set("Authorization", "Bearer "+watchToken)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, addr, header)
	if err != nil {
		if resp != nil {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return fmt.Errorf("watch %s: %s: %s", target, resp.Status, strings.TrimSpace(string(body)))
		}
		return fmt.Errorf("watch %s: %w", target, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	logger.Debug("watching", zap.String("url", addr))
	enc := json.NewEncoder(out)
	for {
		var msg site.WatchMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("watch %s: %w", target, err)
		}
		if err := enc.Encode(msg); err != nil {
			return err
		}
		if msg.Type == site.MessageSubscriptionError {
			return fmt.Errorf("watch %s: %s", target, msg.Error)
		}
	}
}
