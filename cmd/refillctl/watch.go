package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"refillplan/internal/model"
)

func watchCmd() *cobra.Command {
	var apiURL, token, role string
	cmd := &cobra.Command{
		Use:   "watch RUN_ID",
		Short: "Follow the progress events of a run on a running API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := eventsURL(apiURL, args[0])
			if err != nil {
				return err
			}
			hdr := http.Header{}
			if token != "" {
				hdr.Set("Authorization", "Bearer "+token)
			} else if role != "" {
				hdr.Set("X-Role", role)
			}
			c, _, err := websocket.DefaultDialer.DialContext(cmd.Context(), u, hdr)
			if err != nil {
				return fmt.Errorf("dial %s: %w", u, err)
			}
			defer func() { _ = c.Close() }()

			w := cmd.OutOrStdout()
			for {
				var evt model.RunEvent
				if err := c.ReadJSON(&evt); err != nil {
					if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
						return nil
					}
					return err
				}
				data, _ := json.Marshal(evt.Data)
				fmt.Fprintf(w, "%s %s\n", evt.Type, data)
			}
		},
	}
	cmd.Flags().StringVar(&apiURL, "api", "http://localhost:8080", "API base URL")
	cmd.Flags().StringVar(&token, "token", "", "bearer token")
	cmd.Flags().StringVar(&role, "role", "", "X-Role header for dev mode APIs")
	return cmd
}

// eventsURL turns an http(s) API base URL into the run's websocket URL.
func eventsURL(base, runID string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported API URL scheme %q", u.Scheme)
	}
	u.Path += "/v1/runs/" + url.PathEscape(runID) + "/events/ws"
	return u.String(), nil
}
