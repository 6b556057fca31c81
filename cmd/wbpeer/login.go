package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mossy-p/whiteboard-signaling/internal/handlers"
	"github.com/spf13/cobra"
)

var (
	flagUsername    string
	flagPassword    string
	flagEmail       string
	flagDisplayName string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Obtain a token from the relay",
	Long: `Obtain a token from the relay and print it.

Examples:
  wbpeer login --username ana --password secret
  wbpeer join --room ABCD1234 --token "$(wbpeer login --username ana --password secret)"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		resp, err := login(ctx, flagServer, handlers.LoginRequest{
			Username:    flagUsername,
			Password:    flagPassword,
			Email:       flagEmail,
			DisplayName: flagDisplayName,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), resp.Token)
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&flagUsername, "username", "", "user name")
	loginCmd.Flags().StringVar(&flagPassword, "password", "", "password")
	loginCmd.Flags().StringVar(&flagEmail, "email", "", "email address")
	loginCmd.Flags().StringVar(&flagDisplayName, "display-name", "", "name shown to others")
	loginCmd.MarkFlagRequired("username")
	loginCmd.MarkFlagRequired("password")
}

func login(ctx context.Context, server string, req handlers.LoginRequest) (*handlers.LoginResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSuffix(server, "/")+"/api/auth/login", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("login rejected: %s", resp.Status)
	}

	var out handlers.LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode login response: %w", err)
	}
	return &out, nil
}
