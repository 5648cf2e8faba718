package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/alx-home/msfs2024-vfrnav-efb/internal/config"
)

func probeCmd() *cobra.Command {
	var (
		host    string
		port    uint16
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check that a bridge answers on host:port",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			if err := probe(ctx, host, port); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "bridge alive on %s\n", net.JoinHostPort(host, strconv.Itoa(int(port))))
			return nil
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "bridge host")
	cmd.Flags().Uint16VarP(&port, "port", "p", config.DefaultPort, "bridge port")
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "request timeout")
	return cmd
}

func probe(ctx context.Context, host string, port uint16) error {
	url := "http://" + net.JoinHostPort(host, strconv.Itoa(int(port))) + "/?alive"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("probe %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("probe %s: status %s", url, resp.Status)
	}
	return nil
}
