package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/wyfcoding/easyreconcile/pkg/grpcclient"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func newHealthCmd(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Query the gRPC health service of a running instance",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := opts.cfg
			if addr == "" {
				addr = "127.0.0.1:" + strconv.Itoa(cfg.GRPC.Port)
			}

			conn, err := grpcclient.NewClient(grpcclient.ClientConfig{
				Target:         addr,
				RequestTimeout: 5,
				MaxRetries:     2,
				RetryDelay:     200,
			})
			if err != nil {
				return err
			}
			defer func() { _ = conn.Close() }()

			st, err := grpcclient.CheckHealth(cmd.Context(), conn, cfg.ServiceName)
			if err != nil {
				return fmt.Errorf("health check %s: %w", addr, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), st.String())
			if st != healthpb.HealthCheckResponse_SERVING {
				return fmt.Errorf("service %s is %s", cfg.ServiceName, st)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "gRPC address (default 127.0.0.1:<grpc.port>)")
	return cmd
}
