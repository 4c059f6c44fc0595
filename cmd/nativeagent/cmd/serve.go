package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/habiliai/nativeagent"
	"github.com/habiliai/nativeagent/config"
	"github.com/habiliai/nativeagent/errors"
	"github.com/habiliai/nativeagent/server"
	"github.com/jcooky/go-din"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	params := &struct {
		Port    int
		Offline bool
	}{}
	cmd := &cobra.Command{
		Use:   "serve [agent-file]",
		Short: "Serve the agent session over HTTP",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []nativeagent.Option{nativeagent.WithOffline(params.Offline)}
			if len(args) == 1 {
				agent, err := loadAgent(args[0])
				if err != nil {
					return err
				}
				opts = append(opts, nativeagent.WithAgent(agent))
			}

			return withContainer(cmd, func(ctx context.Context, c *din.Container) error {
				cfg := din.MustGetT[*config.ServerConfig](c)
				if cmd.Flags().Changed("port") {
					cfg.Port = params.Port
				}

				runtime, err := nativeagent.NewRuntime(ctx, append(opts, nativeagent.WithContainer(c))...)
				if err != nil {
					return errors.Wrap(err, "failed to start runtime")
				}
				defer runtime.Close()
				logger := runtime.Logger()

				srv := &http.Server{
					Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
					Handler: server.NewHandler(runtime.Session(), logger),
					BaseContext: func(net.Listener) context.Context {
						return ctx
					},
				}

				go func() {
					<-ctx.Done()
					if err := srv.Shutdown(context.WithoutCancel(ctx)); err != nil {
						logger.Error("failed to shutdown server", slog.Any("error", err))
					}
				}()

				logger.Info("server started", slog.String("host", cfg.Host), slog.Int("port", cfg.Port))
				defer logger.Info("server stopped")

				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&params.Port, "port", "p", config.NewServerConfig().Port, "Port to listen on")
	cmd.Flags().BoolVar(&params.Offline, "offline", false, "Stay on the native pathway even when a hosted model is configured")

	return cmd
}
