package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/habiliai/nativeagent/config"
	"github.com/habiliai/nativeagent/errors"
	"github.com/habiliai/nativeagent/internal/mylog"
	"github.com/habiliai/nativeagent/localllm"
	"github.com/jcooky/go-din"
	"github.com/spf13/cobra"
)

func newModelsCmd() *cobra.Command {
	params := &struct {
		URL string
	}{}
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Manage models on the local Ollama server",
	}
	cmd.PersistentFlags().StringVar(&params.URL, "url", "", "Ollama server URL (default from OLLAMA_URL)")

	withClient := func(fn func(ctx context.Context, cmd *cobra.Command, client *localllm.Client, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, func(ctx context.Context, c *din.Container) error {
				client := din.MustGetT[*localllm.Client](c)
				if params.URL != "" {
					conf := din.MustGetT[*config.LocalConfig](c)
					client = localllm.NewClient(localllm.Config{
						URL:            params.URL,
						RequestTimeout: conf.RequestTimeout,
					}, din.MustGet[*slog.Logger](c, mylog.Key))
				}
				if !client.CheckStatus(ctx) {
					return errors.Wrapf(errors.ErrUnavailable, "ollama server at %s is not responding", client.URL())
				}
				return fn(ctx, cmd, client, args)
			})
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List installed models",
			Args:  cobra.NoArgs,
			RunE: withClient(func(ctx context.Context, cmd *cobra.Command, client *localllm.Client, _ []string) error {
				models, err := client.ListModels(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "NAME\tSIZE\tMODIFIED")
				for _, m := range models {
					fmt.Fprintf(w, "%s\t%.1f GB\t%s\n", m.Name, float64(m.Size)/1e9, m.ModifiedAt.Format(time.DateTime))
				}
				return w.Flush()
			}),
		},
		&cobra.Command{
			Use:   "pull <model>",
			Short: "Download a model and report progress",
			Args:  cobra.ExactArgs(1),
			RunE: withClient(func(ctx context.Context, cmd *cobra.Command, client *localllm.Client, args []string) error {
				stream, err := client.Pull(ctx, args[0])
				if err != nil {
					return err
				}
				defer stream.Close()

				last := ""
				for stream.Next() {
					p := stream.Progress()
					status := p.Status
					if p.Total > 0 {
						status = fmt.Sprintf("%s (%.0f%%)", p.Status, p.Percent())
					}
					if status != last {
						fmt.Fprintln(cmd.OutOrStdout(), status)
						last = status
					}
				}
				return stream.Err()
			}),
		},
		&cobra.Command{
			Use:   "delete <model>",
			Short: "Delete an installed model",
			Args:  cobra.ExactArgs(1),
			RunE: withClient(func(ctx context.Context, _ *cobra.Command, client *localllm.Client, args []string) error {
				return client.Delete(ctx, args[0])
			}),
		},
	)

	return cmd
}
