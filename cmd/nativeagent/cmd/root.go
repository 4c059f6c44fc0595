package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/habiliai/nativeagent/config"
	"github.com/habiliai/nativeagent/entity"
	"github.com/habiliai/nativeagent/errors"
	"github.com/jcooky/go-din"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "nativeagent",
		Short:         "Memory-backed conversational agent with a native offline pathway",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(
		newChatCmd(),
		newServeCmd(),
		newMemoryCmd(),
		newModelsCmd(),
	)

	return cmd
}

// withContainer runs fn with a production container bound to a context that
// ends on SIGINT or SIGTERM.
func withContainer(cmd *cobra.Command, fn func(ctx context.Context, c *din.Container) error) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	c := din.NewContainer(ctx, din.EnvProd)
	defer c.Close()

	return fn(ctx, c)
}

func loadAgent(file string) (entity.Agent, error) {
	if _, err := os.Stat(file); os.IsNotExist(err) {
		return entity.Agent{}, errors.Wrapf(err, "agent file does not exist")
	}
	conf, err := config.LoadAgentFromFile(file)
	if err != nil {
		return entity.Agent{}, err
	}
	return entity.AgentFromConfig(conf).Normalize(), nil
}

func Execute() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %+v\n", err)
		os.Exit(1)
	}
}
