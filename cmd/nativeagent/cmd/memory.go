package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/habiliai/nativeagent/errors"
	"github.com/habiliai/nativeagent/memory"
	"github.com/jcooky/go-din"
	"github.com/spf13/cobra"
)

func newMemoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect and edit an agent's persistent memory",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list <agent-name>",
			Short: "List memories, newest first",
			Args:  cobra.ExactArgs(1),
			RunE: withStore(func(ctx context.Context, cmd *cobra.Command, store memory.Store, args []string) error {
				records, err := store.List(ctx, args[0])
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tCREATED\tCONTENT")
				for _, r := range records {
					fmt.Fprintf(w, "%s\t%s\t%s\n", r.ID, r.CreatedAt.Format(time.DateTime), r.Content)
				}
				return w.Flush()
			}),
		},
		&cobra.Command{
			Use:   "add <agent-name> <content>",
			Short: "Store a memory unless it already exists",
			Args:  cobra.ExactArgs(2),
			RunE: withStore(func(ctx context.Context, cmd *cobra.Command, store memory.Store, args []string) error {
				record, added, err := store.Add(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				if !added {
					fmt.Fprintf(cmd.OutOrStdout(), "already stored as %s\n", record.ID)
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), record.ID)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "forget <agent-name> <id>",
			Short: "Delete one memory by id",
			Args:  cobra.ExactArgs(2),
			RunE: withStore(func(ctx context.Context, _ *cobra.Command, store memory.Store, args []string) error {
				return store.Delete(ctx, args[0], args[1])
			}),
		},
		&cobra.Command{
			Use:   "clear <agent-name>",
			Short: "Delete every memory of an agent",
			Args:  cobra.ExactArgs(1),
			RunE: withStore(func(ctx context.Context, _ *cobra.Command, store memory.Store, args []string) error {
				return store.Clear(ctx, args[0])
			}),
		},
		&cobra.Command{
			Use:   "migrate <old-name> <new-name>",
			Short: "Move memories to a renamed agent",
			Args:  cobra.ExactArgs(2),
			RunE: withStore(func(ctx context.Context, _ *cobra.Command, store memory.Store, args []string) error {
				return store.Migrate(ctx, args[0], args[1])
			}),
		},
		&cobra.Command{
			Use:   "import <agent-name> <file>",
			Short: "Add one memory per non-empty line of a text file",
			Args:  cobra.ExactArgs(2),
			RunE: withStore(func(ctx context.Context, cmd *cobra.Command, store memory.Store, args []string) error {
				raw, err := os.ReadFile(args[1])
				if err != nil {
					return errors.Wrapf(err, "failed to read %s", args[1])
				}
				n, err := store.Import(ctx, args[0], string(raw))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d new concepts from %s.\n", n, args[1])
				return nil
			}),
		},
	)

	return cmd
}

func withStore(fn func(ctx context.Context, cmd *cobra.Command, store memory.Store, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, c *din.Container) error {
			store, err := din.GetT[memory.Store](c)
			if err != nil {
				return errors.Wrap(err, "failed to open memory store")
			}
			return fn(ctx, cmd, store, args)
		})
	}
}
