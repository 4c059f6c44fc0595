package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/habiliai/nativeagent"
	"github.com/habiliai/nativeagent/entity"
	"github.com/habiliai/nativeagent/errors"
	"github.com/habiliai/nativeagent/session"
	"github.com/jcooky/go-din"
	"github.com/spf13/cobra"
)

func newChatCmd() *cobra.Command {
	params := &struct {
		Offline bool
	}{}
	cmd := &cobra.Command{
		Use:   "chat <agent-file>",
		Short: "Chat with an agent in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			agent, err := loadAgent(args[0])
			if err != nil {
				return err
			}

			return withContainer(cmd, func(ctx context.Context, c *din.Container) error {
				runtime, err := nativeagent.NewRuntime(ctx,
					nativeagent.WithContainer(c),
					nativeagent.WithAgent(agent),
					nativeagent.WithOffline(params.Offline),
				)
				if err != nil {
					return errors.Wrap(err, "failed to start runtime")
				}
				defer runtime.Close()

				return newREPL(runtime.Session(), cmd.OutOrStdout()).run(ctx, cmd.InOrStdin())
			})
		},
	}

	cmd.Flags().BoolVar(&params.Offline, "offline", false, "Stay on the native pathway even when a hosted model is configured")

	return cmd
}

type repl struct {
	sess *session.Session
	out  io.Writer

	mu      sync.Mutex
	printed map[string]int
	open    string
}

func newREPL(sess *session.Session, out io.Writer) *repl {
	return &repl{sess: sess, out: out, printed: map[string]int{}}
}

func (r *repl) run(ctx context.Context, in io.Reader) error {
	events, unsubscribe := r.sess.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			r.show(ev.Message)
		}
	}()
	defer func() {
		unsubscribe()
		<-done
	}()

	agent, _ := r.sess.Agent()
	r.printf("Chatting with %s on the %s pathway. Type /help for commands.\n", agent.Name, r.sess.Pathway())

	scanner := bufio.NewScanner(in)
	for {
		r.printf("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		if strings.HasPrefix(text, "/") {
			quit, err := r.command(ctx, text)
			if err != nil {
				r.printf("error: %v\n", err)
			}
			if quit {
				return nil
			}
			continue
		}

		if err := r.sess.SendMessage(ctx, text); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.printf("error: %v\n", err)
			continue
		}
		for _, m := range r.sess.Transcript() {
			r.show(m)
		}
		r.endLine()
	}
}

// show prints whatever part of m has not been printed yet. User messages are
// echoed by the terminal and never printed.
func (r *repl) show(m entity.ChatMessage) {
	if m.Sender == entity.SenderUser {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.printed[m.ID]
	if len(m.Text) <= n {
		return
	}

	var b strings.Builder
	if r.open != "" && r.open != m.ID {
		b.WriteString("\n")
	}
	if n == 0 {
		b.WriteString(label(m) + ": ")
	}
	b.WriteString(m.Text[n:])
	r.printed[m.ID] = len(m.Text)
	r.open = m.ID
	if !m.IsProcessing {
		b.WriteString("\n")
		r.open = ""
	}
	io.WriteString(r.out, b.String())
}

func (r *repl) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

func (r *repl) endLine() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.open != "" {
		io.WriteString(r.out, "\n")
		r.open = ""
	}
}

func label(m entity.ChatMessage) string {
	if m.Sender == entity.SenderSystem {
		return "[" + string(m.Type) + "]"
	}
	if m.Type == "" || m.Type == entity.MessageTypeStandard {
		return "agent"
	}
	return "agent (" + string(m.Type) + ")"
}

func (r *repl) command(ctx context.Context, line string) (quit bool, err error) {
	name, arg, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "quit", "exit":
		return true, nil
	case "help":
		r.printf("%s\n", "/memories  /import <file>  /analyze  /approve <memory>  /mode <mode>  /pathway <hosted|native>  /local  /quit")
	case "memories":
		for _, fact := range r.sess.Knowledge() {
			r.printf("- %s\n", fact)
		}
	case "import":
		raw, err := os.ReadFile(arg)
		if err != nil {
			return false, errors.Wrapf(err, "failed to read %s", arg)
		}
		if _, err := r.sess.ImportKnowledge(ctx, string(raw), arg); err != nil {
			return false, err
		}
	case "analyze":
		suggestions, err := r.sess.AnalyzeConversation(ctx)
		if err != nil {
			return false, err
		}
		for _, s := range suggestions {
			r.printf("? %s\n", s)
		}
	case "approve":
		return false, r.sess.ApproveMemory(ctx, arg)
	case "mode":
		return false, r.sess.SetMode(ctx, entity.Mode(arg))
	case "pathway":
		return false, r.sess.SetPathway(ctx, entity.Pathway(arg))
	case "local":
		state := r.sess.LocalState()
		r.printf("%s %s model=%q enabled=%t\n", state.URL, state.Status, state.Selected, state.Enabled)
		if state.Error != "" {
			r.printf("  %s\n", state.Error)
		}
	default:
		return false, errors.Errorf("unknown command /%s", name)
	}
	return false, nil
}
