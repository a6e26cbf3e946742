package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	rpserver "github.com/HendryAvila/recordpilot/internal/server"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the copilot in the terminal",
	Long: `Chat with the copilot in the terminal. Type /reset to start over and
/quit (or Ctrl-D) to leave.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

// Conversation answers one message of a conversation.
type Conversation interface {
	Handle(ctx context.Context, id, input string) (string, error)
	Reset(id string)
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg, true)
	if err != nil {
		return err
	}
	defer log.Sync()

	b, cleanup, err := rpserver.Open(backendOptions(cfg, log))
	if err != nil {
		return err
	}
	defer cleanup()

	mgr, err := newManager(ctx, cfg, b, nil, log)
	if err != nil {
		return err
	}
	return repl(ctx, mgr, mgr.NewID(), cmd.InOrStdin(), cmd.OutOrStdout())
}

// repl reads one message per line until EOF, /quit or ctx ends.
func repl(ctx context.Context, conv Conversation, id string, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "recordpilot: ask about your projects, tasks and clients. /reset, /quit")
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(sc.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/reset":
			conv.Reset(id)
			fmt.Fprintln(out, "(conversation cleared)")
			continue
		}

		reply, err := conv.Handle(ctx, id, line)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		fmt.Fprintln(out, reply)
	}
}
