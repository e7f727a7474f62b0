package chatcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/hanyu-tutor/backend/internal/bootstrap"
	"github.com/zhouzirui/hanyu-tutor/backend/internal/model/chat"
	"github.com/zhouzirui/hanyu-tutor/backend/internal/service/tutor"
)

const chatLongDesc string = `Start an interactive lesson in the terminal.

The tutor is probed first; if the completion service is unreachable or the
credentials are wrong the command reports why and exits. Each reply is printed
as the Chinese lines followed by their pinyin. When --out-dir is set the
synthesized audio of every reply is written there as reply-<id>.mp3.

Type /quit or send EOF (Ctrl-D) to leave.

Examples:
  tutor chat
  tutor chat --out-dir ./lesson-audio --voice tutor-male`

const chatShortDesc string = "Start an interactive lesson"

type chatCommander struct {
	load   bootstrap.Loader
	outDir string
	voice  string
}

func NewChatCmd(load bootstrap.Loader) *cobra.Command {
	cmder := &chatCommander{load: load}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&cmder.outDir, "out-dir", "o", "", "Directory for synthesized reply audio")
	cmd.Flags().StringVar(&cmder.voice, "voice", "", "Voice selector passed to the speech provider")

	return cmd
}

func (c *chatCommander) run(ctx context.Context, in io.Reader, out io.Writer) error {
	if c.outDir != "" {
		if err := os.MkdirAll(c.outDir, 0o755); err != nil {
			return fmt.Errorf("could not create output directory: %w", err)
		}
	}

	opts := []tutor.Option{
		tutor.WithEcho(func(_ string, msg chat.Message) {
			fmt.Fprintf(out, "你 > %s\n", msg.Content)
		}),
	}
	if c.voice != "" {
		opts = append(opts, tutor.WithVoice(c.voice))
	}

	app, err := c.load(ctx, opts...)
	if err != nil {
		return err
	}
	orchestrator := app.Orchestrator

	session := chat.NewSession(uuid.NewString())
	fmt.Fprintf(out, "老师 > %s\n", orchestrator.Profile().OpeningLine)

	if err := orchestrator.Probe(ctx, session); err != nil {
		fmt.Fprintf(out, "[error] %s\n", session.ProbeError)
		return fmt.Errorf("startup probe failed: %w", err)
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "/quit" || line == "/exit" {
			return nil
		}

		result, err := orchestrator.Submit(ctx, session, line)
		switch {
		case errors.Is(err, tutor.ErrEmptyInput):
			continue
		case result.Failure != nil:
			fmt.Fprintf(out, "[error] %s\n", result.Failure.UserMessage())
			continue
		case err != nil:
			return err
		}

		c.printReply(out, result)
	}
}

func (c *chatCommander) printReply(out io.Writer, result tutor.TurnResult) {
	fmt.Fprintf(out, "老师 > %s\n", result.Sections.Main)
	if result.Sections.HasPinyin() {
		for _, line := range strings.Split(result.Sections.Pinyin, "\n") {
			fmt.Fprintf(out, "       %s\n", line)
		}
	}

	switch {
	case result.AudioError != "":
		fmt.Fprintf(out, "[audio] %s\n", result.AudioError)
	case result.Audio != nil && c.outDir != "":
		path := filepath.Join(c.outDir, fmt.Sprintf("reply-%d.%s", result.Audio.MessageID, result.Audio.Format))
		if err := os.WriteFile(path, result.Audio.Data, 0o644); err != nil {
			fmt.Fprintf(out, "[audio] could not save %s: %v\n", path, err)
			return
		}
		fmt.Fprintf(out, "[audio] %s\n", path)
	}
}
