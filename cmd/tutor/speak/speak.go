package speakcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/hanyu-tutor/backend/internal/analysis/reply"
	"github.com/zhouzirui/hanyu-tutor/backend/internal/bootstrap"
)

const speakLongDesc string = `Synthesize text with the configured speech provider and write an MP3.

With --reply the argument is treated as a full tutor reply: only the Chinese
text before each "(" in the section above "---" is spoken, exactly as in chat.

Examples:
  tutor speak "你好！" --out hello.mp3
  tutor speak --reply "你好！(Hello!)\n---\nNǐ hǎo!" --voice tutor-male`

const speakShortDesc string = "Synthesize text to an MP3 file"

type speakCommander struct {
	load    bootstrap.Loader
	out     string
	voice   string
	reply   bool
	timeout time.Duration
}

func NewSpeakCmd(load bootstrap.Loader) *cobra.Command {
	cmder := &speakCommander{load: load}

	cmd := &cobra.Command{
		Use:   "speak <text>",
		Short: speakShortDesc,
		Long:  speakLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	}

	cmd.Flags().StringVarP(&cmder.out, "out", "o", "speech.mp3", "Output file")
	cmd.Flags().StringVar(&cmder.voice, "voice", "", "Voice selector, defaults to the tutor voice")
	cmd.Flags().BoolVar(&cmder.reply, "reply", false, "Treat the text as a tutor reply and speak only its Chinese part")
	cmd.Flags().DurationVar(&cmder.timeout, "timeout", 45*time.Second, "Request timeout")

	return cmd
}

func (c *speakCommander) run(ctx context.Context, out io.Writer, text string) error {
	if c.reply {
		text = reply.SpeakableText(strings.ReplaceAll(text, `\n`, "\n"))
	}
	if strings.TrimSpace(text) == "" {
		return errors.New("nothing to speak")
	}

	app, err := c.load(ctx)
	if err != nil {
		return err
	}
	if app.Speech == nil {
		return errors.New("speech is not configured, set SPEECH_APP_ID and SPEECH_ACCESS_TOKEN or SPEECH_PROVIDER=openai")
	}

	voice := c.voice
	if voice == "" {
		voice = app.Profile.VoiceID
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	started := time.Now()
	resp, err := app.Speech.Synthesize(ctx, text, voice)
	if err != nil {
		return err
	}

	if err := os.WriteFile(c.out, resp.AudioData, 0o644); err != nil {
		return fmt.Errorf("could not write %s: %w", c.out, err)
	}

	fmt.Fprintf(out, "Wrote %d bytes of %s audio to %s in %s (provider %s)\n",
		len(resp.AudioData), resp.Format, c.out, time.Since(started).Round(time.Millisecond), app.Speech.Provider())
	return nil
}
