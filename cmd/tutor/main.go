package main

import (
	"os"

	"github.com/spf13/cobra"

	chatcmder "github.com/zhouzirui/hanyu-tutor/backend/cmd/tutor/chat"
	probecmder "github.com/zhouzirui/hanyu-tutor/backend/cmd/tutor/probe"
	speakcmder "github.com/zhouzirui/hanyu-tutor/backend/cmd/tutor/speak"
	"github.com/zhouzirui/hanyu-tutor/backend/internal/bootstrap"
	"github.com/zhouzirui/hanyu-tutor/backend/pkg/logger"
)

func newRootCmd() *cobra.Command {
	var (
		debug bool
		flush func()
	)

	cmd := &cobra.Command{
		Use:           "tutor",
		Short:         "Chat with the Chinese tutor from the terminal",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(*cobra.Command, []string) {
			flush = logger.Install(debug)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if flush != nil {
				flush()
			}
		},
	}

	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(chatcmder.NewChatCmd(bootstrap.FromEnv))
	cmd.AddCommand(speakcmder.NewSpeakCmd(bootstrap.FromEnv))
	cmd.AddCommand(probecmder.NewProbeCmd(bootstrap.FromEnv))

	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
