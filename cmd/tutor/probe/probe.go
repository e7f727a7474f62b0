package probecmder

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/hanyu-tutor/backend/internal/bootstrap"
	"github.com/zhouzirui/hanyu-tutor/backend/internal/model/chat"
)

const probeLongDesc string = `Check that the completion service is reachable with the configured
credentials by sending one trivial message, the same check every chat session
runs before accepting input. Exits non-zero on failure.`

const probeShortDesc string = "Check completion credentials and connectivity"

type probeCommander struct {
	load    bootstrap.Loader
	timeout time.Duration
}

func NewProbeCmd(load bootstrap.Loader) *cobra.Command {
	cmder := &probeCommander{load: load}

	cmd := &cobra.Command{
		Use:   "probe",
		Short: probeShortDesc,
		Long:  probeLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().DurationVar(&cmder.timeout, "timeout", 30*time.Second, "Probe timeout")

	return cmd
}

func (c *probeCommander) run(ctx context.Context, out io.Writer) error {
	app, err := c.load(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	session := chat.NewSession("probe")
	if err := app.Orchestrator.Probe(ctx, session); err != nil {
		fmt.Fprintf(out, "probe failed: %s\n", session.ProbeError)
		return err
	}

	fmt.Fprintln(out, "probe ok: completion service reachable")
	return nil
}
