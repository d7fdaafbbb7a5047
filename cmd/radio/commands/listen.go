package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/NicolasHaas/radiolink/pkg/audio"
	"github.com/NicolasHaas/radiolink/pkg/client"
	"github.com/NicolasHaas/radiolink/pkg/model"
	"github.com/NicolasHaas/radiolink/pkg/realtime"
)

func newListenCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "listen <frequency>",
		Short: "Receive a frequency without transmitting",
		Long: `Connect to a frequency and play everyone on it through the output
device until interrupted. The microphone is never opened.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(o)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := rt.signedIn(ctx); err != nil {
				return err
			}

			audio.PreInitAudio()
			defer audio.Shutdown()
			go rt.metrics.Serve(ctx, rt.settings.MetricsAddr)

			speaker := realtime.NewSpeaker(rt.settings.AudioOutput, rt.metrics)
			defer speaker.Close()

			engine := rt.engine(realtime.WithoutMicrophone(rt.metrics), speaker.Sink)
			out := cmd.OutOrStdout()
			closed := make(chan struct{})
			var last client.State
			engine.OnStatus = func(st client.Status) {
				if st.State == client.StateOpen {
					fmt.Fprintf(out, "on %s: %s\n", model.FormatFrequency(st.Frequency), participantNames(st.Participants))
				}
				if last == client.StateOpen && st.State == client.StateIdle {
					close(closed)
				}
				last = st.State
			}

			if err := engine.Connect(ctx, args[0]); err != nil {
				return err
			}
			select {
			case <-ctx.Done():
				slog.Info("interrupted, leaving frequency")
				engine.Disconnect()
			case <-closed:
				return fmt.Errorf("session closed by server")
			}
			return nil
		},
	}
}

func participantNames(ps []model.Participant) string {
	if len(ps) == 0 {
		return "nobody else here"
	}
	names := make([]string, 0, len(ps))
	for _, p := range ps {
		name := p.DisplayName()
		if p.HasAudio {
			name += " (audio)"
		}
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}
