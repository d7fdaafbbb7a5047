package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/NicolasHaas/radiolink/pkg/audio"
	"github.com/NicolasHaas/radiolink/pkg/client"
	"github.com/NicolasHaas/radiolink/pkg/frequency"
	"github.com/NicolasHaas/radiolink/pkg/realtime"
	"github.com/NicolasHaas/radiolink/ui"
)

// runGUI wires the desktop client and blocks until its window closes.
func runGUI(cmd *cobra.Command, o *options) error {
	rt, err := openRuntime(o)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	defer audio.Shutdown()
	go rt.metrics.Serve(ctx, rt.settings.MetricsAddr)

	speaker := realtime.NewSpeaker(rt.settings.AudioOutput, rt.metrics)
	defer speaker.Close()

	dial := frequency.NewDial()
	engine := client.NewEngine(client.Config{
		API:            rt.api,
		Auth:           rt.guard,
		Transport:      realtime.NewTransport(rt.settings.AudioInput, rt.metrics),
		Dial:           dial,
		Sinks:          speaker.Sink,
		Metrics:        rt.metrics,
		RealtimeURL:    rt.settings.RealtimeURL,
		RequestTimeout: rt.settings.RequestTimeout,
	})
	defer engine.Close()

	app := ui.NewApp(ui.Deps{
		Settings: rt.settings,
		API:      rt.api,
		Guard:    rt.guard,
		Engine:   engine,
		Dial:     dial,
		Hotkeys:  client.NewGlobalHotkeys(),
	})
	go rt.guard.Init(ctx)
	app.Run()
	return nil
}
