// Package commands implements the radio command line.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/NicolasHaas/radiolink/pkg/client"
	"github.com/NicolasHaas/radiolink/pkg/logging"
)

// options are the global flags shared by every command.
type options struct {
	configPath  string
	logLevel    string
	logFormat   string
	apiURL      string
	realtimeURL string
	stateDB     string
	metricsAddr string

	settings *client.Settings
}

// NewRoot builds the radio command tree. Without a subcommand it starts the
// GUI.
func NewRoot() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "radio",
		Short: "Push-to-talk radio over realtime audio",
		Long: `radio - dial a frequency, hold to talk, hear everyone on it.

Run without a command to start the desktop client.

Settings are read from settings.yaml in the OS config directory:
  macOS:   ~/Library/Application Support/radiolink/
  Linux:   ~/.config/radiolink/
  Windows: %AppData%/radiolink/

RADIOLINK_API_URL and RADIOLINK_REALTIME_URL override the file; flags
override both.

Examples:
  radio login -u alice
  radio listen 101.5
  radio logs --page 2`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGUI(cmd, opts)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "settings file (default: "+client.SettingsPath()+")")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level: "+logging.LevelNames())
	pf.StringVar(&opts.logFormat, "log-format", "", "log format: text or json")
	pf.StringVar(&opts.apiURL, "api-url", "", "backend REST API base URL")
	pf.StringVar(&opts.realtimeURL, "realtime-url", "", "realtime media server URL")
	pf.StringVar(&opts.stateDB, "state-db", "", "client state database path")
	pf.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	root.AddCommand(
		newLoginCmd(opts),
		newRegisterCmd(opts),
		newLogoutCmd(opts),
		newWhoamiCmd(opts),
		newLogsCmd(opts),
		newListenCmd(opts),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRoot().Execute()
}

// setup installs the logger and resolves settings: file, then
// environment, then flags.
func (o *options) setup(cmd *cobra.Command) error {
	logOpts := logging.FromEnv(logging.Options{Level: "info", Format: "text", Output: cmd.ErrOrStderr()})
	if o.logLevel != "" {
		logOpts.Level = o.logLevel
	}
	if o.logFormat != "" {
		logOpts.Format = o.logFormat
	}
	if err := logging.Setup(logOpts); err != nil {
		return err
	}

	path := o.configPath
	if path == "" {
		path = client.SettingsPath()
	}
	s, err := client.LoadSettingsFrom(path)
	if err != nil {
		return err
	}
	s.ApplyEnv()
	if o.apiURL != "" {
		s.APIURL = o.apiURL
	}
	if o.realtimeURL != "" {
		s.RealtimeURL = o.realtimeURL
	}
	if o.stateDB != "" {
		s.StateDB = o.stateDB
	}
	if o.metricsAddr != "" {
		s.MetricsAddr = o.metricsAddr
	}
	if err := s.Validate(); err != nil {
		return fmt.Errorf("settings: %w", err)
	}
	o.settings = s
	return nil
}
