// Command radio is the radiolink client: a desktop push-to-talk radio by
// default, plus account and diagnostics subcommands.
//
// Usage:
//
//	radio [flags] [command]
//
// Commands:
//
//	login      - Sign in and store the access credential
//	register   - Create an account
//	logout     - Forget the stored credential
//	whoami     - Show the signed-in identity
//	logs       - Show the room join log (admin only)
//	listen     - Receive a frequency without transmitting
//	version    - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/NicolasHaas/radiolink/cmd/radio/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
