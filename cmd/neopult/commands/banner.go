package commands

import (
	"fmt"

	"github.com/pterm/pterm"

	"github.com/neopult/neopult/internal/version"
)

// printStartupBanner prints the daemon's startup identity: which channel it
// serves, where it listens, and its build info. Upgraded from the teacher's
// raw-ANSI printStartupBanner to pterm's styled box/header printers — same
// library, a wider slice of its API.
func printStartupBanner(channel int, listenAddr, channelHome string) {
	pterm.DefaultHeader.WithFullWidth().WithBackgroundStyle(pterm.NewStyle(pterm.BgCyan)).
		Println(fmt.Sprintf("neopult — channel %d", channel))

	info := version.Get()
	lines := fmt.Sprintf(
		"Version:      %s (commit %s)\nChannel home: %s\nListening on: ws://%s/ws",
		info.Version, info.Short(), channelHome, listenAddr,
	)
	pterm.DefaultBox.WithTitle("startup").WithTitleTopCenter().Println(lines)

	pterm.Info.Println("press Ctrl+C to stop")
}
