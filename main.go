package main

import (
	"os"

	"github.com/tphakala/leafscan/cmd"
	"github.com/tphakala/leafscan/internal/buildinfo"
)

// Set at build time with -ldflags "-X main.version=... -X main.buildDate=...".
var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if err := cmd.RootCommand(buildinfo.NewContext(version, buildDate)).Execute(); err != nil {
		os.Exit(1)
	}
}
