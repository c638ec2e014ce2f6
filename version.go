package monitor

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var version string

// Version of the monitor.
var Version = strings.TrimSpace(version)
