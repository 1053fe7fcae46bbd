//go:build tools

package pageprobe

// Import modules for external tools for correct version pinning and usage with "go run ..."
import (
	_ "github.com/networkteam/refresh"
)
