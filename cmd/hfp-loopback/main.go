//go:build linux

// Command hfp-loopback connects to a hands-free or headset device as its
// audio gateway and echoes every received audio frame back to it.
package main

import (
	"os"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}
