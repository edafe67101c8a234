//go:build linux

package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"bluetooth-audio/internal/bluetooth"
	"bluetooth-audio/internal/connmgr"
)

// printWarn prints a warning to the screen.
func printWarn(message string) {
	message = "[-] " + message

	color.New(color.FgYellow, color.Bold).Println(message)
}

// printError prints an error to the screen.
func printError(err error) {
	message := "[!] " + err.Error()

	color.New(color.FgRed, color.Bold).Println(message)
}

// printDevices lists scanned devices, one per line.
func printDevices(devices []connmgr.Device) {
	var sb strings.Builder

	sb.WriteString("Hands-free and headset devices:")
	for _, dev := range devices {
		class := color.New(color.FgGreen)
		if dev.Class != bluetooth.ClassHandsfree {
			class = color.New(color.FgCyan)
		}

		fmt.Fprintf(&sb, "\n- %s  %s  %s", dev.Address, class.Sprintf("%-9s", dev.Class), dev.DisplayName())
		if dev.Paired {
			sb.WriteString(" (paired)")
		}
	}

	fmt.Println(sb.String())
}
