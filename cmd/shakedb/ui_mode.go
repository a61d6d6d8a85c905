package main

import "os"

func shouldUseTUI() bool {
	if quiet {
		return false
	}
	switch colorMode {
	case "off":
		return false
	case "on":
		return true
	default:
		return isTerminal(os.Stdout)
	}
}
