package main

import (
	"fmt"
	"os"
	"strings"
)

// uiMode is the value of --ui.
type uiMode string

const (
	uiModeAuto uiMode = "auto"
	uiModeOn   uiMode = "on"
	uiModeOff  uiMode = "off"
)

func readUIMode(value string) (uiMode, error) {
	mode := uiMode(strings.ToLower(strings.TrimSpace(value)))
	if mode == "" {
		return uiModeAuto, nil
	}
	if mode != uiModeAuto && mode != uiModeOn && mode != uiModeOff {
		return "", fmt.Errorf("invalid --ui value %q (expected auto|on|off)", value)
	}
	return mode, nil
}

// shouldUseTUI picks the live progress view over plain output. In auto
// mode a single file is never worth a full-screen program.
func shouldUseTUI(mode uiMode, files int) bool {
	if mode != uiModeAuto {
		return mode == uiModeOn
	}
	return files > 1 && isTerminal(os.Stdout)
}
