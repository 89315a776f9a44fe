//go:build !linux && !darwin

package main

import "errors"

func getTerminalSize() (width, height int, err error) {
	return -1, -1, errors.New("terminal size not supported on this platform")
}
