//go:build windows

package main

import (
	"os"
	"os/signal"
)

// notifySignals registers Ctrl+C. SIGTERM does not exist on Windows.
func notifySignals(ch chan<- os.Signal) {
	signal.Notify(ch, os.Interrupt)
}
