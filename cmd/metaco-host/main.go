// Command metaco-host is the browser native messaging host for metaCo. The
// browser starts it once per message: it reads one framed request from
// stdin, answers on stdout, and exits.
//
// Arguments passed by the browser (the caller origin, a window handle) are
// ignored. Set METACO_DEBUG=1 for debug logs and METACO_STATE_FILE to use a
// state file other than the platform default.
package main

import (
	"log/slog"
	"os"

	"github.com/metaco/metaco/internal/host"
)

const debugEnv = "METACO_DEBUG"

func main() {
	// stdout carries protocol frames only; logs go to stderr.
	logLevel := slog.LevelInfo
	if v := os.Getenv(debugEnv); v != "" && v != "0" {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	os.Exit(host.Run(os.Stdin, os.Stdout))
}
