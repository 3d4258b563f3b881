// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package log holds the process-wide logger used by the commands.
package log

import (
	"os"

	"github.com/rs/zerolog"
)

// Log writes structured records to stderr.
var Log zerolog.Logger

func SetLevelDebug() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

func SetLevelInfo() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	Log = zerolog.New(os.Stderr).With().Timestamp().Logger()
	SetLevelInfo()
}
