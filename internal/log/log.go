// Package log provides the base structured logger shared by the
// control-plane packages. The core magdata package never logs on its
// own behalf (diagnostics are a collaborator concern); this logger is
// for magctl and healthmonitor.
package log

import (
	"os"

	"github.com/rs/zerolog"
)

var Logger = zerolog.New(os.Stderr).With().Timestamp().Stack().Logger()
