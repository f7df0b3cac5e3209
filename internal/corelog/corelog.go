// Package corelog wires the engine's diagnostic output through
// op/go-logging, the same backend/formatter/level-override plumbing
// the daemon's predecessor used for its own process logs.
package corelog

import (
	stdlog "log"
	"log/syslog"
	"os"

	"github.com/op/go-logging"
)

var Log = logging.MustGetLogger("")

var syslogFormat = logging.MustStringFormatter(
	`%{time:15:04:05.000} %{level:.6s} ▶ %{message}`,
)

var stderrFormat = logging.MustStringFormatter(
	`%{color}normal-ipcp ▶ %{message}%{color:reset}`,
)

// Setup configures the package-level logger with the given module
// prefix and default level. When trySyslog is true a syslog backend
// is attempted first; on failure (or when trySyslog is false) it
// falls back to a colourised stderr backend. The level can be
// overridden at runtime with IPCPD_LOG_LEVEL.
func Setup(prefix string, defaultLevel logging.Level, trySyslog bool) *logging.Logger {
	var backend logging.Backend

	if trySyslog {
		sb, err := logging.NewSyslogBackendPriority(prefix, syslog.LOG_NOTICE)
		if err == nil {
			logging.SetFormatter(syslogFormat)
			if syslogBackend, ok := sb.(*logging.SyslogBackend); ok {
				stdlog.SetOutput(syslogBackend.Writer)
			}
			backend = sb
		}
	}

	if backend == nil {
		backend = logging.NewLogBackend(os.Stderr, prefix, 0)
		logging.SetFormatter(stderrFormat)
	}

	leveled := logging.AddModuleLevel(backend)
	switch os.Getenv("IPCPD_LOG_LEVEL") {
	case "CRITICAL":
		leveled.SetLevel(logging.CRITICAL, prefix)
	case "ERROR":
		leveled.SetLevel(logging.ERROR, prefix)
	case "WARNING":
		leveled.SetLevel(logging.WARNING, prefix)
	case "NOTICE":
		leveled.SetLevel(logging.NOTICE, prefix)
	case "INFO":
		leveled.SetLevel(logging.INFO, prefix)
	case "DEBUG":
		leveled.SetLevel(logging.DEBUG, prefix)
	default:
		leveled.SetLevel(defaultLevel, prefix)
	}

	logging.SetBackend(leveled)
	Log.Module = prefix
	return Log
}
