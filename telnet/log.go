package telnet

import (
	"io"

	log "github.com/sirupsen/logrus"
)

// orDiscard returns l, or a logger that drops everything when l is nil.
func orDiscard(l log.Ext1FieldLogger) log.Ext1FieldLogger {
	if l != nil {
		return l
	}
	discard := log.New()
	discard.SetOutput(io.Discard)
	return discard
}

// traceEnabled is true when l would emit Debug-level negotiation traces.
// Building trace strings is skipped otherwise.
func traceEnabled(l log.Ext1FieldLogger) bool {
	switch t := l.(type) {
	case *log.Entry:
		return t.Logger.IsLevelEnabled(log.DebugLevel)
	case *log.Logger:
		return t.IsLevelEnabled(log.DebugLevel)
	}
	return true
}
