package pyout

import (
	"io"

	"github.com/sirupsen/logrus"
)

// lgr carries debug-level tracing of width negotiation and the update
// state machine. It is silent unless a caller installs a logger.
var lgr = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()

// SetLogger routes the package's debug logging to l. Passing nil restores
// the silent default.
func SetLogger(l *logrus.Logger) {
	if l == nil {
		l = logrus.New()
		l.SetOutput(io.Discard)
	}
	lgr = l
}
