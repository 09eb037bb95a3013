package quic

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/eeverettrbx/qcore/transport"
)

// Log verbosity levels, kept numeric for cmd/quince's -v flag (teacher's
// own convention); they map onto logrus levels rather than gating writes
// by hand the way the teacher's log.go originally did, since logrus
// already provides level gating and safe concurrent writes.
const (
	LevelOff = iota
	LevelError
	LevelInfo
	LevelDebug
	LevelTrace
)

var logrusLevels = [...]logrus.Level{
	LevelOff:   logrus.PanicLevel, // nothing below panic is ever logged at "off"
	LevelError: logrus.ErrorLevel,
	LevelInfo:  logrus.InfoLevel,
	LevelDebug: logrus.DebugLevel,
	LevelTrace: logrus.TraceLevel,
}

// logger wraps a *logrus.Logger for this package's ambient operational
// logging (construction, teardown, callback failures) — distinct from the
// qlog-style transport.LogEvent wire trace qlogObserver taps into. See
// SPEC_FULL.md 3 for why the two are kept separate.
type logger struct {
	*logrus.Logger
}

// newLogger builds a logger at the given verbosity, writing to w. A nil w
// leaves logrus's default output (os.Stderr) in place.
func newLogger(level int, w io.Writer) *logger {
	l := logrus.New()
	if w != nil {
		l.SetOutput(w)
	}
	if level < 0 || level >= len(logrusLevels) {
		level = LevelInfo
	}
	l.SetLevel(logrusLevels[level])
	return &logger{Logger: l}
}

func (s *logger) log(level int, format string, args ...interface{}) {
	if s == nil || s.Logger == nil {
		return
	}
	switch level {
	case LevelError:
		s.Errorf(format, args...)
	case LevelDebug:
		s.Debugf(format, args...)
	case LevelTrace:
		s.Tracef(format, args...)
	default:
		s.Infof(format, args...)
	}
}

// qlogObserver returns a transport.LogEvent handler that logs c's wire
// events at debug level, prefixed with the connection's address and id, or
// nil if the logger isn't at debug level or above. Mirrors the teacher's
// attachLogger/transactionLogger split between "what the process did" and
// "what the protocol did on the wire" — endpoint.go composes this with any
// metrics observer into the single func transport.Conn.OnLogEvent accepts.
func (s *logger) qlogObserver(c *Conn) func(transport.LogEvent) {
	if s == nil || s.Logger == nil || s.Logger.GetLevel() < logrus.DebugLevel {
		return nil
	}
	base := logrus.Fields{"addr": c.addr, "cid": c.cid}
	l := s.Logger
	return func(e transport.LogEvent) {
		f := make(logrus.Fields, len(base)+len(e.Fields)+1)
		for k, v := range base {
			f[k] = v
		}
		f["event"] = e.Type
		for _, field := range e.Fields {
			if field.Str != "" {
				f[field.Key] = field.Str
			} else {
				f[field.Key] = field.Num
			}
		}
		l.WithFields(f).Debug("qlog")
	}
}
