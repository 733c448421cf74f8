//go:build windows

package winproc

import "github.com/sirupsen/logrus"

// log is winproc's diagnostic sink, muted by default so library consumers
// see nothing unless they opt in via SetLogger — mirrors hinako's own
// logging.go (spec.md §2 EXPANSION "Ambient stack").
var log = func() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(discardWriter{})
	return logrus.NewEntry(l)
}()

// SetLogger installs the *logrus.Entry used for structured debug/warn
// diagnostics during handle acquisition, module discovery, and remote
// memory operations.
func SetLogger(entry *logrus.Entry) {
	if entry == nil {
		return
	}
	log = entry
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
