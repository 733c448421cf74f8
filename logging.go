package hinako

import "github.com/sirupsen/logrus"

// log is the package-level diagnostic sink (spec.md §2 EXPANSION "Ambient
// stack"). Defaults to a muted logger so library consumers see nothing
// unless they opt in via SetLogger.
var log = func() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(discardWriter{})
	return logrus.NewEntry(l)
}()

// SetLogger installs the *logrus.Entry used for structured debug/warn
// diagnostics during NewHook/Install/Uninstall. The remote memory
// operations in package winproc log through winproc.SetLogger instead.
func SetLogger(entry *logrus.Entry) {
	if entry == nil {
		return
	}
	log = entry
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
