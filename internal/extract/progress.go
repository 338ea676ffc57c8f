package extract

// ProgressReporter provides callbacks for reporting extraction progress.
// Implementations can display progress, log messages, or remain silent.
type ProgressReporter interface {
	// OnProvisioned is called once the package is installed.
	OnProvisioned(python, dir string)

	// OnCaptured is called after the object graph is available.
	OnCaptured(objects int)

	// OnExportsResolved is called with the size of the export symbol set.
	OnExportsResolved(symbols int)

	// OnWalked is called after classification and annotation.
	OnWalked(records, exported int)

	// OnWritten is called after both documents are written.
	OnWritten(initOnlyPath, allPath string)
}

// NoOpProgressReporter reports nothing.
type NoOpProgressReporter struct{}

func (NoOpProgressReporter) OnProvisioned(python, dir string)       {}
func (NoOpProgressReporter) OnCaptured(objects int)                 {}
func (NoOpProgressReporter) OnExportsResolved(symbols int)          {}
func (NoOpProgressReporter) OnWalked(records, exported int)         {}
func (NoOpProgressReporter) OnWritten(initOnlyPath, allPath string) {}
