package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
)

// CLIProgressReporter reports extraction steps as status lines and mirror
// writes as a progress bar.
type CLIProgressReporter struct {
	quiet     bool
	out       io.Writer
	mirrorBar *progressbar.ProgressBar
	mirrored  int
	startTime time.Time
}

// NewCLIProgressReporter creates a new CLI progress reporter writing to out.
func NewCLIProgressReporter(out io.Writer, quiet bool) *CLIProgressReporter {
	return &CLIProgressReporter{
		quiet:     quiet,
		out:       out,
		startTime: time.Now(),
	}
}

func (c *CLIProgressReporter) OnProvisioned(python, dir string) {
	if c.quiet {
		return
	}
	fmt.Fprintf(c.out, "✓ Environment ready: %s\n", dir)
}

func (c *CLIProgressReporter) OnCaptured(objects int) {
	if c.quiet {
		return
	}
	fmt.Fprintf(c.out, "✓ Captured %s objects\n", formatNumber(objects))
}

func (c *CLIProgressReporter) OnExportsResolved(symbols int) {
	if c.quiet {
		return
	}
	fmt.Fprintf(c.out, "✓ Resolved %s export symbols\n", formatNumber(symbols))
}

func (c *CLIProgressReporter) OnWalked(records, exported int) {
	if c.quiet {
		return
	}
	fmt.Fprintf(c.out, "✓ Collected %s records (%s exported)\n", formatNumber(records), formatNumber(exported))
}

func (c *CLIProgressReporter) OnWritten(initOnlyPath, allPath string) {
	if c.quiet {
		return
	}
	fmt.Fprintf(c.out, "✓ Wrote %s\n", initOnlyPath)
	fmt.Fprintf(c.out, "✓ Wrote %s\n", allPath)
	fmt.Fprintf(c.out, "  Done in %.1fs\n", time.Since(c.startTime).Seconds())
}

func (c *CLIProgressReporter) OnMirrorStart(store string, total int) {
	if c.quiet {
		return
	}
	if c.mirrorBar != nil {
		_ = c.mirrorBar.Finish()
	}
	c.mirrored = 0
	c.mirrorBar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(c.out),
		progressbar.OptionSetDescription(fmt.Sprintf("Writing to %s", store)),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("items/s"),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(c.out)
		}),
	)
}

func (c *CLIProgressReporter) OnMirrorProgress(done int) {
	if c.quiet || c.mirrorBar == nil {
		return
	}
	if delta := done - c.mirrored; delta > 0 {
		_ = c.mirrorBar.Add(delta)
		c.mirrored = done
	}
}

func (c *CLIProgressReporter) OnMirrorComplete() {
	if c.quiet || c.mirrorBar == nil {
		return
	}
	_ = c.mirrorBar.Finish()
	c.mirrorBar = nil
}

// formatNumber inserts thousands separators.
func formatNumber(n int) string {
	if n < 1000 && n > -1000 {
		return fmt.Sprintf("%d", n)
	}

	str := fmt.Sprintf("%d", n)
	sign := ""
	if n < 0 {
		sign, str = "-", str[1:]
	}
	var result string
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result += ","
		}
		result += string(c)
	}
	return sign + result
}
