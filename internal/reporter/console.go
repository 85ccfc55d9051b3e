// Package reporter prints the run transcript: timestamped pass/fail lines,
// sub-check lines and the final summary. It writes console text only.
package reporter

import (
	"fmt"
	"io"
	"strings"
	"time"

	"pos-qa/internal/contract"
	"pos-qa/internal/model"
)

const rule = "============================================================"

type Console struct {
	w   io.Writer
	now func() time.Time
}

func New(w io.Writer) *Console {
	return &Console{w: w, now: time.Now}
}

// WithClock replaces the timestamp source.
func (c *Console) WithClock(now func() time.Time) *Console {
	c.now = now
	return c
}

// Writer is where request trace lines should go so they interleave with the
// reporter's own output.
func (c *Console) Writer() io.Writer { return c.w }

func (c *Console) Banner(title string) {
	fmt.Fprintln(c.w, rule)
	fmt.Fprintf(c.w, "🚀 %s\n", title)
	fmt.Fprintln(c.w, rule)
	fmt.Fprintln(c.w)
}

// Section announces a scenario.
func (c *Console) Section(title string) {
	fmt.Fprintln(c.w, title)
}

// Log prints one outcome line and, when details is non-empty, a details line.
func (c *Console) Log(name string, passed bool, details string) {
	fmt.Fprintf(c.w, "[%s] %s - %s\n", c.now().Format("15:04:05"), status(passed), name)
	if details != "" {
		fmt.Fprintf(c.w, "    Details: %s\n", details)
	}
	fmt.Fprintln(c.w)
}

// Check prints a sub-check line. Failed soft checks get a warning marker.
func (c *Console) Check(ch model.Check) {
	mark := "✅"
	switch {
	case ch.Passed:
	case ch.Soft:
		mark = "⚠️ "
	default:
		mark = "❌"
	}
	line := ch.Name
	if ch.Detail != "" {
		line += ": " + ch.Detail
	}
	fmt.Fprintf(c.w, "  %s %s\n", mark, line)
}

// Info prints an indented trace line such as "→ Pan stock: 4".
func (c *Console) Info(format string, a ...any) {
	fmt.Fprintf(c.w, "  → "+format+"\n", a...)
}

func (c *Console) Note(format string, a ...any) {
	fmt.Fprintf(c.w, "  ⚠️  "+format+"\n", a...)
}

// Summary prints the per-scenario table and the aggregate count.
func (c *Console) Summary(res *model.RunResult) {
	fmt.Fprintln(c.w, rule)
	fmt.Fprintln(c.w, "📋 TESTING SUMMARY")
	fmt.Fprintln(c.w, rule)
	for _, o := range res.Outcomes {
		fmt.Fprintf(c.w, "%s - %s\n", status(o.Passed), o.Name)
	}
	fmt.Fprintln(c.w)

	passed, total := res.PassCount(), len(res.Outcomes)
	fmt.Fprintf(c.w, "TOTAL RESULTS: %d/%d tests passed\n", passed, total)
	if passed == total {
		fmt.Fprintln(c.w, "🎉 ALL TESTS PASSED! Backend is working correctly.")
	} else {
		fmt.Fprintf(c.w, "⚠️  %d tests failed. Review the failures above.\n", total-passed)
	}
}

func (c *Console) Violations(vs []string) {
	if len(vs) == 0 {
		return
	}
	fmt.Fprintln(c.w)
	fmt.Fprintf(c.w, "Contract violations (%d):\n", len(vs))
	for _, v := range vs {
		fmt.Fprintf(c.w, "  - %s\n", v)
	}
}

func (c *Console) Coverage(rep contract.CoverageReport) {
	fmt.Fprintln(c.w)
	fmt.Fprintf(c.w, "Contract coverage: %d/%d operations (%.2f%%)\n", rep.Covered, rep.Total, rep.Percent)
	if len(rep.UncoveredSet) > 0 {
		fmt.Fprintf(c.w, "  not exercised: %s\n", strings.Join(rep.UncoveredSet, ", "))
	}
}

func (c *Console) Interrupted() {
	fmt.Fprintln(c.w, "\n\n⏹️  Testing interrupted by user")
}

func (c *Console) Crashed(err any) {
	fmt.Fprintf(c.w, "\n\n💥 Testing failed with error: %v\n", err)
}

func status(passed bool) string {
	if passed {
		return "✅ PASS"
	}
	return "❌ FAIL"
}
