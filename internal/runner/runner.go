// Package runner orders the scenario catalogue by its declared
// preconditions and runs it sequentially against one shared context.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"pos-qa/internal/model"
	"pos-qa/internal/reporter"
	"pos-qa/internal/scenario"
)

var (
	ErrPlan        = errors.New("plan error")
	ErrInterrupted = errors.New("interrupted")
)

type Options struct {
	FailFast    bool
	IncludeTags []string // OR semantics
	ExcludeTags []string // OR semantics
}

// Plan filters the catalogue by tags and orders it so every scenario comes
// after the scenarios it requires. Ties keep declaration order, so a
// catalogue declared in dependency order runs unchanged. A requirement that
// names no scenario, or a cycle, is an ErrPlan.
func Plan(catalogue []scenario.Scenario, opts Options) ([]scenario.Scenario, error) {
	known := map[string]bool{}
	for _, sc := range catalogue {
		if known[sc.Name] {
			return nil, fmt.Errorf("%w: duplicate scenario %q", ErrPlan, sc.Name)
		}
		known[sc.Name] = true
	}
	for _, sc := range catalogue {
		for _, req := range sc.Requires {
			if !known[req] {
				return nil, fmt.Errorf("%w: %q requires unknown scenario %q", ErrPlan, sc.Name, req)
			}
		}
	}

	in := filterByTags(catalogue, opts.IncludeTags, opts.ExcludeTags)
	index := map[string]int{}
	for i, sc := range in {
		index[sc.Name] = i
	}

	// Kahn's algorithm, always taking the earliest declared ready scenario.
	indeg := make([]int, len(in))
	dependents := make([][]int, len(in))
	for i, sc := range in {
		for _, req := range sc.Requires {
			j, ok := index[req]
			if !ok {
				continue // filtered out
			}
			indeg[i]++
			dependents[j] = append(dependents[j], i)
		}
	}
	done := make([]bool, len(in))
	out := make([]scenario.Scenario, 0, len(in))
	for len(out) < len(in) {
		next := -1
		for i := range in {
			if !done[i] && indeg[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			var stuck []string
			for i, sc := range in {
				if !done[i] {
					stuck = append(stuck, sc.Name)
				}
			}
			return nil, fmt.Errorf("%w: requirement cycle among %s", ErrPlan, strings.Join(stuck, ", "))
		}
		done[next] = true
		out = append(out, in[next])
		for _, d := range dependents[next] {
			indeg[d]--
		}
	}
	return out, nil
}

func filterByTags(in []scenario.Scenario, include, exclude []string) []scenario.Scenario {
	if len(include) == 0 && len(exclude) == 0 {
		return in
	}
	toSet := func(ss []string) map[string]bool {
		m := map[string]bool{}
		for _, s := range ss {
			m[strings.ToLower(s)] = true
		}
		return m
	}
	inc, exc := toSet(include), toSet(exclude)
	hasAny := func(tags []string, m map[string]bool) bool {
		for _, t := range tags {
			if m[strings.ToLower(t)] {
				return true
			}
		}
		return false
	}
	out := make([]scenario.Scenario, 0, len(in))
	for _, sc := range in {
		if len(inc) > 0 && !hasAny(sc.Tags, inc) {
			continue
		}
		if len(exc) > 0 && hasAny(sc.Tags, exc) {
			continue
		}
		out = append(out, sc)
	}
	return out
}

type Runner struct {
	out  *reporter.Console
	log  *slog.Logger
	opts Options
}

func New(out *reporter.Console, logger *slog.Logger, opts Options) *Runner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{out: out, log: logger, opts: opts}
}

// Run executes plan in order. Every scenario runs even if one it requires
// failed, unless FailFast is set. Cancelling ctx stops the run between
// scenarios with ErrInterrupted; the partial result is still returned.
func (r *Runner) Run(ctx context.Context, c *scenario.Context, plan []scenario.Scenario) (*model.RunResult, error) {
	start := time.Now()
	res := &model.RunResult{Outcomes: make([]model.Outcome, 0, len(plan))}
	passed := map[string]bool{}

	r.out.Banner("STARTING COMPREHENSIVE POS BACKEND TESTING")

	finish := func() {
		res.Violations = c.Client.Violations()
		res.DurationMs = float64(time.Since(start).Microseconds()) / 1000.0
		res.Passed = !res.Interrupted && res.PassCount() == len(res.Outcomes)
	}

	for _, sc := range plan {
		if ctx.Err() != nil {
			res.Interrupted = true
			finish()
			return res, ErrInterrupted
		}

		r.out.Section(sc.Title)
		for _, req := range sc.Requires {
			ok, ran := passed[req]
			switch {
			case !ran:
				r.out.Note("precondition not run: %s is not in this plan", req)
			case !ok:
				r.out.Note("precondition not met: %s did not pass", req)
			}
		}

		c.Begin()
		before := len(c.Client.Calls())
		t0 := time.Now()
		ok := sc.Run(ctx, c)
		calls := c.Client.Calls()[before:]

		r.out.Log(sc.Name, ok, c.Details())
		r.log.Debug("scenario finished", "name", sc.Name, "passed", ok, "calls", len(calls))

		passed[sc.Name] = ok
		res.Outcomes = append(res.Outcomes, model.Outcome{
			Name:       sc.Name,
			Passed:     ok,
			Details:    c.Details(),
			Checks:     c.Checks(),
			Calls:      append([]model.Call(nil), calls...),
			DurationMs: float64(time.Since(t0).Microseconds()) / 1000.0,
		})

		if !ok && r.opts.FailFast {
			r.log.Info("fail-fast: stopping after first failure", "scenario", sc.Name)
			break
		}
	}

	finish()
	r.out.Summary(res)
	return res, nil
}
