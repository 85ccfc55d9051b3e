package contract

import (
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

type CoverageReport struct {
	Total        int      `json:"total"`
	Covered      int      `json:"covered"`
	Percent      float64  `json:"percent"`
	CoveredSet   []string `json:"covered_set"`
	UncoveredSet []string `json:"uncovered_set"`
}

// ComputeCoverage compares the documented operations with covered, which
// maps method -> route path template -> true.
func ComputeCoverage(doc *openapi3.T, covered map[string]map[string]bool) CoverageReport {
	all := allOps(doc)
	cset := map[string]bool{}
	for method, paths := range covered {
		for path := range paths {
			cset[sig(strings.ToUpper(method), path)] = true
		}
	}

	rep := CoverageReport{Total: len(all)}
	for _, op := range all {
		if cset[op] {
			rep.Covered++
			rep.CoveredSet = append(rep.CoveredSet, op)
		} else {
			rep.UncoveredSet = append(rep.UncoveredSet, op)
		}
	}
	sort.Strings(rep.CoveredSet)
	sort.Strings(rep.UncoveredSet)
	rep.Percent = pct(rep.Covered, rep.Total)
	return rep
}

func allOps(doc *openapi3.T) []string {
	var out []string
	if doc == nil || doc.Paths == nil {
		return out
	}
	for p, pi := range doc.Paths.Map() {
		if pi == nil {
			continue
		}
		for method := range pi.Operations() {
			out = append(out, sig(strings.ToUpper(method), p))
		}
	}
	return out
}

func sig(method, path string) string { return fmt.Sprintf("%s %s", method, path) }

func pct(n, d int) float64 {
	if d == 0 {
		return 100.0
	}
	return float64(n) * 100.0 / float64(d)
}
