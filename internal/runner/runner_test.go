package runner_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"pos-qa/internal/config"
	"pos-qa/internal/executor"
	"pos-qa/internal/reporter"
	"pos-qa/internal/runner"
	"pos-qa/internal/scenario"
)

func names(scs []scenario.Scenario) []string {
	out := make([]string, len(scs))
	for i, sc := range scs {
		out[i] = sc.Name
	}
	return out
}

func TestPlan_DefaultCatalogueKeepsDeclarationOrder(t *testing.T) {
	plan, err := runner.Plan(scenario.Default(), runner.Options{})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	want := []string{
		"Auth Register", "Auth Login", "Auth Current User", "Create Products", "List Products",
		"Update Product", "Create Sale", "Stock Update Verification", "Insufficient Stock Test",
		"List Sales", "Dashboard Stats", "Multi-Tenant Isolation", "Delete Product",
	}
	if diff := cmp.Diff(want, names(plan)); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}

	ext, err := runner.Plan(scenario.Extended(), runner.Options{})
	if err != nil {
		t.Fatalf("plan extended: %v", err)
	}
	if len(ext) != 16 || ext[15].Name != "Auth Logout" {
		t.Fatalf("extended plan = %v", names(ext))
	}
}

func TestPlan_DependenciesBeforeDependents(t *testing.T) {
	cat := []scenario.Scenario{
		{Name: "C", Requires: []string{"B"}},
		{Name: "A"},
		{Name: "B", Requires: []string{"A"}},
		{Name: "D"},
	}
	plan, err := runner.Plan(cat, runner.Options{})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if diff := cmp.Diff([]string{"A", "B", "C", "D"}, names(plan)); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestPlan_Errors(t *testing.T) {
	cases := []struct {
		name string
		cat  []scenario.Scenario
		msg  string
	}{
		{"unknown requirement", []scenario.Scenario{{Name: "A", Requires: []string{"Z"}}}, `unknown scenario "Z"`},
		{"cycle", []scenario.Scenario{
			{Name: "A", Requires: []string{"B"}},
			{Name: "B", Requires: []string{"A"}},
		}, "cycle"},
		{"duplicate", []scenario.Scenario{{Name: "A"}, {Name: "A"}}, "duplicate"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := runner.Plan(tc.cat, runner.Options{})
			if !errors.Is(err, runner.ErrPlan) || !strings.Contains(err.Error(), tc.msg) {
				t.Fatalf("err = %v", err)
			}
		})
	}
}

func TestPlan_TagFilters(t *testing.T) {
	plan, err := runner.Plan(scenario.Default(), runner.Options{IncludeTags: []string{"AUTH"}, ExcludeTags: []string{"tenancy"}})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	want := []string{"Auth Register", "Auth Login", "Auth Current User"}
	if diff := cmp.Diff(want, names(plan)); diff != "" {
		t.Fatalf("filtered plan (-want +got):\n%s", diff)
	}
}

func newContext(t *testing.T, out *bytes.Buffer) *scenario.Context {
	t.Helper()
	cl, err := executor.New("http://127.0.0.1:1/api", out, nil)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	return scenario.NewContext(config.Default(), cl, reporter.New(out))
}

func stub(name string, ok bool, ran *[]string, requires ...string) scenario.Scenario {
	return scenario.Scenario{
		Name:     name,
		Title:    "== " + name,
		Requires: requires,
		Run: func(ctx context.Context, c *scenario.Context) bool {
			*ran = append(*ran, name)
			return ok
		},
	}
}

func TestRun_NoEarlyAbort(t *testing.T) {
	var out bytes.Buffer
	var ran []string
	plan := []scenario.Scenario{
		stub("A", false, &ran),
		stub("B", true, &ran, "A"),
		stub("C", true, &ran),
	}
	res, err := runner.New(reporter.New(&out), nil, runner.Options{}).Run(context.Background(), newContext(t, &out), plan)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if diff := cmp.Diff([]string{"A", "B", "C"}, ran); diff != "" {
		t.Fatalf("ran (-want +got):\n%s", diff)
	}
	if res.Passed || res.PassCount() != 2 || len(res.Outcomes) != 3 {
		t.Fatalf("result = %+v", res)
	}
	if res.Outcomes[0].Name != "A" || res.Outcomes[0].Passed {
		t.Fatalf("first outcome = %+v", res.Outcomes[0])
	}
	s := out.String()
	if !strings.Contains(s, "precondition not met: A did not pass") {
		t.Fatalf("missing precondition note:\n%s", s)
	}
	if !strings.Contains(s, "TOTAL RESULTS: 2/3 tests passed") {
		t.Fatalf("missing summary:\n%s", s)
	}
}

func TestRun_FailFast(t *testing.T) {
	var out bytes.Buffer
	var ran []string
	plan := []scenario.Scenario{stub("A", true, &ran), stub("B", false, &ran), stub("C", true, &ran)}
	res, err := runner.New(reporter.New(&out), nil, runner.Options{FailFast: true}).Run(context.Background(), newContext(t, &out), plan)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if diff := cmp.Diff([]string{"A", "B"}, ran); diff != "" {
		t.Fatalf("ran (-want +got):\n%s", diff)
	}
	if res.Passed {
		t.Fatalf("expected failure")
	}
}

func TestRun_InterruptStopsBetweenScenarios(t *testing.T) {
	var out bytes.Buffer
	var ran []string
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	plan := []scenario.Scenario{
		{Name: "A", Run: func(context.Context, *scenario.Context) bool {
			ran = append(ran, "A")
			cancel()
			return true
		}},
		stub("B", true, &ran),
	}
	res, err := runner.New(reporter.New(&out), nil, runner.Options{}).Run(ctx, newContext(t, &out), plan)
	if !errors.Is(err, runner.ErrInterrupted) {
		t.Fatalf("err = %v", err)
	}
	if !res.Interrupted || res.Passed || len(res.Outcomes) != 1 {
		t.Fatalf("result = %+v", res)
	}
	if diff := cmp.Diff([]string{"A"}, ran); diff != "" {
		t.Fatalf("ran (-want +got):\n%s", diff)
	}
	if strings.Contains(out.String(), "TOTAL RESULTS") {
		t.Fatalf("summary printed after interrupt:\n%s", out.String())
	}
}

func TestRun_FilteredRequirementIsNotReportedAsFailed(t *testing.T) {
	var out bytes.Buffer
	var ran []string
	cat := []scenario.Scenario{
		{Name: "A", Tags: []string{"setup"}, Run: func(context.Context, *scenario.Context) bool { return true }},
		stub("B", true, &ran, "A"),
	}
	cat[1].Tags = []string{"main"}

	plan, err := runner.Plan(cat, runner.Options{IncludeTags: []string{"main"}})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	res, err := runner.New(reporter.New(&out), nil, runner.Options{}).Run(context.Background(), newContext(t, &out), plan)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Passed || len(res.Outcomes) != 1 {
		t.Fatalf("result = %+v", res)
	}
	s := out.String()
	if strings.Contains(s, "precondition not met") {
		t.Fatalf("filtered requirement reported as failed:\n%s", s)
	}
	if !strings.Contains(s, "precondition not run: A is not in this plan") {
		t.Fatalf("missing filtered-requirement note:\n%s", s)
	}
}
