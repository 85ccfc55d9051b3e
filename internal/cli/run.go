package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pos-qa/internal/config"
	"pos-qa/internal/contract"
	"pos-qa/internal/executor"
	"pos-qa/internal/reporter"
	"pos-qa/internal/runner"
	"pos-qa/internal/scenario"
)

// RunOptions holds the flags of the run command.
type RunOptions struct {
	*RootOptions
	ConfigPath     string
	EnvPaths       string
	BaseURL        string
	Strict         bool
	Extended       bool
	UniqueEmails   bool
	FailFast       bool
	IncludeTags    string
	ExcludeTags    string
	OpenAPIPath    string
	Contract       bool
	ContractStrict bool
	CoverageMin    float64
}

func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the scenario catalogue against a backend",
		Long: `Run the scenario catalogue in dependency order against one backend,
sharing a single cookie session, and print a pass/fail summary.

Exit codes:
  0 - all scenarios passed
  1 - anything else: a scenario failed, the run was interrupted, a gate
      failed, or the flags or config were invalid

Examples:
  pos-qa run
  pos-qa run --base-url http://localhost:3000/api --unique-emails
  pos-qa run --config pos.yaml --env env/ci.json --extended --contract`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.ConfigPath, "config", "", "YAML config with tenants and fixtures (defaults built in)")
	f.StringVar(&opts.EnvPaths, "env", "", "comma-separated JSON env files (e.g. env/dev.json,env/ci.json)")
	f.StringVar(&opts.BaseURL, "base-url", "", "backend API base URL (overrides config and env)")
	f.BoolVar(&opts.Strict, "strict", false, "treat lenient checks as failures and re-fetch prices before the sale")
	f.BoolVar(&opts.Extended, "extended", false, "also run the logout, anonymous-access and cash register scenarios")
	f.BoolVar(&opts.UniqueEmails, "unique-emails", false, "suffix tenant emails so repeated runs do not collide")
	f.BoolVar(&opts.FailFast, "fail-fast", false, "stop after the first failing scenario")
	f.StringVar(&opts.IncludeTags, "include-tags", "", "comma-separated tags to include (OR semantics)")
	f.StringVar(&opts.ExcludeTags, "exclude-tags", "", "comma-separated tags to exclude (OR semantics)")
	f.StringVar(&opts.OpenAPIPath, "openapi", "", "OpenAPI file to validate responses against")
	f.BoolVar(&opts.Contract, "contract", false, "validate responses against the built-in POS contract")
	f.BoolVar(&opts.ContractStrict, "contract-strict", false, "fail the run on any contract violation")
	f.Float64Var(&opts.CoverageMin, "coverage-min", -1, "fail if contract coverage percent is below this")

	return cmd
}

func (o *RunOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if o.ConfigPath != "" {
		var err error
		if cfg, err = config.Load(o.ConfigPath); err != nil {
			return nil, err
		}
	}
	if o.EnvPaths != "" {
		vars, err := config.LoadEnvFiles(splitCSV(o.EnvPaths))
		if err != nil {
			return nil, err
		}
		if err := cfg.ApplyEnv(vars); err != nil {
			return nil, err
		}
	}
	f := cmd.Flags()
	if f.Changed("base-url") {
		cfg.BaseURL = o.BaseURL
	}
	if f.Changed("strict") {
		cfg.Strict = o.Strict
	}
	if f.Changed("extended") {
		cfg.Extended = o.Extended
	}
	if f.Changed("unique-emails") {
		cfg.UniqueEmails = o.UniqueEmails
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.UniqueEmails {
		cfg.MakeEmailsUnique()
	}
	return cfg, nil
}

func (o *RunOptions) loadContract() (*contract.Validator, error) {
	switch {
	case o.OpenAPIPath != "":
		return contract.LoadFromFile(o.OpenAPIPath)
	case o.Contract || o.ContractStrict || o.CoverageMin >= 0:
		return contract.LoadDefault()
	}
	return nil, nil
}

func runScenarios(cmd *cobra.Command, opts *RunOptions) (err error) {
	stdout := cmd.OutOrStdout()
	logger := opts.logger(cmd.ErrOrStderr())
	out := reporter.New(stdout)

	cfg, err := opts.loadConfig(cmd)
	if err != nil {
		return UsageError("config", err)
	}
	v, err := opts.loadContract()
	if err != nil {
		return UsageError("openapi load", err)
	}

	plan, err := runner.Plan(scenario.Catalogue(cfg.Extended), runner.Options{
		IncludeTags: splitCSV(opts.IncludeTags),
		ExcludeTags: splitCSV(opts.ExcludeTags),
	})
	if err != nil {
		return WrapExitError(ExitFailure, "plan", err)
	}
	if len(plan) == 0 {
		return UsageError("no scenarios left after tag filtering", nil)
	}

	client, err := executor.New(cfg.BaseURL, stdout, logger)
	if err != nil {
		return UsageError("client", err)
	}
	client.WithTimeout(cfg.RequestTimeout)
	if v != nil {
		client.WithContract(v)
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	defer func() {
		if r := recover(); r != nil {
			out.Crashed(r)
			logger.Error("run crashed", "panic", r)
			err = NewExitError(ExitFailure, "run crashed")
		}
	}()

	logger.Info("starting run", "base_url", cfg.BaseURL, "scenarios", len(plan), "strict", cfg.Strict)
	sc := scenario.NewContext(cfg, client, out)
	res, err := runner.New(out, logger, runner.Options{FailFast: opts.FailFast}).Run(ctx, sc, plan)
	if errors.Is(err, runner.ErrInterrupted) {
		out.Interrupted()
		return NewExitError(ExitFailure, "interrupted")
	}
	if err != nil {
		return WrapExitError(ExitFailure, "run", err)
	}

	passed := res.Passed
	var gate string
	out.Violations(res.Violations)
	if v != nil {
		rep := contract.ComputeCoverage(v.Doc(), client.Covered())
		out.Coverage(rep)
		if opts.ContractStrict && len(res.Violations) > 0 {
			passed = false
			gate = fmt.Sprintf("contract gate failed: %d violations", len(res.Violations))
		}
		if opts.CoverageMin >= 0 && rep.Percent+1e-9 < opts.CoverageMin {
			passed = false
			gate = fmt.Sprintf("coverage gate failed: got %.2f%%, need >= %.2f%%", rep.Percent, opts.CoverageMin)
		}
	}

	if passed {
		fmt.Fprintln(stdout, "PASS")
		return nil
	}
	fmt.Fprintln(stdout, "FAIL")
	if gate != "" {
		return NewExitError(ExitFailure, gate)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("%d/%d scenarios failed", len(res.Outcomes)-res.PassCount(), len(res.Outcomes)))
}
