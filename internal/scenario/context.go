package scenario

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"pos-qa/internal/config"
	"pos-qa/internal/executor"
	"pos-qa/internal/model"
	"pos-qa/internal/reporter"
)

// Context is the fixture state shared by every scenario of one run. Fields
// are only appended to or replaced wholesale; a product snapshot is never
// refreshed except by an explicit re-fetch.
type Context struct {
	Config *config.Config
	Client *executor.Client
	Out    *reporter.Console

	AuthCookie string
	UserID     model.ID
	Products   []model.Product
	SaleID     model.ID

	// Updated holds the products a successful update touched, so their
	// cached snapshots are known to be stale.
	Updated map[model.ID]bool
	// Sold is the quantity per product sold by the create-sale scenario.
	Sold map[model.ID]int

	checks  []model.Check
	details string
}

func NewContext(cfg *config.Config, client *executor.Client, out *reporter.Console) *Context {
	return &Context{
		Config:  cfg,
		Client:  client,
		Out:     out,
		Updated: map[model.ID]bool{},
		Sold:    map[model.ID]int{},
	}
}

// Begin clears the per-scenario check log and details.
func (c *Context) Begin() {
	c.checks = nil
	c.details = ""
}

// Checks returns the sub-checks recorded since Begin.
func (c *Context) Checks() []model.Check { return c.checks }

// Details returns the detail text set by the running scenario.
func (c *Context) Details() string { return c.details }

func (c *Context) detailf(format string, a ...any) {
	c.details = fmt.Sprintf(format, a...)
}

// fail sets the details and reports failure, for early returns.
func (c *Context) fail(format string, a ...any) bool {
	c.detailf(format, a...)
	return false
}

// hard records a sub-check that decides the scenario.
func (c *Context) hard(name string, ok bool, detail string) bool {
	ch := model.Check{Name: name, Passed: ok}
	if !ok {
		ch.Detail = detail
	}
	c.checks = append(c.checks, ch)
	c.Out.Check(ch)
	return ok
}

// soft records a lenient sub-check: a failure is printed but the result is
// always true. In strict mode it behaves like hard.
func (c *Context) soft(name string, ok bool, detail string) bool {
	if c.Config.Strict {
		return c.hard(name, ok, detail)
	}
	ch := model.Check{Name: name, Passed: ok, Soft: true}
	if !ok {
		ch.Detail = detail
	}
	c.checks = append(c.checks, ch)
	c.Out.Check(ch)
	return true
}

// refresh replaces tracked snapshots with their counterparts in fresh,
// matched by ID. Tracking order is kept and products the run did not
// create are ignored. A refreshed snapshot is no longer stale.
func (c *Context) refresh(fresh []model.Product) {
	for i, p := range c.Products {
		cur, ok := findByID(fresh, p.ID)
		if !ok {
			continue
		}
		c.Products[i] = cur
		delete(c.Updated, p.ID)
	}
}

// product returns the first tracked snapshot whose name contains match,
// ignoring case.
func (c *Context) product(match string) (model.Product, bool) {
	return findByName(c.Products, match)
}

func findByName(ps []model.Product, match string) (model.Product, bool) {
	for _, p := range ps {
		if containsFold(p.Name, match) {
			return p, true
		}
	}
	return model.Product{}, false
}

func findByID(ps []model.Product, id model.ID) (model.Product, bool) {
	for _, p := range ps {
		if p.ID == id {
			return p, true
		}
	}
	return model.Product{}, false
}

var fold = cases.Fold()

func containsFold(s, sub string) bool {
	return strings.Contains(fold.String(s), fold.String(sub))
}

// approx reports whether two amounts agree within one cent.
func approx(a, b float64) bool {
	d := a - b
	return d < 0.01 && d > -0.01
}

func gotStatus(st int) string { return fmt.Sprintf("got status %d", st) }
