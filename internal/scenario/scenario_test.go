package scenario_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"pos-qa/internal/config"
	"pos-qa/internal/contract"
	"pos-qa/internal/executor"
	"pos-qa/internal/model"
	"pos-qa/internal/postwin"
	"pos-qa/internal/reporter"
	"pos-qa/internal/runner"
	"pos-qa/internal/scenario"
)

func newTwin(t *testing.T) *httptest.Server {
	t.Helper()
	st, err := postwin.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	srv := httptest.NewServer(postwin.New(st, postwin.Config{BcryptCost: bcrypt.MinCost}, nil))
	t.Cleanup(srv.Close)
	return srv
}

func newContext(t *testing.T, srv *httptest.Server, cfg *config.Config, out *bytes.Buffer) *scenario.Context {
	t.Helper()
	cfg.BaseURL = srv.URL + "/api"
	cl, err := executor.New(cfg.BaseURL, out, nil)
	require.NoError(t, err)
	return scenario.NewContext(cfg, cl, reporter.New(out))
}

func runCatalogue(t *testing.T, c *scenario.Context, cat []scenario.Scenario) *model.RunResult {
	t.Helper()
	plan, err := runner.Plan(cat, runner.Options{})
	require.NoError(t, err)
	res, err := runner.New(c.Out, nil, runner.Options{}).Run(context.Background(), c, plan)
	require.NoError(t, err)

	got := make([]string, 0, len(res.Outcomes))
	for _, o := range res.Outcomes {
		got = append(got, o.Name)
	}
	want := make([]string, 0, len(plan))
	for _, sc := range plan {
		want = append(want, sc.Name)
	}
	require.Equal(t, want, got)
	return res
}

func stockByName(t *testing.T, c *scenario.Context) map[string]int {
	t.Helper()
	res, status := c.Client.Get(context.Background(), "/products", http.StatusOK)
	require.NotNil(t, res, "status %d", status)
	var ps []model.Product
	require.NoError(t, res.Decode(&ps))
	out := map[string]int{}
	for _, p := range ps {
		out[p.Name] = p.StockQuantity
	}
	return out
}

func assertAllPassed(t *testing.T, res *model.RunResult, out string) {
	t.Helper()
	for _, o := range res.Outcomes {
		assert.True(t, o.Passed, "%s failed: %s", o.Name, o.Details)
	}
	require.True(t, res.Passed, out)
	assert.Contains(t, out, "ALL TESTS PASSED")
}

func TestDefaultRun_AgainstTwin(t *testing.T) {
	srv := newTwin(t)
	var out bytes.Buffer
	c := newContext(t, srv, config.Default(), &out)

	res := runCatalogue(t, c, scenario.Default())
	assertAllPassed(t, res, out.String())
	assert.Len(t, res.Outcomes, 13)

	stock := stockByName(t, c)
	assert.Equal(t, 43, stock["Coca Cola 2L"])
	assert.Equal(t, 4, stock["Pan"])
	assert.NotContains(t, stock, "Arroz")

	// The lenient total check compares against the pre-update price.
	var sale model.Outcome
	for _, o := range res.Outcomes {
		if o.Name == "Create Sale" {
			sale = o
		}
	}
	assert.Equal(t, "Sale ID: "+c.SaleID.String()+", Total: $44", sale.Details)
	var soft model.Check
	for _, ch := range sale.Checks {
		if ch.Name == "Total calculation correct" {
			soft = ch
		}
	}
	assert.True(t, soft.Soft)
	assert.False(t, soft.Passed)
	assert.Equal(t, "expected 38, got 44", soft.Detail)
}

func TestExtendedRun_AgainstTwinWithContract(t *testing.T) {
	srv := newTwin(t)
	var out bytes.Buffer
	c := newContext(t, srv, config.Default(), &out)
	v, err := contract.LoadDefault()
	require.NoError(t, err)
	c.Client.WithContract(v)

	res := runCatalogue(t, c, scenario.Extended())
	assertAllPassed(t, res, out.String())
	assert.Len(t, res.Outcomes, 16)
	assert.Empty(t, res.Violations)

	cov := contract.ComputeCoverage(v.Doc(), c.Client.Covered())
	assert.Equal(t, cov.Total, cov.Covered, "not exercised: %v", cov.UncoveredSet)

	// Every session swap was undone, so the primary tenant is still signed in.
	me, status := c.Client.Get(context.Background(), "/auth/me", http.StatusOK)
	require.NotNil(t, me, "status %d", status)
	var body struct {
		User model.User `json:"user"`
	}
	require.NoError(t, me.Decode(&body))
	assert.Equal(t, c.Config.Primary.Email, body.User.Email)
}

func TestStrictRun_UsesFreshPrices(t *testing.T) {
	srv := newTwin(t)
	var out bytes.Buffer
	cfg := config.Default()
	cfg.Strict = true
	c := newContext(t, srv, cfg, &out)

	res := runCatalogue(t, c, scenario.Default())
	assertAllPassed(t, res, out.String())
	assert.Contains(t, out.String(), "✅ Total calculation correct")
	assert.Contains(t, out.String(), "Coca Cola 2L stock: 43 (expected 43)")
	stock := stockByName(t, c)
	assert.Equal(t, 43, stock["Coca Cola 2L"])
	assert.Equal(t, 4, stock["Pan"])
	assert.NotContains(t, stock, "Arroz")

	names := make([]string, 0, len(c.Products))
	for _, p := range c.Products {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"Coca Cola 2L", "Pan", "Leche", "Arroz"}, names)
}

func TestCreateSale_StrictRefreshKeepsTrackedOrder(t *testing.T) {
	var deleted string
	srv := newStub(t, map[string]http.HandlerFunc{
		"GET /api/products": productsHandler(
			model.Product{ID: "p9", Name: "Pan de otro", SalePrice: 1, StockQuantity: 99},
			model.Product{ID: "p3", Name: "Arroz", SalePrice: 25, StockQuantity: 30},
			model.Product{ID: "p2", Name: "Pan", SalePrice: 8, StockQuantity: 5},
			model.Product{ID: "p1", Name: "Coca Cola 2L", SalePrice: 18, StockQuantity: 45},
		),
		"POST /api/sales": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"id": "s1", "items": []any{}, "total_amount": 44, "profit": 0, "change_given": 6,
			})
		},
		"DELETE /api/products/{id}": func(w http.ResponseWriter, r *http.Request) {
			deleted = r.PathValue("id")
			writeJSON(w, http.StatusOK, map[string]any{"message": "ok"})
		},
	})
	var out bytes.Buffer
	cfg := config.Default()
	cfg.Strict = true
	c := newContext(t, srv, cfg, &out)
	c.Products = []model.Product{
		{ID: "p1", Name: "Coca Cola", SalePrice: 15, StockQuantity: 50},
		{ID: "p2", Name: "Pan", SalePrice: 8, StockQuantity: 5},
		{ID: "p3", Name: "Arroz", SalePrice: 25, StockQuantity: 30},
	}
	c.Updated["p1"] = true
	ctx := context.Background()

	require.True(t, scenario.CreateSale(ctx, c), c.Details())
	require.Len(t, c.Products, 3)
	assert.Equal(t, model.Product{ID: "p1", Name: "Coca Cola 2L", SalePrice: 18, StockQuantity: 45}, c.Products[0])
	assert.Equal(t, model.ID("p3"), c.Products[2].ID)
	assert.Empty(t, c.Updated)
	assert.Equal(t, map[model.ID]int{"p1": 2, "p2": 1}, c.Sold)

	require.True(t, scenario.DeleteProduct(ctx, c), c.Details())
	assert.Equal(t, "p3", deleted)
}

// ---- stub backends for failure paths ----

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newStub(t *testing.T, routes map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for pattern, h := range routes {
		mux.HandleFunc(pattern, h)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func productsHandler(ps ...model.Product) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, ps)
	}
}

func TestRegister_FailurePaths(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		strict  bool
		passed  bool
		details string
	}{
		{"status mismatch", http.StatusBadRequest, `{"error":"El usuario ya existe"}`, false, false, "Status: 400"},
		{"body not an object", http.StatusOK, `["u1"]`, false, false, "Undecodable user: "},
		{"missing id lenient", http.StatusOK, `{"user":{"email":"a@b.c"}}`, false, true, "User ID: "},
		{"missing id strict", http.StatusOK, `{"user":{"email":"a@b.c"}}`, true, false, "Registration response has no user id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newStub(t, map[string]http.HandlerFunc{
				"POST /api/auth/register": func(w http.ResponseWriter, r *http.Request) {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(tc.status)
					_, _ = w.Write([]byte(tc.body))
				},
			})
			var out bytes.Buffer
			cfg := config.Default()
			cfg.Strict = tc.strict
			c := newContext(t, srv, cfg, &out)

			assert.Equal(t, tc.passed, scenario.Register(context.Background(), c))
			assert.True(t, strings.HasPrefix(c.Details(), tc.details), "details %q", c.Details())
		})
	}
}

func TestRegister_RecordsUserID(t *testing.T) {
	srv := newStub(t, map[string]http.HandlerFunc{
		"POST /api/auth/register": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"user": map[string]any{"id": 42, "email": "a@b.c"}})
		},
	})
	var out bytes.Buffer
	c := newContext(t, srv, config.Default(), &out)

	assert.True(t, scenario.Register(context.Background(), c))
	assert.Equal(t, model.ID("42"), c.UserID)
	assert.Equal(t, "User ID: 42", c.Details())
}

func TestLogin_FailsWithoutCookie(t *testing.T) {
	srv := newStub(t, map[string]http.HandlerFunc{
		"POST /api/auth/login": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"user": map[string]any{"id": "u1"}})
		},
	})
	var out bytes.Buffer
	c := newContext(t, srv, config.Default(), &out)

	assert.False(t, scenario.Login(context.Background(), c))
	assert.Equal(t, "Auth token cookie not set", c.Details())
	require.Len(t, c.Checks(), 1)
	assert.False(t, c.Checks()[0].Passed)
}

func TestCurrentUser_EmailMismatch(t *testing.T) {
	srv := newStub(t, map[string]http.HandlerFunc{
		"GET /api/auth/me": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"user": map[string]any{"id": 7, "email": "someone@else.com"}})
		},
	})
	var out bytes.Buffer
	c := newContext(t, srv, config.Default(), &out)

	assert.False(t, scenario.CurrentUser(context.Background(), c))
	assert.Equal(t, "User data mismatch", c.Details())
}

func TestRejectOversell_FailsWhenAccepted(t *testing.T) {
	pan := model.Product{ID: "p2", Name: "Pan", SalePrice: 8, StockQuantity: 4}
	var asked int
	srv := newStub(t, map[string]http.HandlerFunc{
		"GET /api/products": productsHandler(pan),
		"POST /api/sales": func(w http.ResponseWriter, r *http.Request) {
			var in struct {
				Items []struct {
					Quantity int `json:"quantity"`
				} `json:"items"`
			}
			_ = json.NewDecoder(r.Body).Decode(&in)
			if len(in.Items) == 1 {
				asked = in.Items[0].Quantity
			}
			writeJSON(w, http.StatusOK, map[string]any{"id": "s9"})
		},
	})
	var out bytes.Buffer
	c := newContext(t, srv, config.Default(), &out)
	c.Products = []model.Product{{ID: "p2", Name: "Pan", SalePrice: 8, StockQuantity: 5}}

	assert.False(t, scenario.RejectOversell(context.Background(), c))
	assert.Equal(t, "Expected error 400, got 200", c.Details())
	assert.Equal(t, 10, asked)
	assert.Contains(t, out.String(), "Expected 400, got 200")
}

func TestRejectOversell_RaisesQuantityAboveCurrentStock(t *testing.T) {
	pan := model.Product{ID: "p2", Name: "Pan", SalePrice: 8, StockQuantity: 25}
	var asked int
	srv := newStub(t, map[string]http.HandlerFunc{
		"GET /api/products": productsHandler(pan),
		"POST /api/sales": func(w http.ResponseWriter, r *http.Request) {
			var in struct {
				Items []struct {
					Quantity int `json:"quantity"`
				} `json:"items"`
			}
			_ = json.NewDecoder(r.Body).Decode(&in)
			asked = in.Items[0].Quantity
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Stock insuficiente para Pan. Disponible: 25"})
		},
	})
	var out bytes.Buffer
	c := newContext(t, srv, config.Default(), &out)
	c.Products = []model.Product{{ID: "p2", Name: "Pan", SalePrice: 8, StockQuantity: 5}}

	assert.True(t, scenario.RejectOversell(context.Background(), c), c.Details())
	assert.Equal(t, 26, asked)
}

func TestTenantIsolation_DetectsLeakAndRestoresSession(t *testing.T) {
	login := func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Email string `json:"email"`
		}
		_ = json.NewDecoder(r.Body).Decode(&in)
		http.SetCookie(w, &http.Cookie{Name: "auth_token", Value: "tok-" + strings.Split(in.Email, "@")[0], Path: "/"})
		writeJSON(w, http.StatusOK, map[string]any{"user": map[string]any{"id": "u", "email": in.Email}})
	}
	srv := newStub(t, map[string]http.HandlerFunc{
		"POST /api/auth/register": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"user": map[string]any{"id": "u2"}})
		},
		"POST /api/auth/login": login,
		"GET /api/products":    productsHandler(model.Product{ID: "p1", Name: "Coca Cola", SalePrice: 15}),
	})
	var out bytes.Buffer
	c := newContext(t, srv, config.Default(), &out)
	ctx := context.Background()

	res, _ := c.Client.Post(ctx, "/auth/login", map[string]any{"email": c.Config.Primary.Email}, http.StatusOK)
	require.NotNil(t, res)
	primary, ok := c.Client.Cookie("auth_token")
	require.True(t, ok)

	assert.False(t, scenario.TenantIsolation(ctx, c))
	assert.Equal(t, "Data leakage between tenants", c.Details())

	now, ok := c.Client.Cookie("auth_token")
	require.True(t, ok)
	assert.Equal(t, primary, now)
}

func TestCreateSale_TotalMismatch(t *testing.T) {
	coca := model.Product{ID: "p1", Name: "Coca Cola", SalePrice: 15, StockQuantity: 50}
	pan := model.Product{ID: "p2", Name: "Pan", SalePrice: 8, StockQuantity: 5}
	routes := map[string]http.HandlerFunc{
		"GET /api/products": productsHandler(coca, pan),
		"POST /api/sales": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"id": "s1", "items": []any{}, "total_amount": 999, "profit": 0, "change_given": 0,
			})
		},
	}

	t.Run("lenient", func(t *testing.T) {
		var out bytes.Buffer
		c := newContext(t, newStub(t, routes), config.Default(), &out)
		c.Products = []model.Product{coca, pan}

		assert.True(t, scenario.CreateSale(context.Background(), c))
		assert.Equal(t, model.ID("s1"), c.SaleID)
		assert.Equal(t, map[model.ID]int{"p1": 2, "p2": 1}, c.Sold)
		assert.Contains(t, out.String(), "⚠️  Total calculation correct: expected 38, got 999")
	})

	t.Run("strict", func(t *testing.T) {
		var out bytes.Buffer
		cfg := config.Default()
		cfg.Strict = true
		c := newContext(t, newStub(t, routes), cfg, &out)

		assert.False(t, scenario.CreateSale(context.Background(), c))
		assert.Equal(t, "Total mismatch: expected 38, got 999", c.Details())
	})
}

func TestVerifyStock_UpdatedProductUsesUpperBound(t *testing.T) {
	srv := newStub(t, map[string]http.HandlerFunc{
		"GET /api/products": productsHandler(
			model.Product{ID: "p1", Name: "Coca Cola 2L", StockQuantity: 43},
			model.Product{ID: "p2", Name: "Pan", StockQuantity: 4},
		),
	})
	setup := func(updated bool) *scenario.Context {
		var out bytes.Buffer
		c := newContext(t, srv, config.Default(), &out)
		c.Products = []model.Product{
			{ID: "p1", Name: "Coca Cola", StockQuantity: 50},
			{ID: "p2", Name: "Pan", StockQuantity: 5},
		}
		c.Sold = map[model.ID]int{"p1": 2, "p2": 1}
		if updated {
			c.Updated["p1"] = true
		}
		return c
	}

	c := setup(true)
	assert.True(t, scenario.VerifyStock(context.Background(), c), c.Details())

	c = setup(false)
	assert.False(t, scenario.VerifyStock(context.Background(), c))
	assert.Equal(t, "Stock not updated correctly", c.Details())
}

func TestDashboardStats_NoSalesTodayIsSoft(t *testing.T) {
	srv := newStub(t, map[string]http.HandlerFunc{
		"GET /api/dashboard/stats": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"today":     map[string]any{"revenue": 0, "profit": 0, "sales_count": 0},
				"month":     map[string]any{"revenue": 0, "profit": 0},
				"inventory": map[string]any{"total_products": 3, "low_stock_count": 1},
			})
		},
	})
	var out bytes.Buffer
	c := newContext(t, srv, config.Default(), &out)
	assert.True(t, scenario.DashboardStats(context.Background(), c))
	assert.Equal(t, "Dashboard working, shows products but no sales today", c.Details())

	cfg := config.Default()
	cfg.Strict = true
	c = newContext(t, srv, cfg, &out)
	assert.False(t, scenario.DashboardStats(context.Background(), c))
}
