// Package scenario holds the POS test scenarios and the fixture context they
// share. Each scenario issues its requests through the context's client,
// derives its expectations from earlier fixtures and returns one verdict.
package scenario

import "context"

// Scenario is one self-contained check of a backend capability. Requires
// names the scenarios whose side effects it depends on.
type Scenario struct {
	Name     string
	Title    string
	Tags     []string
	Requires []string
	Run      func(ctx context.Context, c *Context) bool
}

// Default returns the core catalogue in declaration order.
func Default() []Scenario {
	return []Scenario{
		{Name: "Auth Register", Title: "🔐 Testing Authentication - Register", Tags: []string{"auth"}, Run: Register},
		{Name: "Auth Login", Title: "🔐 Testing Authentication - Login", Tags: []string{"auth"},
			Requires: []string{"Auth Register"}, Run: Login},
		{Name: "Auth Current User", Title: "🔐 Testing Authentication - Current User", Tags: []string{"auth"},
			Requires: []string{"Auth Login"}, Run: CurrentUser},
		{Name: "Create Products", Title: "📦 Testing Products - Create", Tags: []string{"products"},
			Requires: []string{"Auth Login"}, Run: CreateProducts},
		{Name: "List Products", Title: "📦 Testing Products - List & Search", Tags: []string{"products"},
			Requires: []string{"Create Products"}, Run: ListProducts},
		{Name: "Update Product", Title: "📦 Testing Products - Update", Tags: []string{"products"},
			Requires: []string{"Create Products"}, Run: UpdateProduct},
		{Name: "Create Sale", Title: "💰 Testing Sales - Create (CORE FEATURE)", Tags: []string{"sales", "core"},
			Requires: []string{"Create Products"}, Run: CreateSale},
		{Name: "Stock Update Verification", Title: "📦 Testing Stock Update After Sale", Tags: []string{"sales", "core"},
			Requires: []string{"Create Sale"}, Run: VerifyStock},
		{Name: "Insufficient Stock Test", Title: "💰 Testing Sales - Insufficient Stock Validation", Tags: []string{"sales", "core"},
			Requires: []string{"Create Sale"}, Run: RejectOversell},
		{Name: "List Sales", Title: "💰 Testing Sales - List", Tags: []string{"sales"},
			Requires: []string{"Create Sale"}, Run: ListSales},
		{Name: "Dashboard Stats", Title: "📊 Testing Dashboard - Statistics", Tags: []string{"dashboard"},
			Requires: []string{"Create Sale"}, Run: DashboardStats},
		{Name: "Multi-Tenant Isolation", Title: "🏢 Testing Multi-Tenant Isolation", Tags: []string{"tenancy", "auth"},
			Requires: []string{"Create Products"}, Run: TenantIsolation},
		{Name: "Delete Product", Title: "📦 Testing Products - Delete", Tags: []string{"products"},
			Requires: []string{"Create Products"}, Run: DeleteProduct},
	}
}

// Extended returns the core catalogue followed by the scenarios for the
// backend features the core run leaves alone.
func Extended() []Scenario {
	return append(Default(),
		Scenario{Name: "Unauthenticated Access Rejected", Title: "🔒 Testing Authentication - Anonymous Access",
			Tags: []string{"auth", "extended"}, Requires: []string{"Auth Login"}, Run: RejectAnonymous},
		Scenario{Name: "Cash Register Lifecycle", Title: "🧾 Testing Cash Register - Open to Close",
			Tags: []string{"cash-register", "extended"}, Requires: []string{"Create Products"}, Run: CashRegisterLifecycle},
		Scenario{Name: "Auth Logout", Title: "🔐 Testing Authentication - Logout",
			Tags: []string{"auth", "extended"}, Requires: []string{"Auth Login"}, Run: Logout},
	)
}

// Catalogue picks Default or Extended.
func Catalogue(extended bool) []Scenario {
	if extended {
		return Extended()
	}
	return Default()
}
