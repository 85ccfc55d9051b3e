package scenario

import (
	"context"
	"fmt"
	"net/http"

	"pos-qa/internal/model"
)

// TenantIsolation registers and logs in the secondary tenant on the shared
// session and expects it to see no products. The primary tenant's session
// is restored on every path out.
func TenantIsolation(ctx context.Context, c *Context) (ok bool) {
	saved := c.Client.SaveSession()
	defer func() {
		if err := c.Client.RestoreSession(saved); err != nil {
			ok = c.fail("Could not restore session: %v", err)
		}
	}()

	t := c.Config.Secondary
	if res, _ := c.Client.Post(ctx, "/auth/register", map[string]any{
		"email":           t.Email,
		"password":        t.Password,
		"store_name":      t.StoreName,
		"currency_symbol": t.CurrencySymbol,
	}, http.StatusOK); res == nil {
		return c.fail("Could not create second user")
	}
	if res, _ := c.Client.Post(ctx, "/auth/login", map[string]any{
		"email":    t.Email,
		"password": t.Password,
	}, http.StatusOK); res == nil {
		return c.fail("Could not login as second user")
	}

	res, status := c.Client.Get(ctx, "/products", http.StatusOK)
	if res == nil {
		return c.fail("Status: %d", status)
	}
	var ps []model.Product
	if err := res.Decode(&ps); err != nil {
		return c.fail("Undecodable product list: %v", err)
	}
	if !c.hard("Second user cannot see first user's products", len(ps) == 0,
		fmt.Sprintf("second user can see %d products (should see 0)", len(ps))) {
		return c.fail("Data leakage between tenants")
	}
	c.detailf("Users can only see their own data")
	return true
}
