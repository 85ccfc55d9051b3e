package scenario

import (
	"context"
	"net/http"

	"pos-qa/internal/model"
)

// DashboardStats needs a 200 and a non-empty inventory. Today's sale count
// is reported but optional, since "today" depends on the server's clock.
func DashboardStats(ctx context.Context, c *Context) bool {
	res, status := c.Client.Get(ctx, "/dashboard/stats", http.StatusOK)
	if res == nil {
		return c.fail("Status: %d", status)
	}
	var st model.DashboardStats
	if err := res.Decode(&st); err != nil {
		return c.fail("Undecodable stats: %v", err)
	}
	c.Out.Info("Today's Revenue: $%s", model.Money(st.Today.Revenue))
	c.Out.Info("Today's Profit: $%s", model.Money(st.Today.Profit))
	c.Out.Info("Today's Sales: %d", st.Today.SalesCount)
	c.Out.Info("Total Products: %d", st.Inventory.TotalProducts)
	c.Out.Info("Low Stock Items: %d", st.Inventory.LowStockCount)

	if !c.hard("inventory has products", st.Inventory.TotalProducts > 0, "total_products is 0") {
		return c.fail("Dashboard missing expected data")
	}
	if !c.soft("today's sale counted", st.Today.SalesCount > 0, "sales_count is 0") {
		return c.fail("Dashboard shows no sales today")
	}
	if st.Today.SalesCount > 0 {
		c.detailf("Dashboard shows correct data including today's sale")
	} else {
		c.detailf("Dashboard working, shows products but no sales today")
	}
	return true
}
