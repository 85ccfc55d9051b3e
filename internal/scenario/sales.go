package scenario

import (
	"context"
	"fmt"
	"net/http"

	"pos-qa/internal/model"
)

type saleLine struct {
	product  model.Product
	quantity int
}

// CreateSale sells the configured lines and checks the reported total
// against the cached sale prices. Only the creation decides the outcome
// unless strict mode is on, in which case the products are re-fetched first
// so the expectation uses current prices.
func CreateSale(ctx context.Context, c *Context) bool {
	if len(c.Products) == 0 {
		return c.fail("Not enough products for sale")
	}
	if c.Config.Strict {
		fresh := fetchProducts(ctx, c, "")
		if fresh == nil {
			return c.fail("Could not re-fetch products")
		}
		c.refresh(fresh)
	}

	plan := c.Config.Sale
	var lines []saleLine
	for _, it := range plan.Items {
		p, ok := c.product(it.Match)
		if !ok {
			return c.fail("Required products not found: %q", it.Match)
		}
		lines = append(lines, saleLine{product: p, quantity: it.Quantity})
	}

	items := make([]map[string]any, 0, len(lines))
	expected := 0.0
	c.Out.Info("Creating sale with:")
	for _, l := range lines {
		items = append(items, map[string]any{"product_id": l.product.ID, "quantity": l.quantity})
		expected += l.product.SalePrice * float64(l.quantity)
		c.Out.Info("  - %dx %s @ $%s", l.quantity, l.product.Name, model.Money(l.product.SalePrice))
	}

	res, status := c.Client.Post(ctx, "/sales", map[string]any{
		"items":           items,
		"payment_method":  plan.PaymentMethod,
		"amount_received": plan.AmountReceived,
	}, http.StatusOK)
	if res == nil {
		return c.fail("Status: %d", status)
	}
	var sale model.Sale
	if err := res.Decode(&sale); err != nil {
		return c.fail("Undecodable sale: %v", err)
	}
	c.SaleID = sale.ID
	for _, l := range lines {
		c.Sold[l.product.ID] += l.quantity
	}
	c.hard(fmt.Sprintf("Sale created: ID %s", sale.ID), true, "")
	c.Out.Info("Total: $%s, Profit: $%s, Change: $%s",
		model.Money(sale.TotalAmount), model.Money(sale.Profit), model.Money(sale.ChangeGiven))

	if !c.soft("Total calculation correct", approx(sale.TotalAmount, expected),
		fmt.Sprintf("expected %s, got %s", model.Money(expected), model.Money(sale.TotalAmount))) {
		return c.fail("Total mismatch: expected %s, got %s", model.Money(expected), model.Money(sale.TotalAmount))
	}
	c.detailf("Sale ID: %s, Total: $%s", sale.ID, model.Money(sale.TotalAmount))
	return true
}

// VerifyStock re-fetches the products and checks that every sold product
// lost exactly the sold quantity. A product whose snapshot is stale because
// it was updated is only held to an upper bound.
func VerifyStock(ctx context.Context, c *Context) bool {
	if len(c.Sold) == 0 {
		return c.fail("No sale recorded")
	}
	fresh := fetchProducts(ctx, c, "")
	if fresh == nil {
		return c.fail("Could not fetch products")
	}

	ok := true
	seen := map[model.ID]bool{}
	for _, it := range c.Config.Sale.Items {
		cached, found := c.product(it.Match)
		if !found || seen[cached.ID] {
			continue
		}
		seen[cached.ID] = true
		now, found := findByName(fresh, it.Match)
		if !found {
			return c.fail("Products not found for verification")
		}
		want := cached.StockQuantity - c.Sold[cached.ID]
		if c.Updated[cached.ID] {
			c.Out.Info("%s stock: %d (expected at most %d)", now.Name, now.StockQuantity, want)
			ok = c.hard(cached.Name+" stock decreased", now.StockQuantity <= want,
				fmt.Sprintf("stock %d above %d", now.StockQuantity, want)) && ok
			continue
		}
		c.Out.Info("%s stock: %d (expected %d)", now.Name, now.StockQuantity, want)
		ok = c.hard(cached.Name+" stock exact", now.StockQuantity == want,
			fmt.Sprintf("expected %d, got %d", want, now.StockQuantity)) && ok
	}
	if !ok {
		return c.fail("Stock not updated correctly")
	}
	c.detailf("Stock correctly updated after sale")
	return true
}

// RejectOversell asks for more units than are on hand and expects exactly
// 400, then checks the rejected sale left the stock alone.
func RejectOversell(ctx context.Context, c *Context) bool {
	plan := c.Config.Oversell
	p, ok := c.product(plan.Match)
	if !ok {
		return c.fail("%q product not found", plan.Match)
	}

	before := -1
	if fresh := fetchProducts(ctx, c, ""); fresh != nil {
		if cur, found := findByID(fresh, p.ID); found {
			before = cur.StockQuantity
		}
	}
	if before < 0 && !c.Updated[p.ID] {
		before = p.StockQuantity - c.Sold[p.ID]
	}
	qty := plan.Quantity
	if before >= 0 && qty <= before {
		qty = before + 1
	}

	_, status := c.Client.Post(ctx, "/sales", map[string]any{
		"items":           []map[string]any{{"product_id": p.ID, "quantity": qty}},
		"payment_method":  "cash",
		"amount_received": plan.AmountReceived,
	}, http.StatusBadRequest)
	if status != http.StatusBadRequest {
		return c.fail("Expected error 400, got %d", status)
	}
	c.hard(fmt.Sprintf("Sale of %d rejected", qty), true, "")

	if before >= 0 {
		after := -1
		if fresh := fetchProducts(ctx, c, ""); fresh != nil {
			if cur, found := findByID(fresh, p.ID); found {
				after = cur.StockQuantity
			}
		}
		if !c.soft("Stock unchanged", after == before, fmt.Sprintf("expected %d, got %d", before, after)) {
			return c.fail("Rejected sale changed stock")
		}
	}
	c.detailf("Correctly rejected sale with insufficient stock")
	return true
}

// ListSales expects at least one sale.
func ListSales(ctx context.Context, c *Context) bool {
	res, status := c.Client.Get(ctx, "/sales", http.StatusOK)
	if res == nil {
		return c.fail("Status: %d", status)
	}
	var sales []model.Sale
	if err := res.Decode(&sales); err != nil {
		return c.fail("Undecodable sales: %v", err)
	}
	if len(sales) == 0 {
		return c.fail("No sales found")
	}
	c.hard(fmt.Sprintf("Found %d sales", len(sales)), true, "")
	c.Out.Info("Latest sale: %s - $%s", sales[0].ID, model.Money(sales[0].TotalAmount))
	c.detailf("Found %d sales", len(sales))
	return true
}
