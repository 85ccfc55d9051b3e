package scenario

import (
	"context"
	"fmt"
	"net/http"

	"pos-qa/internal/model"
)

// CashRegisterLifecycle opens a register, records a cash sale, an expense
// and a withdrawal, checks the expected cash, closes with the exact count
// and finds the register in the history.
func CashRegisterLifecycle(ctx context.Context, c *Context) bool {
	plan := c.Config.Register
	p, ok := c.product(plan.Match)
	if !ok {
		return c.fail("%q product not found", plan.Match)
	}

	if res, status := c.Client.Post(ctx, "/cash-register/open",
		map[string]any{"initial_cash": plan.InitialCash}, http.StatusOK); res == nil {
		return c.fail("Could not open register: status %d", status)
	}

	res, status := c.Client.Post(ctx, "/sales", map[string]any{
		"items":           []map[string]any{{"product_id": p.ID, "quantity": 1}},
		"payment_method":  "cash",
		"amount_received": p.SalePrice,
	}, http.StatusOK)
	if res == nil {
		return c.fail("Cash sale failed: status %d", status)
	}
	var sale model.Sale
	if err := res.Decode(&sale); err != nil {
		return c.fail("Undecodable sale: %v", err)
	}

	for _, mv := range []struct {
		kind   string
		amount float64
	}{{"expense", plan.Expense}, {"withdrawal", plan.Withdrawal}} {
		if mv.amount <= 0 {
			continue
		}
		if res, status := c.Client.Post(ctx, "/cash-register/"+mv.kind, map[string]any{
			"amount":      mv.amount,
			"description": "pos-qa " + mv.kind,
		}, http.StatusOK); res == nil {
			return c.fail("Could not record %s: status %d", mv.kind, status)
		}
	}

	res, status = c.Client.Get(ctx, "/cash-register/current", http.StatusOK)
	if res == nil {
		return c.fail("Status: %d", status)
	}
	var cur model.CashRegister
	if err := res.Decode(&cur); err != nil {
		return c.fail("Undecodable register: %v", err)
	}
	want := plan.InitialCash + sale.TotalAmount - plan.Expense - plan.Withdrawal
	c.Out.Info("Expected cash: $%s (computed $%s)", model.Money(cur.ExpectedCash), model.Money(want))
	if !c.hard("expected cash", approx(cur.ExpectedCash, want),
		fmt.Sprintf("expected %s, got %s", model.Money(want), model.Money(cur.ExpectedCash))) {
		return c.fail("Register arithmetic is off")
	}

	res, status = c.Client.Post(ctx, "/cash-register/close",
		map[string]any{"actual_cash": cur.ExpectedCash}, http.StatusOK)
	if res == nil {
		return c.fail("Could not close register: status %d", status)
	}
	var closed model.CashRegister
	if err := res.Decode(&closed); err != nil {
		return c.fail("Undecodable register: %v", err)
	}
	diff := 1.0
	if closed.Difference != nil {
		diff = *closed.Difference
	}
	if !c.hard("closed without difference", approx(diff, 0) && closed.Status == "closed",
		fmt.Sprintf("status %q, difference %s", closed.Status, model.Money(diff))) {
		return c.fail("Register did not close cleanly")
	}

	res, status = c.Client.Get(ctx, "/cash-register/history", http.StatusOK)
	if res == nil {
		return c.fail("Status: %d", status)
	}
	var hist []model.CashRegister
	if err := res.Decode(&hist); err != nil {
		return c.fail("Undecodable history: %v", err)
	}
	if !c.hard("register in history", len(hist) > 0, "history is empty") {
		return c.fail("Closed register missing from history")
	}
	c.detailf("Register %s closed at $%s", closed.ID, model.Money(cur.ExpectedCash))
	return true
}
