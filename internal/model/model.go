package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is an opaque server-assigned identifier. Backends may send it as a
// JSON string or a number; it is always carried as a string.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// ---- POS payloads ----

type User struct {
	ID             ID     `json:"id"`
	Email          string `json:"email"`
	StoreName      string `json:"store_name"`
	CurrencySymbol string `json:"currency_symbol,omitempty"`
}

// Product is a client-side snapshot of a product as returned by the server.
// Snapshots are never refreshed implicitly and may go stale.
type Product struct {
	ID            ID      `json:"id"`
	Barcode       string  `json:"barcode"`
	Name          string  `json:"name"`
	CostPrice     float64 `json:"cost_price"`
	SalePrice     float64 `json:"sale_price"`
	StockQuantity int     `json:"stock_quantity"`
	Category      string  `json:"category"`
	LowStockAlert bool    `json:"low_stock_alert,omitempty"`
}

type SaleItem struct {
	ProductID   ID      `json:"product_id"`
	Quantity    int     `json:"quantity"`
	ProductName string  `json:"product_name,omitempty"`
	PriceAtSale float64 `json:"price_at_sale,omitempty"`
	CostAtSale  float64 `json:"cost_at_sale,omitempty"`
}

type Sale struct {
	ID             ID         `json:"id"`
	Items          []SaleItem `json:"items"`
	PaymentMethod  string     `json:"payment_method"`
	AmountReceived float64    `json:"amount_received"`
	TotalAmount    float64    `json:"total_amount"`
	Profit         float64    `json:"profit"`
	ChangeGiven    float64    `json:"change_given"`
}

type PeriodStats struct {
	Revenue    float64 `json:"revenue"`
	Profit     float64 `json:"profit"`
	SalesCount int     `json:"sales_count"`
}

type InventoryStats struct {
	TotalProducts int `json:"total_products"`
	LowStockCount int `json:"low_stock_count"`
}

type DashboardStats struct {
	Today     PeriodStats    `json:"today"`
	Month     PeriodStats    `json:"month"`
	Inventory InventoryStats `json:"inventory"`
}

type CashRegister struct {
	ID           ID       `json:"id"`
	Status       string   `json:"status"`
	InitialCash  float64  `json:"initial_cash"`
	CashSales    float64  `json:"cash_sales"`
	CardSales    float64  `json:"card_sales"`
	ExpectedCash float64  `json:"expected_cash"`
	ActualCash   *float64 `json:"actual_cash"`
	Difference   *float64 `json:"difference"`
}

// ---- Run results ----

// Check is one fine-grained assertion inside a scenario. Soft checks are
// reported but do not decide the scenario's outcome.
type Check struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Soft   bool   `json:"soft,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// Call records one request issued through the executor.
type Call struct {
	Method     string  `json:"method"`
	Path       string  `json:"path"`
	Expected   int     `json:"expected"`
	Status     int     `json:"status"`
	DurationMs float64 `json:"duration_ms"`
	Err        string  `json:"error,omitempty"`
}

// Outcome is the result of one scenario, in execution order.
type Outcome struct {
	Name       string  `json:"name"`
	Passed     bool    `json:"passed"`
	Details    string  `json:"details,omitempty"`
	Checks     []Check `json:"checks,omitempty"`
	Calls      []Call  `json:"calls,omitempty"`
	DurationMs float64 `json:"duration_ms"`
}

type RunResult struct {
	Passed      bool      `json:"passed"`
	Interrupted bool      `json:"interrupted,omitempty"`
	Outcomes    []Outcome `json:"outcomes"`
	Violations  []string  `json:"violations,omitempty"`
	DurationMs  float64   `json:"duration_ms"`
}

// PassCount returns how many outcomes passed.
func (r *RunResult) PassCount() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Passed {
			n++
		}
	}
	return n
}

// Money formats an amount the way the console transcript prints prices.
func Money(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
