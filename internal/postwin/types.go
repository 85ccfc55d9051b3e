package postwin

import "time"

type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	StoreName      string    `json:"store_name"`
	CurrencySymbol string    `json:"currency_symbol"`
	CreatedAt      time.Time `json:"created_at"`
}

type Product struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Barcode       string    `json:"barcode"`
	Name          string    `json:"name"`
	CostPrice     float64   `json:"cost_price"`
	SalePrice     float64   `json:"sale_price"`
	StockQuantity int       `json:"stock_quantity"`
	Category      string    `json:"category"`
	LowStockAlert bool      `json:"low_stock_alert"`
	CreatedAt     time.Time `json:"created_at"`
}

type SaleItem struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	PriceAtSale float64 `json:"price_at_sale"`
	CostAtSale  float64 `json:"cost_at_sale"`
}

type Sale struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	TotalAmount    float64    `json:"total_amount"`
	Profit         float64    `json:"profit"`
	PaymentMethod  string     `json:"payment_method"`
	AmountReceived float64    `json:"amount_received"`
	ChangeGiven    float64    `json:"change_given"`
	Items          []SaleItem `json:"items"`
	Date           time.Time  `json:"date"`
}

// Movement is an expense or a withdrawal taken from an open register.
type Movement struct {
	ID          string    `json:"id"`
	Amount      float64   `json:"amount"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
}

type CashRegister struct {
	ID                   string     `json:"id"`
	UserID               string     `json:"user_id"`
	OpenedBy             string     `json:"opened_by"`
	OpenedAt             time.Time  `json:"opened_at"`
	ClosedAt             *time.Time `json:"closed_at"`
	InitialCash          float64    `json:"initial_cash"`
	CashSales            float64    `json:"cash_sales"`
	CardSales            float64    `json:"card_sales"`
	Expenses             []Movement `json:"expenses"`
	Withdrawals          []Movement `json:"withdrawals"`
	ExpectedCash         float64    `json:"expected_cash"`
	ActualCash           *float64   `json:"actual_cash"`
	Difference           *float64   `json:"difference"`
	DifferencePercentage *float64   `json:"difference_percentage"`
	ClosingNotes         *string    `json:"closing_notes"`
	Status               string     `json:"status"`
}

type PeriodStats struct {
	Revenue    float64 `json:"revenue"`
	Profit     float64 `json:"profit"`
	SalesCount *int    `json:"sales_count,omitempty"`
}

type InventoryStats struct {
	TotalProducts    int       `json:"total_products"`
	LowStockCount    int       `json:"low_stock_count"`
	LowStockProducts []Product `json:"low_stock_products"`
}

type DashboardStats struct {
	Today     PeriodStats    `json:"today"`
	Month     PeriodStats    `json:"month"`
	Inventory InventoryStats `json:"inventory"`
}

// LowStockThreshold is the stock level below which a product is flagged.
const LowStockThreshold = 10
