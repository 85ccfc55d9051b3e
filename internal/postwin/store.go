package postwin

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	_ "modernc.org/sqlite"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrEmailTaken       = errors.New("email already registered")
	ErrRegisterOpen     = errors.New("a cash register is already open")
	ErrNoOpenRegister   = errors.New("no open cash register")
	ErrInvalidSaleItems = errors.New("invalid sale items")
)

// StockError reports a sale line asking for more units than are on hand.
type StockError struct {
	Product   string
	Available int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("Stock insuficiente para %s. Disponible: %d", e.Product, e.Available)
}

// UnknownProductError reports a sale line naming a product the tenant does
// not own.
type UnknownProductError struct {
	ID string
}

func (e *UnknownProductError) Error() string {
	return fmt.Sprintf("Producto %s no encontrado", e.ID)
}

// Store keeps every tenant's data in one SQLite database. All access goes
// through a single connection, so a transaction must not be interleaved with
// queries on the *sql.DB.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (and migrates) the database at path. An empty path or
// ":memory:" gives a private in-memory database.
func Open(path string) (*Store, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			store_name TEXT NOT NULL,
			currency_symbol TEXT NOT NULL DEFAULT '$',
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			barcode TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL,
			cost_price REAL NOT NULL DEFAULT 0,
			sale_price REAL NOT NULL,
			stock_quantity INTEGER NOT NULL CHECK(stock_quantity >= 0),
			category TEXT NOT NULL DEFAULT 'General',
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_products_user ON products(user_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS sales (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			total_amount REAL NOT NULL,
			profit REAL NOT NULL,
			payment_method TEXT NOT NULL,
			amount_received REAL NOT NULL,
			change_given REAL NOT NULL,
			items TEXT NOT NULL,
			date INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sales_user ON sales(user_id, date)`,
		`CREATE TABLE IF NOT EXISTS cash_registers (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			opened_by TEXT NOT NULL,
			opened_at INTEGER NOT NULL,
			closed_at INTEGER,
			initial_cash REAL NOT NULL,
			cash_sales REAL NOT NULL DEFAULT 0,
			card_sales REAL NOT NULL DEFAULT 0,
			expected_cash REAL NOT NULL,
			actual_cash REAL,
			difference REAL,
			difference_percentage REAL,
			closing_notes TEXT,
			status TEXT NOT NULL CHECK(status IN ('open','closed'))
		)`,
		`CREATE TABLE IF NOT EXISTS cash_movements (
			id TEXT PRIMARY KEY,
			register_id TEXT NOT NULL REFERENCES cash_registers(id),
			kind TEXT NOT NULL CHECK(kind IN ('expense','withdrawal')),
			amount REAL NOT NULL,
			description TEXT NOT NULL,
			date INTEGER NOT NULL
		)`,
	}
	for _, q := range tables {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func unixNano(t time.Time) int64 { return t.UnixNano() }
func fromNano(n int64) time.Time { return time.Unix(0, n) }
func newID() string              { return uuid.NewString() }

// ---- Users ----

func (s *Store) CreateUser(ctx context.Context, u *User) error {
	u.ID = newID()
	u.CreatedAt = s.now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, store_name, currency_symbol, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, u.StoreName, u.CurrencySymbol, unixNano(u.CreatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*User, error) {
	return s.userWhere(ctx, "email = ?", email)
}

func (s *Store) UserByID(ctx context.Context, id string) (*User, error) {
	return s.userWhere(ctx, "id = ?", id)
}

func (s *Store) userWhere(ctx context.Context, cond string, arg any) (*User, error) {
	var u User
	var created int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, store_name, currency_symbol, created_at FROM users WHERE `+cond, arg).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.StoreName, &u.CurrencySymbol, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	u.CreatedAt = fromNano(created)
	return &u, nil
}

// ---- Products ----

const productCols = `id, user_id, barcode, name, cost_price, sale_price, stock_quantity, category, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(sc scanner) (*Product, error) {
	var p Product
	var created int64
	if err := sc.Scan(&p.ID, &p.UserID, &p.Barcode, &p.Name, &p.CostPrice, &p.SalePrice, &p.StockQuantity, &p.Category, &created); err != nil {
		return nil, err
	}
	p.CreatedAt = fromNano(created)
	p.LowStockAlert = p.StockQuantity < LowStockThreshold
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, p *Product) error {
	p.ID = newID()
	p.CreatedAt = s.now()
	p.LowStockAlert = p.StockQuantity < LowStockThreshold
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO products (`+productCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.Barcode, p.Name, p.CostPrice, p.SalePrice, p.StockQuantity, p.Category, unixNano(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// ProductFilter narrows ListProducts. Search is a case-insensitive substring
// of the name or the barcode; Barcode must match exactly.
type ProductFilter struct {
	Search  string
	Barcode string
}

// ListProducts returns the tenant's products, newest first.
func (s *Store) ListProducts(ctx context.Context, userID string, f ProductFilter) ([]Product, error) {
	q := `SELECT ` + productCols + ` FROM products WHERE user_id = ?`
	args := []any{userID}
	if f.Barcode != "" {
		q += ` AND barcode = ?`
		args = append(args, f.Barcode)
	}
	q += ` ORDER BY created_at DESC, rowid DESC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	fold := cases.Fold()
	needle := fold.String(f.Search)
	out := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		if needle != "" &&
			!strings.Contains(fold.String(p.Name), needle) &&
			!strings.Contains(fold.String(p.Barcode), needle) {
			continue
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *Store) Product(ctx context.Context, userID, id string) (*Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx,
		`SELECT `+productCols+` FROM products WHERE id = ? AND user_id = ?`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select product: %w", err)
	}
	return p, nil
}

// ProductPatch holds the fields of a partial product update; nil fields are
// left untouched.
type ProductPatch struct {
	Barcode       *string  `json:"barcode"`
	Name          *string  `json:"name"`
	CostPrice     *float64 `json:"cost_price"`
	SalePrice     *float64 `json:"sale_price"`
	StockQuantity *int     `json:"stock_quantity"`
	Category      *string  `json:"category"`
}

func (s *Store) UpdateProduct(ctx context.Context, userID, id string, patch ProductPatch) error {
	p, err := s.Product(ctx, userID, id)
	if err != nil {
		return err
	}
	if patch.Barcode != nil {
		p.Barcode = *patch.Barcode
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.CostPrice != nil {
		p.CostPrice = *patch.CostPrice
	}
	if patch.SalePrice != nil {
		p.SalePrice = *patch.SalePrice
	}
	if patch.StockQuantity != nil {
		p.StockQuantity = *patch.StockQuantity
	}
	if patch.Category != nil {
		p.Category = *patch.Category
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE products SET barcode = ?, name = ?, cost_price = ?, sale_price = ?, stock_quantity = ?, category = ?
		 WHERE id = ? AND user_id = ?`,
		p.Barcode, p.Name, p.CostPrice, p.SalePrice, p.StockQuantity, p.Category, id, userID)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	return nil
}

func (s *Store) DeleteProduct(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ---- Sales ----

// SaleRequest is what a client submits; prices come from the catalogue.
type SaleRequest struct {
	Items []struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	} `json:"items"`
	PaymentMethod  string  `json:"payment_method"`
	AmountReceived float64 `json:"amount_received"`
}

// CreateSale checks every line against current stock and then applies all
// decrements, the sale row and the open register update in one transaction.
// A rejected sale changes nothing.
func (s *Store) CreateSale(ctx context.Context, userID string, req SaleRequest) (*Sale, error) {
	if len(req.Items) == 0 {
		return nil, ErrInvalidSaleItems
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	sale := &Sale{
		ID:            newID(),
		UserID:        userID,
		PaymentMethod: req.PaymentMethod,
		Date:          s.now(),
	}
	if sale.PaymentMethod == "" {
		sale.PaymentMethod = "cash"
	}

	requested := map[string]int{}
	var totalCost float64
	for _, it := range req.Items {
		if it.Quantity <= 0 {
			return nil, ErrInvalidSaleItems
		}
		p, err := scanProduct(tx.QueryRowContext(ctx,
			`SELECT `+productCols+` FROM products WHERE id = ? AND user_id = ?`, it.ProductID, userID))
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &UnknownProductError{ID: it.ProductID}
		}
		if err != nil {
			return nil, fmt.Errorf("select product: %w", err)
		}
		requested[p.ID] += it.Quantity
		if p.StockQuantity < requested[p.ID] {
			return nil, &StockError{Product: p.Name, Available: p.StockQuantity}
		}
		sale.TotalAmount += p.SalePrice * float64(it.Quantity)
		totalCost += p.CostPrice * float64(it.Quantity)
		sale.Items = append(sale.Items, SaleItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    it.Quantity,
			PriceAtSale: p.SalePrice,
			CostAtSale:  p.CostPrice,
		})
	}

	ids := make([]string, 0, len(requested))
	for id := range requested {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`UPDATE products SET stock_quantity = stock_quantity - ? WHERE id = ? AND user_id = ?`,
			requested[id], id, userID); err != nil {
			return nil, fmt.Errorf("decrement stock: %w", err)
		}
	}

	sale.Profit = sale.TotalAmount - totalCost
	sale.AmountReceived = req.AmountReceived
	if sale.AmountReceived == 0 {
		sale.AmountReceived = sale.TotalAmount
	}
	sale.ChangeGiven = sale.AmountReceived - sale.TotalAmount

	items, err := json.Marshal(sale.Items)
	if err != nil {
		return nil, fmt.Errorf("marshal items: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sales (id, user_id, total_amount, profit, payment_method, amount_received, change_given, items, date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sale.ID, userID, sale.TotalAmount, sale.Profit, sale.PaymentMethod, sale.AmountReceived,
		sale.ChangeGiven, string(items), unixNano(sale.Date)); err != nil {
		return nil, fmt.Errorf("insert sale: %w", err)
	}

	col := "card_sales"
	cashDelta := 0.0
	if sale.PaymentMethod == "cash" {
		col = "cash_sales"
		cashDelta = sale.TotalAmount
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE cash_registers SET `+col+` = `+col+` + ?, expected_cash = expected_cash + ?
		 WHERE user_id = ? AND status = 'open'`,
		sale.TotalAmount, cashDelta, userID); err != nil {
		return nil, fmt.Errorf("update cash register: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return sale, nil
}

// ListSales returns the tenant's sales, newest first. Zero bounds are open.
func (s *Store) ListSales(ctx context.Context, userID string, from, to time.Time) ([]Sale, error) {
	q := `SELECT id, user_id, total_amount, profit, payment_method, amount_received, change_given, items, date
	      FROM sales WHERE user_id = ?`
	args := []any{userID}
	if !from.IsZero() {
		q += ` AND date >= ?`
		args = append(args, unixNano(from))
	}
	if !to.IsZero() {
		q += ` AND date <= ?`
		args = append(args, unixNano(to))
	}
	q += ` ORDER BY date DESC, rowid DESC LIMIT 1000`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	defer rows.Close()

	out := []Sale{}
	for rows.Next() {
		var sl Sale
		var items string
		var date int64
		if err := rows.Scan(&sl.ID, &sl.UserID, &sl.TotalAmount, &sl.Profit, &sl.PaymentMethod,
			&sl.AmountReceived, &sl.ChangeGiven, &items, &date); err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		if err := json.Unmarshal([]byte(items), &sl.Items); err != nil {
			return nil, fmt.Errorf("decode sale items: %w", err)
		}
		sl.Date = fromNano(date)
		out = append(out, sl)
	}
	return out, rows.Err()
}

// ---- Dashboard ----

// Stats aggregates today's and this month's sales (server-local calendar)
// and the inventory.
func (s *Store) Stats(ctx context.Context, userID string) (*DashboardStats, error) {
	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	var st DashboardStats
	var todayCount int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(total_amount), 0), COALESCE(SUM(profit), 0), COUNT(*) FROM sales WHERE user_id = ? AND date >= ?`,
		userID, unixNano(today)).Scan(&st.Today.Revenue, &st.Today.Profit, &todayCount)
	if err != nil {
		return nil, fmt.Errorf("today stats: %w", err)
	}
	st.Today.SalesCount = &todayCount

	err = s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(total_amount), 0), COALESCE(SUM(profit), 0) FROM sales WHERE user_id = ? AND date >= ?`,
		userID, unixNano(monthStart)).Scan(&st.Month.Revenue, &st.Month.Profit)
	if err != nil {
		return nil, fmt.Errorf("month stats: %w", err)
	}

	all, err := s.ListProducts(ctx, userID, ProductFilter{})
	if err != nil {
		return nil, err
	}
	st.Inventory.TotalProducts = len(all)
	st.Inventory.LowStockProducts = []Product{}
	for _, p := range all {
		if p.StockQuantity < LowStockThreshold {
			st.Inventory.LowStockProducts = append(st.Inventory.LowStockProducts, p)
		}
	}
	st.Inventory.LowStockCount = len(st.Inventory.LowStockProducts)
	return &st, nil
}
