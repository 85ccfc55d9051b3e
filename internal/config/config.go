// Package config loads the run configuration: target backend, tenant
// credentials and the fixtures the scenarios create and check.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

var ErrValidation = errors.New("validation error")

type Config struct {
	Name           string        `yaml:"name"`
	BaseURL        string        `yaml:"base_url"`
	AuthCookie     string        `yaml:"auth_cookie"`
	RequestTimeout time.Duration `yaml:"request_timeout"`

	Strict       bool `yaml:"strict"`
	Extended     bool `yaml:"extended"`
	UniqueEmails bool `yaml:"unique_emails"`

	Primary   Tenant `yaml:"primary"`
	Secondary Tenant `yaml:"secondary"`

	Products []ProductDef   `yaml:"products"`
	Search   Search         `yaml:"search"`
	Update   map[string]any `yaml:"update"`
	Sale     SalePlan       `yaml:"sale"`
	Oversell Oversell       `yaml:"oversell"`
	Register CashPlan       `yaml:"cash_register"`
}

type Tenant struct {
	Email          string `yaml:"email"`
	Password       string `yaml:"password"`
	StoreName      string `yaml:"store_name"`
	CurrencySymbol string `yaml:"currency_symbol"`
}

type ProductDef struct {
	Barcode       string  `yaml:"barcode" json:"barcode"`
	Name          string  `yaml:"name" json:"name"`
	CostPrice     float64 `yaml:"cost_price" json:"cost_price"`
	SalePrice     float64 `yaml:"sale_price" json:"sale_price"`
	StockQuantity int     `yaml:"stock_quantity" json:"stock_quantity"`
	Category      string  `yaml:"category" json:"category"`
}

type Search struct {
	Name    string `yaml:"name"`
	Barcode string `yaml:"barcode"`
}

// SaleLine selects a tracked product by case-insensitive name substring.
type SaleLine struct {
	Match    string `yaml:"match"`
	Quantity int    `yaml:"quantity"`
}

type SalePlan struct {
	PaymentMethod  string     `yaml:"payment_method"`
	AmountReceived float64    `yaml:"amount_received"`
	Items          []SaleLine `yaml:"items"`
}

type Oversell struct {
	Match          string  `yaml:"match"`
	Quantity       int     `yaml:"quantity"`
	AmountReceived float64 `yaml:"amount_received"`
}

type CashPlan struct {
	InitialCash float64 `yaml:"initial_cash"`
	Match       string  `yaml:"match"`
	Expense     float64 `yaml:"expense"`
	Withdrawal  float64 `yaml:"withdrawal"`
}

// Default returns the fixtures of the reference POS run: two tenants, four
// products, a two-line cash sale and an oversell attempt on the bread.
func Default() *Config {
	return &Config{
		Name:       "POS backend",
		BaseURL:    "http://localhost:3000/api",
		AuthCookie: "auth_token",
		Primary: Tenant{
			Email:          "testowner@posstore.com",
			Password:       "SecurePass123!",
			StoreName:      "Mi Tienda POS",
			CurrencySymbol: "$",
		},
		Secondary: Tenant{
			Email:          "seconduser@posstore.com",
			Password:       "SecurePass456!",
			StoreName:      "Segunda Tienda",
			CurrencySymbol: "$",
		},
		Products: []ProductDef{
			{Barcode: "123456", Name: "Coca Cola", CostPrice: 10, SalePrice: 15, StockQuantity: 50, Category: "Bebidas"},
			{Barcode: "789012", Name: "Pan", CostPrice: 5, SalePrice: 8, StockQuantity: 5, Category: "Panadería"},
			{Barcode: "345678", Name: "Leche", CostPrice: 20, SalePrice: 30, StockQuantity: 100, Category: "Lácteos"},
			{Barcode: "901234", Name: "Arroz", CostPrice: 15, SalePrice: 25, StockQuantity: 30, Category: "Granos"},
		},
		Search: Search{Name: "coca", Barcode: "123456"},
		Update: map[string]any{
			"name":           "Coca Cola 2L",
			"sale_price":     18.0,
			"stock_quantity": 45,
		},
		Sale: SalePlan{
			PaymentMethod:  "cash",
			AmountReceived: 50,
			Items: []SaleLine{
				{Match: "coca", Quantity: 2},
				{Match: "pan", Quantity: 1},
			},
		},
		Oversell: Oversell{Match: "pan", Quantity: 10, AmountReceived: 100},
		Register: CashPlan{InitialCash: 100, Match: "leche", Expense: 10, Withdrawal: 5},
	}
}

// Load reads a YAML (or JSON) config file. Fields left out of the file keep
// their Default values.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(b)
}

func Parse(b []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode: %w", err)
	}
	cfg.fillDefaults(Default())
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) fillDefaults(d *Config) {
	str := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	str(&c.Name, d.Name)
	str(&c.BaseURL, d.BaseURL)
	str(&c.AuthCookie, d.AuthCookie)
	fillTenant(&c.Primary, d.Primary)
	fillTenant(&c.Secondary, d.Secondary)
	if len(c.Products) == 0 {
		c.Products = d.Products
	}
	str(&c.Search.Name, d.Search.Name)
	str(&c.Search.Barcode, d.Search.Barcode)
	if len(c.Update) == 0 {
		c.Update = d.Update
	}
	str(&c.Sale.PaymentMethod, d.Sale.PaymentMethod)
	if c.Sale.AmountReceived == 0 {
		c.Sale.AmountReceived = d.Sale.AmountReceived
	}
	if len(c.Sale.Items) == 0 {
		c.Sale.Items = d.Sale.Items
	}
	if c.Oversell == (Oversell{}) {
		c.Oversell = d.Oversell
	}
	if c.Register == (CashPlan{}) {
		c.Register = d.Register
	}
}

func fillTenant(t *Tenant, d Tenant) {
	if t.Email == "" && t.Password == "" {
		t.Email, t.Password = d.Email, d.Password
	}
	if t.StoreName == "" {
		t.StoreName = d.StoreName
	}
	if t.CurrencySymbol == "" {
		t.CurrencySymbol = d.CurrencySymbol
	}
}

// Validate reports the first problem found, wrapped in ErrValidation.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return wrapValidation("base_url must not be empty")
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return wrapValidation(fmt.Sprintf("base_url %q must start with http:// or https://", c.BaseURL))
	}
	if c.AuthCookie == "" {
		return wrapValidation("auth_cookie must not be empty")
	}
	if c.RequestTimeout < 0 {
		return wrapValidation("request_timeout must not be negative")
	}
	if c.Primary.Email == "" || c.Primary.Password == "" {
		return wrapValidation("primary tenant needs email and password")
	}
	if c.Secondary.Email == "" || c.Secondary.Password == "" {
		return wrapValidation("secondary tenant needs email and password")
	}
	if strings.EqualFold(c.Primary.Email, c.Secondary.Email) {
		return wrapValidation("primary and secondary tenants must use different emails")
	}
	if len(c.Products) == 0 {
		return wrapValidation("products must not be empty")
	}
	for i, p := range c.Products {
		if p.Name == "" {
			return wrapValidation(fmt.Sprintf("products[%d].name must not be empty", i))
		}
		if p.SalePrice <= 0 {
			return wrapValidation(fmt.Sprintf("products[%d].sale_price must be positive", i))
		}
		if p.StockQuantity < 0 {
			return wrapValidation(fmt.Sprintf("products[%d].stock_quantity must not be negative", i))
		}
	}
	if len(c.Sale.Items) == 0 {
		return wrapValidation("sale.items must not be empty")
	}
	for i, it := range c.Sale.Items {
		if it.Match == "" || it.Quantity <= 0 {
			return wrapValidation(fmt.Sprintf("sale.items[%d] needs match and a positive quantity", i))
		}
	}
	if c.Oversell.Match == "" || c.Oversell.Quantity <= 0 {
		return wrapValidation("oversell needs match and a positive quantity")
	}
	if c.Register.InitialCash < 0 || c.Register.Expense < 0 || c.Register.Withdrawal < 0 {
		return wrapValidation("cash_register amounts must not be negative")
	}
	return nil
}

// MakeEmailsUnique tags both tenant emails with a short random suffix
// (user+tag@host) so repeated runs against a persistent backend do not
// collide with already-registered accounts.
func (c *Config) MakeEmailsUnique() {
	tag := uuid.NewString()[:8]
	c.Primary.Email = tagEmail(c.Primary.Email, tag)
	c.Secondary.Email = tagEmail(c.Secondary.Email, tag)
}

func tagEmail(email, tag string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email + "+" + tag
	}
	return email[:at] + "+" + tag + email[at:]
}

func wrapValidation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}
