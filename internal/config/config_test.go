package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"pos-qa/internal/config"
)

const validYAML = `
name: Staging POS
base_url: https://pos.example.com/api
request_timeout: 15s
strict: true
primary:
  email: owner@example.com
  password: s3cret
products:
  - barcode: "111"
    name: Agua
    cost_price: 3
    sale_price: 5
    stock_quantity: 12
    category: Bebidas
sale:
  items:
    - match: agua
      quantity: 3
oversell:
  match: agua
  quantity: 50
`

const unknownFieldYAML = `
name: Foo
base_url: http://localhost/api
notARealField: true
`

func TestParse_ValidConfigKeepsDefaultsForOmittedFields(t *testing.T) {
	cfg, err := config.Parse([]byte(validYAML))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if diff := cmp.Diff("Staging POS", cfg.Name); diff != "" {
		t.Fatalf("name mismatch (-want +got):\n%s", diff)
	}
	if cfg.RequestTimeout != 15*time.Second {
		t.Fatalf("request_timeout = %v, want 15s", cfg.RequestTimeout)
	}
	if !cfg.Strict {
		t.Fatal("strict should be true")
	}
	if got, want := len(cfg.Products), 1; got != want {
		t.Fatalf("products len = %d, want %d", got, want)
	}

	def := config.Default()
	if diff := cmp.Diff(def.Secondary, cfg.Secondary); diff != "" {
		t.Fatalf("secondary tenant should default (-want +got):\n%s", diff)
	}
	if cfg.Primary.StoreName != def.Primary.StoreName {
		t.Fatalf("store_name = %q, want default %q", cfg.Primary.StoreName, def.Primary.StoreName)
	}
	if cfg.AuthCookie != "auth_token" {
		t.Fatalf("auth_cookie = %q, want auth_token", cfg.AuthCookie)
	}
	if diff := cmp.Diff(def.Update, cfg.Update); diff != "" {
		t.Fatalf("update should default (-want +got):\n%s", diff)
	}
}

func TestParse_EmptyDocumentIsDefault(t *testing.T) {
	cfg, err := config.Parse(nil)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if diff := cmp.Diff(config.Default(), cfg); diff != "" {
		t.Fatalf("empty config should equal Default (-want +got):\n%s", diff)
	}
}

func TestParse_KnownFieldsEnforced(t *testing.T) {
	if _, err := config.Parse([]byte(unknownFieldYAML)); err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*config.Config){
		"bad scheme":        func(c *config.Config) { c.BaseURL = "localhost:3000/api" },
		"no cookie":         func(c *config.Config) { c.AuthCookie = "" },
		"same tenant email": func(c *config.Config) { c.Secondary.Email = strings.ToUpper(c.Primary.Email) },
		"free product":      func(c *config.Config) { c.Products[0].SalePrice = 0 },
		"zero quantity":     func(c *config.Config) { c.Sale.Items[0].Quantity = 0 },
		"oversell no match": func(c *config.Config) { c.Oversell.Match = "" },
		"negative timeout":  func(c *config.Config) { c.RequestTimeout = -time.Second },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := config.Default()
			mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, config.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
	if err := config.Default().Validate(); err != nil {
		t.Fatalf("default config must be valid: %v", err)
	}
}

func TestLoadEnvFiles_LaterFilesWin(t *testing.T) {
	dir := t.TempDir()
	dev := filepath.Join(dir, "dev.json")
	ci := filepath.Join(dir, "ci.json")
	if err := os.WriteFile(dev, []byte(`{"BASE_URL":"http://dev/api","EMAIL":"dev@x.io","NUM":42}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(ci, []byte(`{"BASE_URL":"http://ci/api","REQUEST_TIMEOUT":"5s"}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	m, err := config.LoadEnvFiles([]string{dev, ci})
	if err != nil {
		t.Fatalf("LoadEnvFiles: %v", err)
	}
	if m["BASE_URL"] != "http://ci/api" {
		t.Fatalf("BASE_URL = %q", m["BASE_URL"])
	}
	if m["NUM"] != "42" {
		t.Fatalf("NUM = %q, want 42", m["NUM"])
	}

	cfg := config.Default()
	if err := cfg.ApplyEnv(m); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.BaseURL != "http://ci/api" || cfg.Primary.Email != "dev@x.io" {
		t.Fatalf("env not applied: base=%q email=%q", cfg.BaseURL, cfg.Primary.Email)
	}
	if cfg.RequestTimeout != 5*time.Second {
		t.Fatalf("timeout = %v, want 5s", cfg.RequestTimeout)
	}
}

func TestApplyEnv_BadTimeout(t *testing.T) {
	err := config.Default().ApplyEnv(map[string]string{"REQUEST_TIMEOUT": "soon"})
	if !errors.Is(err, config.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestMakeEmailsUnique(t *testing.T) {
	cfg := config.Default()
	cfg.MakeEmailsUnique()
	if !strings.HasPrefix(cfg.Primary.Email, "testowner+") || !strings.HasSuffix(cfg.Primary.Email, "@posstore.com") {
		t.Fatalf("primary email = %q", cfg.Primary.Email)
	}
	pTag := strings.TrimSuffix(strings.TrimPrefix(cfg.Primary.Email, "testowner+"), "@posstore.com")
	sTag := strings.TrimSuffix(strings.TrimPrefix(cfg.Secondary.Email, "seconduser+"), "@posstore.com")
	if len(pTag) != 8 || pTag != sTag {
		t.Fatalf("tags = %q / %q, want the same 8-char tag", pTag, sTag)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("tagged config invalid: %v", err)
	}
}
