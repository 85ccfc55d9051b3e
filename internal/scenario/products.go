package scenario

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"pos-qa/internal/model"
)

// fetchProducts lists the current tenant's products; nil on any failure.
func fetchProducts(ctx context.Context, c *Context, query string) []model.Product {
	res, _ := c.Client.Get(ctx, "/products"+query, http.StatusOK)
	if res == nil {
		return nil
	}
	ps := []model.Product{}
	if err := res.Decode(&ps); err != nil {
		c.Out.Info("Undecodable product list: %v", err)
		return nil
	}
	return ps
}

// CreateProducts creates every configured product. It passes only if all
// of them were created.
func CreateProducts(ctx context.Context, c *Context) bool {
	defs := c.Config.Products
	created := 0
	for _, def := range defs {
		res, _ := c.Client.Post(ctx, "/products", def, http.StatusOK)
		var p model.Product
		if res == nil || res.Decode(&p) != nil {
			c.hard("Failed to create: "+def.Name, false, "")
			continue
		}
		c.Products = append(c.Products, p)
		created++
		c.hard(fmt.Sprintf("Created: %s (ID: %s)", def.Name, p.ID), true, "")
	}
	if created != len(defs) {
		return c.fail("Only %d/%d products created", created, len(defs))
	}
	c.detailf("Created %d/%d products", created, len(defs))
	return true
}

// ListProducts fetches the full list and then tries a name search and a
// barcode lookup. Only the full list fetch decides the outcome.
func ListProducts(ctx context.Context, c *Context) bool {
	all := fetchProducts(ctx, c, "")
	if all == nil {
		return c.fail("Could not list products")
	}
	ok := c.soft(fmt.Sprintf("Listed %d products", len(all)), len(all) >= len(c.Products),
		fmt.Sprintf("expected at least %d, got %d", len(c.Products), len(all)))

	name := c.Config.Search.Name
	byName := fetchProducts(ctx, c, "?search="+url.QueryEscape(name))
	found := false
	for _, p := range byName {
		if containsFold(p.Name, name) {
			found = true
			break
		}
	}
	ok = c.soft("Search by name works", found, fmt.Sprintf("no product matching %q", name)) && ok

	code := c.Config.Search.Barcode
	byCode := fetchProducts(ctx, c, "?barcode="+url.QueryEscape(code))
	hit := len(byCode) > 0 && byCode[0].Barcode == code
	detail := "empty result"
	if len(byCode) > 0 {
		detail = fmt.Sprintf("first result has barcode %q", byCode[0].Barcode)
	}
	ok = c.soft("Search by barcode works", hit, detail) && ok

	if !ok {
		return c.fail("Product search returned unexpected results")
	}
	c.detailf("All product listing tests passed")
	return true
}

// UpdateProduct applies the configured partial update to the first tracked
// product. Only the status is checked.
func UpdateProduct(ctx context.Context, c *Context) bool {
	if len(c.Products) == 0 {
		return c.fail("No products to update")
	}
	p := c.Products[0]
	res, status := c.Client.Put(ctx, "/products/"+url.PathEscape(p.ID.String()), c.Config.Update, http.StatusOK)
	if res == nil {
		return c.fail("Status: %d", status)
	}
	c.Updated[p.ID] = true
	c.detailf("Updated product %s", p.ID)
	return true
}

// DeleteProduct deletes the last tracked product. Only the status is checked.
func DeleteProduct(ctx context.Context, c *Context) bool {
	if len(c.Products) == 0 {
		return c.fail("No products to delete")
	}
	p := c.Products[len(c.Products)-1]
	res, status := c.Client.Delete(ctx, "/products/"+url.PathEscape(p.ID.String()), http.StatusOK)
	if res == nil {
		return c.fail("Status: %d", status)
	}
	c.detailf("Deleted product %s", p.ID)
	return true
}
