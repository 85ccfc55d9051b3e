package scenario

import (
	"context"
	"net/http"

	"pos-qa/internal/model"
)

type userEnvelope struct {
	User model.User `json:"user"`
}

// Register creates the primary tenant and records its user id. It does not
// count as establishing the session.
func Register(ctx context.Context, c *Context) bool {
	t := c.Config.Primary
	res, status := c.Client.Post(ctx, "/auth/register", map[string]any{
		"email":           t.Email,
		"password":        t.Password,
		"store_name":      t.StoreName,
		"currency_symbol": t.CurrencySymbol,
	}, http.StatusOK)
	if res == nil {
		return c.fail("Status: %d", status)
	}
	var body userEnvelope
	if err := res.Decode(&body); err != nil {
		return c.fail("Undecodable user: %v", err)
	}
	c.UserID = body.User.ID
	if !c.soft("user id returned", body.User.ID != "", "response has no user.id") {
		return c.fail("Registration response has no user id")
	}
	c.detailf("User ID: %s", c.UserID)
	return true
}

// Login signs in as the primary tenant. A 200 without the auth cookie in the
// jar is a failure.
func Login(ctx context.Context, c *Context) bool {
	t := c.Config.Primary
	res, status := c.Client.Post(ctx, "/auth/login", map[string]any{
		"email":    t.Email,
		"password": t.Password,
	}, http.StatusOK)
	if res == nil {
		return c.fail("Status: %d", status)
	}
	token, ok := c.Client.Cookie(c.Config.AuthCookie)
	if !c.hard("auth cookie set", ok && token != "", c.Config.AuthCookie+" cookie missing from the session") {
		return c.fail("Auth token cookie not set")
	}
	c.AuthCookie = token
	c.detailf("Auth token received in cookie")
	return true
}

// CurrentUser requires both a 200 and the registered email back.
func CurrentUser(ctx context.Context, c *Context) bool {
	res, status := c.Client.Get(ctx, "/auth/me", http.StatusOK)
	if res == nil {
		return c.fail("Status: %d", status)
	}
	var body userEnvelope
	if err := res.Decode(&body); err != nil {
		return c.fail("Undecodable user: %v", err)
	}
	want := c.Config.Primary.Email
	if !c.hard("email matches", body.User.Email == want, "expected "+want+", got "+body.User.Email) {
		return c.fail("User data mismatch")
	}
	c.detailf("User: %s", body.User.StoreName)
	return true
}

// RejectAnonymous drops the session and expects authenticated endpoints to
// answer 401. The session is restored afterwards whatever happens.
func RejectAnonymous(ctx context.Context, c *Context) (ok bool) {
	saved := c.Client.SaveSession()
	defer func() {
		if err := c.Client.RestoreSession(saved); err != nil {
			ok = c.fail("Could not restore session: %v", err)
		}
	}()
	if err := c.Client.ClearSession(); err != nil {
		return c.fail("Could not clear session: %v", err)
	}

	_, st := c.Client.Get(ctx, "/products", http.StatusUnauthorized)
	products := c.hard("GET /products rejected", st == http.StatusUnauthorized, gotStatus(st))
	_, st = c.Client.Get(ctx, "/auth/me", http.StatusUnauthorized)
	me := c.hard("GET /auth/me rejected", st == http.StatusUnauthorized, gotStatus(st))
	if !products || !me {
		return c.fail("Anonymous request was not rejected")
	}
	c.detailf("Anonymous requests rejected with 401")
	return true
}

// Logout signs out and checks the cookie is gone and /auth/me answers 401,
// then restores the session so later scenarios still act as the tenant.
func Logout(ctx context.Context, c *Context) (ok bool) {
	saved := c.Client.SaveSession()
	defer func() {
		if err := c.Client.RestoreSession(saved); err != nil {
			ok = c.fail("Could not restore session: %v", err)
		}
	}()

	res, status := c.Client.Post(ctx, "/auth/logout", nil, http.StatusOK)
	if res == nil {
		return c.fail("Status: %d", status)
	}
	_, still := c.Client.Cookie(c.Config.AuthCookie)
	cleared := c.hard("auth cookie cleared", !still, c.Config.AuthCookie+" cookie still present")
	_, st := c.Client.Get(ctx, "/auth/me", http.StatusUnauthorized)
	rejected := c.hard("GET /auth/me rejected", st == http.StatusUnauthorized, gotStatus(st))
	if !cleared || !rejected {
		return c.fail("Logout did not end the session")
	}
	c.detailf("Session ended")
	return true
}
