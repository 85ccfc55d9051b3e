// Package contract checks POS responses against an OpenAPI document and
// tracks which documented operations a run exercised.
package contract

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"
)

// posContract documents the endpoints the scenarios call. Paths carry the
// /api prefix and there is no servers block, so routes match on URL path
// regardless of host.
//
//go:embed pos.openapi.yaml
var posContract []byte

// ErrNoRoute reports a response to a request the contract does not document.
var ErrNoRoute = errors.New("undocumented operation")

// Validator matches requests to documented operations and checks their
// responses.
type Validator struct {
	doc    *openapi3.T
	router routers.Router
}

// LoadDefault returns a validator for the bundled POS contract.
func LoadDefault() (*Validator, error) {
	return LoadFromBytes(posContract)
}

// LoadFromFile reads a contract from path; relative $refs resolve against
// its directory.
func LoadFromFile(path string) (*Validator, error) {
	doc, err := newLoader().LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("contract %s: %w", path, err)
	}
	return newValidator(doc)
}

func LoadFromBytes(b []byte) (*Validator, error) {
	doc, err := newLoader().LoadFromData(b)
	if err != nil {
		return nil, fmt.Errorf("contract: %w", err)
	}
	return newValidator(doc)
}

func newLoader() *openapi3.Loader {
	return &openapi3.Loader{IsExternalRefsAllowed: true}
}

func newValidator(doc *openapi3.T) (*Validator, error) {
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("contract is not a valid openapi document: %w", err)
	}
	r, err := legacy.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("contract routes: %w", err)
	}
	return &Validator{doc: doc, router: r}, nil
}

func (v *Validator) Doc() *openapi3.T { return v.doc }

// ValidateResponse checks one response against the operation documented for
// method and rawURL. A status the operation does not list is a violation.
// The operation's path template and method come back whenever the route is
// documented, even if the response fails, so coverage counts the call.
func (v *Validator) ValidateResponse(ctx context.Context, method, rawURL string, status int, header http.Header, body []byte) (string, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("parse url: %w", err)
	}
	req := &http.Request{Method: method, URL: u, Header: http.Header{}}

	route, params, err := v.router.FindRoute(req)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrNoRoute, err)
	}

	opts := &openapi3filter.Options{IncludeResponseStatus: true}
	in := &openapi3filter.ResponseValidationInput{
		RequestValidationInput: &openapi3filter.RequestValidationInput{
			Request:    req,
			PathParams: params,
			Route:      route,
			Options:    opts,
		},
		Status:  status,
		Header:  header,
		Body:    io.NopCloser(bytes.NewReader(body)),
		Options: opts,
	}
	return route.Path, route.Method, openapi3filter.ValidateResponse(ctx, in)
}
