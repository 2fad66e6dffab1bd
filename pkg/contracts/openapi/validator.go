// Package openapi checks HTTP traffic against the service's OpenAPI document.
// Handler tests run every request and response through it so the published
// contract and the gin routes cannot drift apart.
package openapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
)

// Validator matches requests to operations of a loaded document
type Validator struct {
	doc        *openapi3.T
	router     routers.Router
	operations map[string]struct{}
}

// NewValidator loads and validates the document at path
func NewValidator(path string) (*Validator, error) {
	doc, err := openapi3.NewLoader().LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load openapi document %s: %w", path, err)
	}
	return newValidator(doc)
}

// NewValidatorFromBytes is NewValidator for an in-memory document
func NewValidatorFromBytes(data []byte) (*Validator, error) {
	doc, err := openapi3.NewLoader().LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	return newValidator(doc)
}

func newValidator(doc *openapi3.T) (*Validator, error) {
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("invalid openapi document: %w", err)
	}

	// requests built by httptest carry no server host; match on path only
	doc.Servers = nil
	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("build openapi router: %w", err)
	}

	v := &Validator{doc: doc, router: router, operations: make(map[string]struct{})}
	for path, item := range doc.Paths.Map() {
		for method := range item.Operations() {
			v.operations[operationKey(method, path)] = struct{}{}
		}
	}
	return v, nil
}

func (v *Validator) input(req *http.Request) (*openapi3filter.RequestValidationInput, error) {
	route, params, err := v.router.FindRoute(req)
	if err != nil {
		return nil, fmt.Errorf("no operation for %s %s: %w", req.Method, req.URL.Path, err)
	}
	return &openapi3filter.RequestValidationInput{
		Request:    req,
		PathParams: params,
		Route:      route,
		Options: &openapi3filter.Options{
			MultiError:         true,
			AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
		},
	}, nil
}

// ValidateRequest checks path, query, headers and body of req. The body is
// left readable for the handler.
func (v *Validator) ValidateRequest(req *http.Request) error {
	in, err := v.input(req)
	if err != nil {
		return err
	}
	if err := openapi3filter.ValidateRequest(req.Context(), in); err != nil {
		return fmt.Errorf("request %s %s: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

// ValidateResponse checks resp against the responses declared for req's
// operation. Undeclared status codes are an error.
func (v *Validator) ValidateResponse(req *http.Request, resp *http.Response) error {
	in, err := v.input(req)
	if err != nil {
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	out := &openapi3filter.ResponseValidationInput{
		RequestValidationInput: in,
		Status:                 resp.StatusCode,
		Header:                 resp.Header,
		Body:                   io.NopCloser(bytes.NewReader(body)),
		Options: &openapi3filter.Options{
			MultiError:            true,
			IncludeResponseStatus: true,
		},
	}
	if err := openapi3filter.ValidateResponse(req.Context(), out); err != nil {
		return fmt.Errorf("response %d for %s %s: %w", resp.StatusCode, req.Method, req.URL.Path, err)
	}
	return nil
}

// Documents reports whether the document declares method on path. Both
// gin (":id") and OpenAPI ("{id}") parameter syntax are accepted; parameter
// names are not compared.
func (v *Validator) Documents(method, path string) bool {
	_, ok := v.operations[operationKey(method, path)]
	return ok
}

// Operations lists "METHOD /path" for every declared operation, sorted
func (v *Validator) Operations() []string {
	out := make([]string, 0, len(v.operations))
	for op := range v.operations {
		out = append(out, op)
	}
	sort.Strings(out)
	return out
}

func operationKey(method, path string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		if strings.HasPrefix(s, ":") || strings.HasPrefix(s, "{") {
			segments[i] = "*"
		}
	}
	return strings.ToUpper(method) + " " + strings.Join(segments, "/")
}
