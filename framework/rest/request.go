package rest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Request wraps *http.Request for the pipeline. It is the opaque request
// object bound under sequence.KeyRequest; actions outside this package treat
// it as any. Path parameters live on Args, not here — the wrapper exists
// before the route is matched.
type Request struct {
	raw *http.Request
}

// NewRequest wraps a standard *http.Request.
func NewRequest(r *http.Request) *Request {
	return &Request{raw: r}
}

// Raw returns the underlying *http.Request.
func (req *Request) Raw() *http.Request { return req.raw }

// Method returns the HTTP method.
func (req *Request) Method() string { return req.raw.Method }

// Path returns the URL path.
func (req *Request) Path() string { return req.raw.URL.Path }

// ContentType returns the Content-Type header value.
func (req *Request) ContentType() string {
	return req.raw.Header.Get("Content-Type")
}

// ── Body binding ──────────────────────────────────────────────────────────────

// Bind decodes the request body into v. JSON bodies decode through `json`
// tags; form bodies map through a JSON round-trip so the same tags work for
// both encodings.
func (req *Request) Bind(v any) error {
	if strings.Contains(req.ContentType(), "application/json") {
		return req.decodeJSON(v)
	}
	if err := req.raw.ParseForm(); err != nil {
		return err
	}
	flat := make(map[string]any, len(req.raw.PostForm))
	for key, vals := range req.raw.PostForm {
		if len(vals) == 1 {
			flat[key] = vals[0]
		} else {
			flat[key] = vals
		}
	}
	encoded, err := json.Marshal(flat)
	if err != nil {
		return err
	}
	return json.Unmarshal(encoded, v)
}

func (req *Request) decodeJSON(v any) error {
	dec := json.NewDecoder(req.raw.Body)
	defer req.raw.Body.Close()
	if err := dec.Decode(v); err != nil {
		if err == io.EOF {
			return fmt.Errorf("rest: empty request body")
		}
		return err
	}
	return nil
}

// ── Inputs ────────────────────────────────────────────────────────────────────

// Query returns a query-string value, falling back when absent.
func (req *Request) Query(key string, fallback ...string) string {
	if v := req.raw.URL.Query().Get(key); v != "" {
		return v
	}
	if len(fallback) > 0 {
		return fallback[0]
	}
	return ""
}

// Input returns a single input value from the query string or post body.
func (req *Request) Input(key string, fallback ...string) string {
	_ = req.raw.ParseForm()
	if v := req.raw.FormValue(key); v != "" {
		return v
	}
	if len(fallback) > 0 {
		return fallback[0]
	}
	return ""
}

// Header returns a request header value.
func (req *Request) Header(key string) string {
	return req.raw.Header.Get(key)
}

// BearerToken extracts the token from Authorization: Bearer <token>.
func (req *Request) BearerToken() string {
	const prefix = "Bearer "
	auth := req.raw.Header.Get("Authorization")
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return auth[len(prefix):]
}

// IsJSON reports whether the request speaks JSON on either side.
func (req *Request) IsJSON() bool {
	return strings.Contains(req.raw.Header.Get("Accept"), "application/json") ||
		strings.Contains(req.ContentType(), "application/json")
}
