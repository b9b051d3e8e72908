// Package fakeclient provides a recording fake evaluator.WebClient so
// the evaluator and runner are testable without a live server, per spec
// §9 ("a recording fake is sufficient for property and scenario tests").
// Grounded on the original Rust project's testing/util/fake_client.rs:
// by default a call echoes its own resolved path/query/body back as the
// response body and its headers as the response headers, with a
// verb-appropriate status code; tests can
// also program a specific response or error for a given method+URL.
package fakeclient

import (
	"fmt"

	"github.com/kyleoneill/chimerascript/internal/evaluator"
	"github.com/kyleoneill/chimerascript/internal/value"
)

// Client is a recording fake WebClient.
type Client struct {
	Calls     []evaluator.Request
	responses map[string]value.Value
	errors    map[string]error
}

// New creates an empty fake client.
func New() *Client {
	return &Client{}
}

// SetResponse programs the response for method+url, overriding the
// default echo behavior.
func (c *Client) SetResponse(method, url string, status int, body value.Value, headers map[string]value.Value) {
	if c.responses == nil {
		c.responses = make(map[string]value.Value)
	}
	c.responses[key(method, url)] = value.NewHttpResponse(status, body, headers)
}

// SetError makes every later call to method+url fail as a transport error.
func (c *Client) SetError(method, url string, err error) {
	if c.errors == nil {
		c.errors = make(map[string]error)
	}
	c.errors[key(method, url)] = err
}

// Do implements evaluator.WebClient.
func (c *Client) Do(req evaluator.Request) (value.Value, error) {
	c.Calls = append(c.Calls, req)
	k := key(req.Method, req.URL)
	if err, ok := c.errors[k]; ok {
		return value.Value{}, err
	}
	if resp, ok := c.responses[k]; ok {
		return resp, nil
	}
	return c.echo(req), nil
}

func (c *Client) echo(req evaluator.Request) value.Value {
	fields := map[string]value.Value{"path": value.NewStr(req.URL)}
	for _, q := range req.Query {
		fields[q.Name] = value.NewStr(q.Value)
	}
	for _, b := range req.Body {
		fields[b.Name] = b.Value
	}
	headers := make(map[string]value.Value, len(req.Headers))
	for _, h := range req.Headers {
		headers[h.Name] = value.NewStr(h.Value)
	}
	return value.NewHttpResponse(defaultStatus(req.Method), value.NewObject(fields), headers)
}

func defaultStatus(method string) int {
	if method == "POST" {
		return 201
	}
	return 200
}

func key(method, url string) string {
	return fmt.Sprintf("%s %s", method, url)
}
