// Package httpclient implements the concrete evaluator.WebClient
// against a real HTTP service over net/http, grounded on the original
// Rust project's RealClient (util/client.rs): resolve the request,
// issue it, and decode the response body into the ChimeraScript value
// model.
package httpclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/kyleoneill/chimerascript/internal/evaluator"
	"github.com/kyleoneill/chimerascript/internal/value"
)

// Client dispatches ChimeraScript HTTP calls using a standard
// *http.Client.
type Client struct {
	HTTP *http.Client
}

// New creates a Client with a sane default timeout. ChimeraScript's
// `Option` slot (`name=>value`) is reserved for per-call overrides (e.g.
// a future `timeout=>5` option); the core currently forwards options
// verbatim and acts on none of them (spec §4.6).
func New() *Client {
	return &Client{HTTP: &http.Client{Timeout: 30 * time.Second}}
}

// Do implements evaluator.WebClient.
func (c *Client) Do(req evaluator.Request) (value.Value, error) {
	fullURL := req.URL
	if len(req.Query) > 0 {
		q := url.Values{}
		for _, qp := range req.Query {
			q.Add(qp.Name, qp.Value)
		}
		fullURL += "?" + q.Encode()
	}

	var bodyReader io.Reader
	if len(req.Body) > 0 {
		fields := make(map[string]any, len(req.Body))
		for _, b := range req.Body {
			encoded, err := toJSON(b.Value)
			if err != nil {
				return value.Value{}, fmt.Errorf("encoding body field %q: %w", b.Name, err)
			}
			fields[b.Name] = encoded
		}
		raw, err := json.Marshal(fields)
		if err != nil {
			return value.Value{}, fmt.Errorf("encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequest(req.Method, fullURL, bodyReader)
	if err != nil {
		return value.Value{}, fmt.Errorf("building request: %w", err)
	}
	if bodyReader != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for _, h := range req.Headers {
		httpReq.Header.Set(h.Name, h.Value)
	}

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return value.Value{}, fmt.Errorf("%s %s: %w", req.Method, fullURL, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return value.Value{}, fmt.Errorf("reading response body: %w", err)
	}

	headers := make(map[string]value.Value, len(resp.Header))
	for name, values := range resp.Header {
		if len(values) > 0 {
			headers[name] = value.NewStr(values[0])
		}
	}

	return value.NewHttpResponse(resp.StatusCode, decodeBody(raw), headers), nil
}

// decodeBody implements spec §6's "body is produced by interpreting the
// wire response" rule: JSON decodes into the value model, non-JSON
// becomes a Str.
func decodeBody(raw []byte) value.Value {
	if len(raw) == 0 {
		return value.NewNull()
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var parsed any
	if err := dec.Decode(&parsed); err != nil {
		return value.NewStr(string(raw))
	}
	return fromJSON(parsed)
}

func fromJSON(raw any) value.Value {
	switch t := raw.(type) {
	case nil:
		return value.NewNull()
	case bool:
		return value.NewBool(t)
	case string:
		return value.NewStr(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return value.NewInt(i)
		}
		f, _ := t.Float64()
		return value.NewFloat(f)
	case []any:
		items := make([]value.Value, len(t))
		for i, el := range t {
			items[i] = fromJSON(el)
		}
		return value.NewList(items)
	case map[string]any:
		fields := make(map[string]value.Value, len(t))
		for k, v := range t {
			fields[k] = fromJSON(v)
		}
		return value.NewObject(fields)
	default:
		return value.NewNull()
	}
}

// toJSON is fromJSON's inverse, used to encode a body field's resolved
// Value for the outgoing request.
func toJSON(v value.Value) (any, error) {
	switch v.Kind() {
	case value.Null:
		return nil, nil
	case value.Bool:
		b, _ := v.AsBool()
		return b, nil
	case value.Int:
		i, _ := v.AsInt()
		return i, nil
	case value.Float:
		f, _ := v.AsFloat()
		return f, nil
	case value.Str:
		s, _ := v.AsStr()
		return s, nil
	case value.List:
		items, _ := v.AsList()
		out := make([]any, len(items))
		for i, item := range items {
			encoded, err := toJSON(item)
			if err != nil {
				return nil, err
			}
			out[i] = encoded
		}
		return out, nil
	case value.Object:
		fields, _ := v.AsObject()
		out := make(map[string]any, len(fields))
		for k, fv := range fields {
			encoded, err := toJSON(fv)
			if err != nil {
				return nil, err
			}
			out[k] = encoded
		}
		return out, nil
	default:
		return nil, fmt.Errorf("cannot encode a %s as JSON", value.TypeName(v))
	}
}
