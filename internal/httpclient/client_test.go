package httpclient

import (
	"testing"

	"github.com/kyleoneill/chimerascript/internal/evaluator"
	"github.com/kyleoneill/chimerascript/internal/testing/fixtureserver"
	"github.com/kyleoneill/chimerascript/internal/value"
)

func TestDoEchoesQueryAndBody(t *testing.T) {
	srv := fixtureserver.New()
	defer srv.Close()

	c := New()
	resp, err := c.Do(evaluator.Request{
		Method: "POST",
		URL:    srv.URL + "/echo",
		Query:  []evaluator.NamedString{{Name: "active", Value: "true"}},
		Body:   []evaluator.NamedValue{{Name: "name", Value: value.NewStr("alice")}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	status, body, _, ok := resp.AsHttpResponse()
	if !ok || status != 200 {
		t.Fatalf("expected a 200 HttpResponse, got status=%d ok=%v", status, ok)
	}
	query, err := value.Field(body, "query")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	active, err := value.Field(query, "active")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s, _ := active.AsStr(); s != "true" {
		t.Errorf("got query.active = %q, want %q", s, "true")
	}
	reqBody, err := value.Field(body, "body")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	name, err := value.Field(reqBody, "name")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s, _ := name.AsStr(); s != "alice" {
		t.Errorf("got body.name = %q, want %q", s, "alice")
	}
}

func TestDoCreateAndDeleteResource(t *testing.T) {
	srv := fixtureserver.New()
	defer srv.Close()

	c := New()
	created, err := c.Do(evaluator.Request{
		Method: "POST",
		URL:    srv.URL + "/resources",
		Body:   []evaluator.NamedValue{{Name: "label", Value: value.NewStr("widget")}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	status, body, _, _ := created.AsHttpResponse()
	if status != 201 {
		t.Fatalf("expected a 201 on create, got %d", status)
	}
	idVal, err := value.Field(body, "id")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	id, _ := idVal.AsStr()
	if !srv.Has(id) {
		t.Fatalf("expected the fixture server to have resource %q after create", id)
	}

	deleted, err := c.Do(evaluator.Request{Method: "DELETE", URL: srv.URL + "/resources/" + id})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status, _, _, _ := deleted.AsHttpResponse(); status != 200 {
		t.Errorf("expected a 200 on delete, got %d", status)
	}
	if srv.Has(id) {
		t.Error("expected the fixture server to no longer have the resource after delete")
	}
}

func TestDoEmptyBodyDecodesAsNull(t *testing.T) {
	srv := fixtureserver.New()
	defer srv.Close()

	c := New()
	resp, err := c.Do(evaluator.Request{Method: "GET", URL: srv.URL + "/resources/missing"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	status, body, _, _ := resp.AsHttpResponse()
	if status != 404 {
		t.Errorf("expected a 404, got %d", status)
	}
	if body.Kind() != value.Null {
		t.Errorf("expected an empty response body to decode as Null, got %s", value.TypeName(body))
	}
}

func TestDoTransportErrorOnUnreachableHost(t *testing.T) {
	c := New()
	_, err := c.Do(evaluator.Request{Method: "GET", URL: "http://127.0.0.1:1/unreachable"})
	if err == nil {
		t.Fatal("expected an error connecting to an unreachable host")
	}
}
