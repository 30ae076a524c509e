package httpmsg

import (
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"testing"
)

func TestHeaders_CanonicalAndOrdered(t *testing.T) {
	var h Headers
	h.Add("x-b", "1")
	h.Add("content-type", "text/plain")
	h.Add("X-B", "2")

	if got := h.Names(); !slices.Equal(got, []string{"X-B", "Content-Type"}) {
		t.Errorf("Names() = %v", got)
	}
	if got := h.Get("x-B"); !slices.Equal(got, []string{"1", "2"}) {
		t.Errorf("Get(x-B) = %v", got)
	}
	if got := h.First("Content-type"); got != "text/plain" {
		t.Errorf("First = %q", got)
	}
}

func TestHeaders_SetUnset(t *testing.T) {
	h := NewHeaders()
	h.Add("a", "1", "2").Set("a", "3")
	if got := h.Get("a"); !slices.Equal(got, []string{"3"}) {
		t.Errorf("after Set: %v", got)
	}

	h.Unset("A")
	if h.Len() != 0 {
		t.Errorf("expected empty headers, got %v", h.All())
	}
	h.Unset("missing")
}

func TestHeaders_Import(t *testing.T) {
	a := NewHeaders().Add("vary", "accept")
	b := NewHeaders().Add("Vary", "accept", "origin").Add("x-extra", "y")

	a.Import(b)
	if got := a.Get("Vary"); !slices.Equal(got, []string{"accept", "origin"}) {
		t.Errorf("Vary = %v", got)
	}
	if got := a.First("X-Extra"); got != "y" {
		t.Errorf("X-Extra = %q", got)
	}
}

func TestHeaders_ParsePairs(t *testing.T) {
	h := NewHeaders()
	if err := h.ParsePairs("host", "example.com", "accept", "*/*"); err != nil {
		t.Fatalf("ParsePairs: %v", err)
	}
	if h.First("Host") != "example.com" || h.First("Accept") != "*/*" {
		t.Errorf("unexpected headers: %v", h.All())
	}
	if err := h.ParsePairs("odd"); err == nil {
		t.Error("expected error for odd pair count")
	}
}

func TestMessage_Trailers(t *testing.T) {
	res := NewResponse(http.StatusOK)
	res.AddTrailer("x-checksum", "abc")
	res.SetTrailer("x-timing", "5ms")

	if got := res.HeaderMap().Get("Trailer"); !slices.Equal(got, []string{"X-Checksum", "X-Timing"}) {
		t.Errorf("Trailer header = %v", got)
	}
	if got := res.Header("X-Checksum"); !slices.Equal(got, []string{"abc"}) {
		t.Errorf("Header(X-Checksum) = %v", got)
	}

	res.UnsetHeader("x-checksum")
	if got := res.HeaderMap().Get("Trailer"); !slices.Equal(got, []string{"X-Timing"}) {
		t.Errorf("Trailer header after unset = %v", got)
	}
	res.UnsetHeader("x-timing")
	if res.HeaderMap().Len() != 0 || res.TrailerMap().Len() != 0 {
		t.Errorf("expected no headers left, got %v / %v", res.Headers(), res.Trailers())
	}
}

func TestMessage_ImportHeaders(t *testing.T) {
	req := NewRequest("get", "/", nil, WithHeaders(NewHeaders().Add("x-request-id", "r1")))
	res := NewResponse(http.StatusNoContent)
	res.ImportHeaders(req)
	if got := res.HeaderMap().First("X-Request-Id"); got != "r1" {
		t.Errorf("imported header = %q", got)
	}
}

func TestRequest(t *testing.T) {
	q := url.Values{"tag": {"a", "b"}}
	body := NewBodyReader(io.NopCloser(strings.NewReader("hello")))
	req := NewRequest("post", "/news", q, WithBody(body))

	if req.Method() != http.MethodPost {
		t.Errorf("Method = %q", req.Method())
	}
	got := req.Query()
	got.Add("tag", "c")
	if len(req.Query()["tag"]) != 2 {
		t.Error("Query() must return a copy")
	}

	req.SetParams(map[string]string{"id": "7"})
	if req.Param("id") != "7" {
		t.Errorf("Param(id) = %q", req.Param("id"))
	}
	req.SetPath("/other")
	if req.Path() != "/other" {
		t.Errorf("Path = %q", req.Path())
	}

	b, err := req.Body().Bytes()
	if err != nil || string(b) != "hello" {
		t.Errorf("Body = %q, %v", b, err)
	}
	if err := req.Body().Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestResponse_StatusMessage(t *testing.T) {
	if got := NewResponse(http.StatusNotFound).StatusMessage(); got != "Not Found" {
		t.Errorf("default message = %q", got)
	}
	res := NewResponse(http.StatusInternalServerError, WithStatusMessage("boom"))
	if res.StatusCode() != 500 || res.StatusMessage() != "boom" {
		t.Errorf("got %d %q", res.StatusCode(), res.StatusMessage())
	}
	if NewBody(nil).Close() != nil {
		t.Error("buffer body Close should not fail")
	}
}
