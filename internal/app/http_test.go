package app

import (
	"net/http"
	"testing"
)

func TestNewHTTPClient_Config(t *testing.T) {
	c := newHTTPClient()
	if c.Timeout == 0 {
		t.Fatalf("expected non-zero timeout")
	}
	tr, ok := c.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("expected http.Transport")
	}
	if tr.MaxIdleConnsPerHost <= 2 {
		t.Fatalf("expected per-host pool above default, got %d", tr.MaxIdleConnsPerHost)
	}
	if tr == http.DefaultTransport {
		t.Fatalf("transport should not be default")
	}
}
