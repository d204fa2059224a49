package integration

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/MahdiBaghbani/pairinbox-go/tests/integration/harness"
)

func TestUIPage_AcceptThroughForm(t *testing.T) {
	ts := harness.StartTestServer(t, harness.Options{})

	do(t, "POST", ts.BaseURL+"/api/pair-requests", `{"requesterId":"u1","displayName":"Alice"}`)

	code, page := do(t, "GET", ts.BaseURL+"/ui/pair-requests", "")
	if code != http.StatusOK {
		t.Fatalf("page: expected 200, got %d", code)
	}
	if !strings.Contains(string(page), "Alice") {
		t.Error("expected Alice on the page")
	}

	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := client.PostForm(ts.BaseURL+"/ui/pair-requests/u1/accept", url.Values{})
	if err != nil {
		t.Fatalf("form post failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Errorf("expected 303, got %d", resp.StatusCode)
	}
	if ts.Queue.Count() != 0 {
		t.Errorf("expected request resolved, %d pending", ts.Queue.Count())
	}
}
