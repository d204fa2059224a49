package integration

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/MahdiBaghbani/pairinbox-go/internal/platform/config"
	"github.com/MahdiBaghbani/pairinbox-go/tests/integration/harness"
)

type frameBody struct {
	Count   int  `json:"count"`
	Visible bool `json:"visible"`
	Open    bool `json:"open"`
	Rows    []struct {
		RequesterID       string  `json:"requesterId"`
		DisplayName       string  `json:"displayName"`
		RemainingFraction float64 `json:"remainingFraction"`
	} `json:"rows"`
}

func do(t *testing.T, method, url, body string) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, data
}

func listPending(t *testing.T, baseURL string) frameBody {
	t.Helper()
	code, data := do(t, "GET", baseURL+"/api/pair-requests", "")
	if code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d: %s", code, data)
	}
	var f frameBody
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("failed to decode frame: %v", err)
	}
	return f
}

func TestPairRequestLifecycle(t *testing.T) {
	ts := harness.StartTestServer(t, harness.Options{})

	for _, body := range []string{
		`{"requesterId":"u1","displayName":"Alice"}`,
		`{"requesterId":"u2","displayName":"Bob"}`,
	} {
		if code, data := do(t, "POST", ts.BaseURL+"/api/pair-requests", body); code != http.StatusCreated {
			t.Fatalf("submit: expected 201, got %d: %s", code, data)
		}
	}

	// Duplicate requester is rejected while pending.
	code, data := do(t, "POST", ts.BaseURL+"/api/pair-requests", `{"requesterId":"u1","displayName":"Alice again"}`)
	if code != http.StatusConflict {
		t.Errorf("duplicate: expected 409, got %d: %s", code, data)
	}

	f := listPending(t, ts.BaseURL)
	if f.Count != 2 || !f.Visible || len(f.Rows) != 2 {
		t.Fatalf("expected 2 visible rows, got %+v", f)
	}
	if f.Rows[0].RequesterID != "u1" || f.Rows[1].RequesterID != "u2" {
		t.Errorf("expected arrival order u1,u2, got %s,%s", f.Rows[0].RequesterID, f.Rows[1].RequesterID)
	}

	code, data = do(t, "POST", ts.BaseURL+"/api/pair-requests/u1/accept", "")
	if code != http.StatusOK || !strings.Contains(string(data), `"accepted"`) {
		t.Errorf("accept: expected 200 accepted, got %d: %s", code, data)
	}
	code, data = do(t, "POST", ts.BaseURL+"/api/pair-requests/u2/deny", "")
	if code != http.StatusOK || !strings.Contains(string(data), `"denied"`) {
		t.Errorf("deny: expected 200 denied, got %d: %s", code, data)
	}

	// Second resolution of the same requester is a no-op.
	if code, _ := do(t, "POST", ts.BaseURL+"/api/pair-requests/u1/deny", ""); code != http.StatusNotFound {
		t.Errorf("second resolve: expected 404, got %d", code)
	}

	f = listPending(t, ts.BaseURL)
	if f.Count != 0 || f.Visible {
		t.Errorf("expected hidden empty section, got %+v", f)
	}
}

func TestPairRequestExpiresAfterTTL(t *testing.T) {
	ts := harness.StartTestServer(t, harness.Options{TTL: time.Second})

	if code, data := do(t, "POST", ts.BaseURL+"/api/pair-requests", `{"requesterId":"u1","displayName":"Alice"}`); code != http.StatusCreated {
		t.Fatalf("submit: expected 201, got %d: %s", code, data)
	}

	deadline := time.Now().Add(5 * time.Second)
	for ts.Queue.Count() > 0 && time.Now().Before(deadline) {
		time.Sleep(100 * time.Millisecond)
	}
	if n := ts.Queue.Count(); n != 0 {
		t.Fatalf("expected sweeper to expire the request, %d still pending", n)
	}

	if code, _ := do(t, "POST", ts.BaseURL+"/api/pair-requests/u1/accept", ""); code != http.StatusNotFound {
		t.Errorf("accept after expiry: expected 404, got %d", code)
	}
}

func TestSectionStateSurvivesEmptyQueue(t *testing.T) {
	ts := harness.StartTestServer(t, harness.Options{})

	if code, data := do(t, "PUT", ts.BaseURL+"/api/pair-requests/section", `{"open":false}`); code != http.StatusOK {
		t.Fatalf("section: expected 200, got %d: %s", code, data)
	}
	do(t, "POST", ts.BaseURL+"/api/pair-requests", `{"requesterId":"u1","displayName":"Alice"}`)

	f := listPending(t, ts.BaseURL)
	if !f.Visible || f.Open || len(f.Rows) != 0 {
		t.Errorf("expected visible collapsed section without rows, got %+v", f)
	}
}

func TestInvalidSubmitRejected(t *testing.T) {
	ts := harness.StartTestServer(t, harness.Options{})

	for _, body := range []string{
		`{"displayName":"Alice"}`,
		`{"requesterId":"u1"}`,
		`not json`,
	} {
		if code, _ := do(t, "POST", ts.BaseURL+"/api/pair-requests", body); code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", body, code)
		}
	}
	if n := ts.Queue.Count(); n != 0 {
		t.Errorf("expected nothing queued, got %d", n)
	}
}

func TestBasePathMount(t *testing.T) {
	ts := harness.StartTestServer(t, harness.Options{
		Configure: func(cfg *config.Config) { cfg.ExternalBasePath = "/inbox" },
	})

	if !strings.HasSuffix(ts.BaseURL, "/inbox") {
		t.Fatalf("expected base URL under /inbox, got %s", ts.BaseURL)
	}
	if code, _ := do(t, "GET", ts.BaseURL+"/api/pair-requests", ""); code != http.StatusOK {
		t.Errorf("expected 200 under base path, got %d", code)
	}
	root := strings.TrimSuffix(ts.BaseURL, "/inbox")
	if code, _ := do(t, "GET", root+"/api/pair-requests", ""); code != http.StatusNotFound {
		t.Errorf("expected 404 outside base path, got %d", code)
	}
}
