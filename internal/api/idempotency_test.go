package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestReplayGuardWindow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	g := newReplayGuard(time.Minute)
	g.now = func() time.Time { return now }

	if !g.claim("k1") {
		t.Fatalf("first claim refused")
	}
	if g.claim("k1") {
		t.Fatalf("replay inside the window accepted")
	}
	now = now.Add(2 * time.Minute)
	if !g.claim("k1") {
		t.Fatalf("claim after the window refused")
	}
}

func TestBuyReplayIsRefused(t *testing.T) {
	ts := newTestServer(t)
	tb := newTable(t, ts, "alice")
	if status, body := doJSON(t, http.MethodPost, tb.base+"/start", tb.tokens["alice"], nil); status != http.StatusOK {
		t.Fatalf("start status=%d body=%v", status, body)
	}

	buy := func(key string) (int, map[string]any) {
		t.Helper()
		req, err := http.NewRequest(http.MethodPost, tb.base+"/buy", strings.NewReader(`{"commodity":"LEAD","quantity":1}`))
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+tb.tokens["alice"])
		req.Header.Set(idempotencyHeader, key)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("buy: %v", err)
		}
		defer resp.Body.Close()
		out := map[string]any{}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return resp.StatusCode, out
	}

	if status, body := buy("k-1"); status != http.StatusOK || body["ok"] != true {
		t.Fatalf("first buy status=%d body=%v", status, body)
	}
	if status, body := buy("k-1"); status != http.StatusConflict || body["error"] != "duplicate idempotency key" {
		t.Fatalf("replay status=%d body=%v", status, body)
	}
	if status, body := buy("k-2"); status != http.StatusOK || body["ok"] != true {
		t.Fatalf("fresh key status=%d body=%v", status, body)
	}

	status, body := doJSON(t, http.MethodGet, tb.base+"/", "", nil)
	if status != http.StatusOK {
		t.Fatalf("state status=%d", status)
	}
	players := body["game"].(map[string]any)["players"].([]any)
	held := players[0].(map[string]any)["holdings"].(map[string]any)["LEAD"]
	if held != float64(2) {
		t.Fatalf("LEAD held=%v want 2", held)
	}
}
