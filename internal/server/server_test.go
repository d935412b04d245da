package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/heibot/chatguard/ledger"
	"github.com/heibot/chatguard/moderation"
	"github.com/heibot/chatguard/visibility"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type downLedger struct{}

func (downLedger) IncrementAndGet(ctx context.Context, userID string) (int, error) {
	return 0, errors.New("dial tcp 127.0.0.1:6379: connection refused")
}

func (downLedger) Get(ctx context.Context, userID string) (int, error) {
	return 0, errors.New("dial tcp 127.0.0.1:6379: connection refused")
}

func (downLedger) Ping(ctx context.Context) error {
	return errors.New("dial tcp 127.0.0.1:6379: connection refused")
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestServer(t *testing.T, l ledger.Ledger, renderer *visibility.Renderer) *Server {
	t.Helper()
	mod, err := moderation.New(moderation.Options{Ledger: l, Logger: quiet})
	if err != nil {
		t.Fatal(err)
	}
	return New(mod, Options{Renderer: renderer, Logger: quiet, MaxBatch: 3})
}

func do(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode %s %s response %q: %v", method, path, w.Body.String(), err)
		}
	}
	return w, out
}

func TestModerate(t *testing.T) {
	mem := ledger.NewMemory()
	s := newTestServer(t, mem, nil)

	tests := []struct {
		name     string
		body     string
		status   int
		filtered string
		action   string
		count    float64
		canSend  bool
	}{
		{"clean", `{"user_id":"u1","text":"내일 뵙겠습니다"}`, http.StatusOK, "내일 뵙겠습니다", "none", 0, true},
		{"phone", `{"user_id":"u1","text":"010-1234-5678"}`, http.StatusOK, "***", "warning", 1, true},
		{"low severity", `{"user_id":"u1","text":"주문번호 1234567890123"}`, http.StatusOK, "주문번호 1234567890123", "none", 0, true},
		{"second", `{"user_id":"u1","text":"직거래 해요"}`, http.StatusOK, "*** 해요", "warning", 2, true},
		{"third", `{"user_id":"u1","text":"카톡으로 연락주세요"}`, http.StatusOK, "***주세요", "temp_ban", 3, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, out := do(t, s, http.MethodPost, "/v1/moderate", tt.body)
			if w.Code != tt.status {
				t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
			}
			if out["filtered_text"] != tt.filtered || out["action"] != tt.action {
				t.Errorf("response = %v", out)
			}
			if out["warning_count"] != tt.count || out["can_send"] != tt.canSend {
				t.Errorf("count/can_send = %v/%v", out["warning_count"], out["can_send"])
			}
		})
	}
}

func TestModerate_ResponseFields(t *testing.T) {
	s := newTestServer(t, ledger.NewMemory(), nil)

	_, out := do(t, s, http.MethodPost, "/v1/moderate", `{"user_id":"u1","text":"직거래 하면 수수료 아낄 수 있어요"}`)
	if out["is_violation"] != true || out["category"] != "offplatform_solicitation" || out["severity"] != "high" {
		t.Errorf("response = %v", out)
	}
	if out["matched_rule_id"] != "offplatform_direct_deal" || out["warning_message"] == nil {
		t.Errorf("response = %v", out)
	}
	recipient, _ := out["recipient"].(map[string]any)
	if recipient["visible"] != true || recipient["text"] != out["filtered_text"] {
		t.Errorf("recipient = %v", recipient)
	}
}

func TestModerate_BadRequests(t *testing.T) {
	s := newTestServer(t, ledger.NewMemory(), nil)

	for _, body := range []string{`{"text":"hello"}`, `{"user_id":"  ","text":"hello"}`, `not json`} {
		w, _ := do(t, s, http.MethodPost, "/v1/moderate", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d", body, w.Code)
		}
	}
}

func TestModerate_LedgerDown(t *testing.T) {
	s := newTestServer(t, downLedger{}, nil)

	w, out := do(t, s, http.MethodPost, "/v1/moderate", `{"user_id":"u1","text":"010-1234-5678"}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", w.Code)
	}
	if out["filtered_text"] != "***" || out["action"] != "none" || out["error"] != "ledger_unavailable" {
		t.Errorf("response = %v", out)
	}

	// Clean messages do not need the ledger.
	w, _ = do(t, s, http.MethodPost, "/v1/moderate", `{"user_id":"u1","text":"hello"}`)
	if w.Code != http.StatusOK {
		t.Errorf("clean message status = %d", w.Code)
	}

	w, _ = do(t, s, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("healthz status = %d", w.Code)
	}
}

func TestModerateBatch(t *testing.T) {
	s := newTestServer(t, ledger.NewMemory(), nil)

	body := `{"messages":[
		{"user_id":"a","text":"hello"},
		{"user_id":"b","text":"010-1234-5678"},
		{"user_id":"a","text":"주문번호 1234567890123"}
	]}`
	w, out := do(t, s, http.MethodPost, "/v1/moderate/batch", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	results, _ := out["results"].([]any)
	if len(results) != 3 {
		t.Fatalf("results = %v", out["results"])
	}
	wantFiltered := []string{"hello", "***", "주문번호 1234567890123"}
	for i, r := range results {
		if got := r.(map[string]any)["filtered_text"]; got != wantFiltered[i] {
			t.Errorf("results[%d].filtered_text = %v", i, got)
		}
	}

	summary, _ := out["summary"].(map[string]any)
	if summary["total"] != 3.0 || summary["violations"] != 2.0 || summary["blocked"] != 1.0 || summary["strictest_action"] != "warning" {
		t.Errorf("summary = %v", summary)
	}

	tooMany := `{"messages":[{"user_id":"a","text":"1"},{"user_id":"a","text":"2"},{"user_id":"a","text":"3"},{"user_id":"a","text":"4"}]}`
	if w, _ := do(t, s, http.MethodPost, "/v1/moderate/batch", tooMany); w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized batch status = %d", w.Code)
	}
	if w, _ := do(t, s, http.MethodPost, "/v1/moderate/batch", `{"messages":[{"text":"x"}]}`); w.Code != http.StatusBadRequest {
		t.Errorf("missing user status = %d", w.Code)
	}
}

func TestPreview(t *testing.T) {
	r := visibility.NewRenderer()
	r.Policy = visibility.PolicyReplaceOnViolation
	mem := ledger.NewMemory()
	s := newTestServer(t, mem, r)

	tests := []struct {
		viewer string
		want   string
	}{
		{"admin", "010-1234-5678"},
		{"sender", "***"},
		{"recipient", r.Replacement},
		{"", r.Replacement},
	}
	for _, tt := range tests {
		body := `{"text":"010-1234-5678","viewer":"` + tt.viewer + `"}`
		w, out := do(t, s, http.MethodPost, "/v1/preview", body)
		if w.Code != http.StatusOK {
			t.Fatalf("viewer %q: status = %d", tt.viewer, w.Code)
		}
		delivery, _ := out["delivery"].(map[string]any)
		if delivery["text"] != tt.want {
			t.Errorf("viewer %q: delivery = %v", tt.viewer, delivery)
		}
		if out["safe"] != false {
			t.Errorf("viewer %q: safe = %v", tt.viewer, out["safe"])
		}
	}

	if w, _ := do(t, s, http.MethodPost, "/v1/preview", `{"text":"x","viewer":"robot"}`); w.Code != http.StatusBadRequest {
		t.Errorf("unknown viewer status = %d", w.Code)
	}
	if n, _ := mem.Get(context.Background(), "anyone"); n != 0 {
		t.Error("preview touched the ledger")
	}
}

func TestViolations(t *testing.T) {
	mem := ledger.NewMemory()
	s := newTestServer(t, mem, nil)

	if w, _ := do(t, s, http.MethodGet, "/v1/users/u1/violations", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown user status = %d", w.Code)
	}

	for i := 0; i < 3; i++ {
		do(t, s, http.MethodPost, "/v1/moderate", `{"user_id":"u1","text":"010-1234-5678"}`)
	}

	w, out := do(t, s, http.MethodGet, "/v1/users/u1/violations", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	history, _ := out["history"].([]any)
	if out["warning_count"] != 3.0 || len(history) != 3 || out["action"] != "temp_ban" {
		t.Errorf("response = %v", out)
	}

	if w, _ := do(t, s, http.MethodDelete, "/v1/users/u1/violations", ""); w.Code != http.StatusNoContent {
		t.Errorf("reset status = %d", w.Code)
	}
	if n, _ := mem.Get(context.Background(), "u1"); n != 0 {
		t.Errorf("count after reset = %d", n)
	}
}

func TestRulesAndHealth(t *testing.T) {
	s := newTestServer(t, ledger.NewMemory(), nil)

	w, out := do(t, s, http.MethodGet, "/v1/rules", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	list, _ := out["rules"].([]any)
	if len(list) == 0 {
		t.Fatal("no rules listed")
	}
	first := list[0].(map[string]any)
	if first["severity"] != "critical" || first["id"] == "" {
		t.Errorf("first rule = %v", first)
	}

	w, out = do(t, s, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK || out["status"] != "ok" {
		t.Errorf("healthz = %d %v", w.Code, out)
	}
}

func TestRun_Shutdown(t *testing.T) {
	s := newTestServer(t, ledger.NewMemory(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "127.0.0.1:0") }()
	cancel()

	if err := <-done; err != nil {
		t.Errorf("Run: %v", err)
	}
}
