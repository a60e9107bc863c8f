package whatsapp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/CalosDev/aquitado-ops/internal/health"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestGateway(t *testing.T, cfg Config) (*Gateway, *health.Tracker) {
	t.Helper()
	tracker := health.NewTracker()
	return NewGateway(cfg, tracker, testLogger()), tracker
}

func enabledConfig(baseURL string) Config {
	return Config{
		Enabled:       true,
		PhoneNumberID: "12345",
		AccessToken:   "token",
		APIVersion:    "v19.0",
		BaseURL:       baseURL,
	}
}

func TestGateway_SendText_InvalidPhone(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	g, tracker := newTestGateway(t, enabledConfig(srv.URL))

	result, err := g.SendText(context.Background(), TextMessage{To: "123", Text: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Sent {
		t.Error("6-digit phone must not send")
	}
	if result.Reason != ReasonInvalidInput {
		t.Errorf("reason: got %q, want %q", result.Reason, ReasonInvalidInput)
	}
	if called {
		t.Error("validation failure must not make a network call")
	}
	if len(tracker.Snapshot(nil)) != 0 {
		t.Error("validation failure must not be recorded as a sample")
	}
}

func TestGateway_SendText_EmptyText(t *testing.T) {
	g, _ := newTestGateway(t, enabledConfig("http://unused.invalid"))

	result, err := g.SendText(context.Background(), TextMessage{To: "18095551234", Text: "   "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Sent || result.Reason != ReasonInvalidInput {
		t.Errorf("got %+v, want invalid-input result", result)
	}
}

func TestGateway_SendText_DisabledMode(t *testing.T) {
	g, tracker := newTestGateway(t, Config{Enabled: false})

	result, err := g.SendText(context.Background(), TextMessage{To: "18095551234", Text: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Sent {
		t.Error("disabled mode must report sent=false")
	}
	if !strings.HasPrefix(result.ProviderMessageID, "simulated-") {
		t.Errorf("provider id: got %q, want simulated- prefix", result.ProviderMessageID)
	}
	if result.Reason != ReasonDisabled {
		t.Errorf("reason: got %q, want %q", result.Reason, ReasonDisabled)
	}
	if len(tracker.Snapshot(nil)) != 0 {
		t.Error("disabled-mode short circuit must not be recorded as a sample")
	}
}

func TestGateway_SendText_MissingCredentialsDisables(t *testing.T) {
	// Enabled flag set but no access token: still the simulated path.
	g, _ := newTestGateway(t, Config{Enabled: true, PhoneNumberID: "12345"})

	result, err := g.SendText(context.Background(), TextMessage{To: "18095551234", Text: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Reason != ReasonDisabled {
		t.Errorf("reason: got %q, want %q", result.Reason, ReasonDisabled)
	}
}

func TestGateway_SendText_Success(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &gotBody)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"messages": []map[string]string{{"id": "wamid.ABC123"}},
		})
	}))
	defer srv.Close()

	g, tracker := newTestGateway(t, enabledConfig(srv.URL))

	result, err := g.SendText(context.Background(), TextMessage{To: "+1 (809) 555-1234", Text: "hola"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Sent {
		t.Fatalf("expected sent=true, got %+v", result)
	}
	if result.ProviderMessageID != "wamid.ABC123" {
		t.Errorf("provider id: got %q", result.ProviderMessageID)
	}
	if gotPath != "/v19.0/12345/messages" {
		t.Errorf("path: got %q", gotPath)
	}
	if gotAuth != "Bearer token" {
		t.Errorf("auth header: got %q", gotAuth)
	}
	if gotBody["to"] != "18095551234" {
		t.Errorf("phone not normalized: got %v", gotBody["to"])
	}

	reports := tracker.Snapshot(nil)
	if len(reports) != 1 || reports[0].Key != "whatsapp:send_text" {
		t.Fatalf("expected one whatsapp:send_text sample, got %v", reports)
	}
	if reports[0].SuccessCount != 1 {
		t.Errorf("success count: got %d, want 1", reports[0].SuccessCount)
	}
}

func TestGateway_SendText_TruncatesLongText(t *testing.T) {
	var gotBody struct {
		Text struct {
			Body string `json:"body"`
		} `json:"text"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &gotBody)
		json.NewEncoder(w).Encode(map[string]any{"messages": []map[string]string{{"id": "wamid.X"}}})
	}))
	defer srv.Close()

	g, _ := newTestGateway(t, enabledConfig(srv.URL))

	long := strings.Repeat("a", 5000)
	if _, err := g.SendText(context.Background(), TextMessage{To: "18095551234", Text: long}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(gotBody.Text.Body) != maxTextLen {
		t.Errorf("text length: got %d, want %d", len(gotBody.Text.Body), maxTextLen)
	}
}

func TestGateway_SendText_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"message": "invalid recipient"}})
	}))
	defer srv.Close()

	g, tracker := newTestGateway(t, enabledConfig(srv.URL))

	result, err := g.SendText(context.Background(), TextMessage{To: "18095551234", Text: "hi"})
	if err != nil {
		t.Fatalf("non-2xx must not return an error, got %v", err)
	}
	if result.Sent {
		t.Error("non-2xx must report sent=false")
	}
	if result.Reason != ReasonProviderError {
		t.Errorf("reason: got %q, want %q", result.Reason, ReasonProviderError)
	}
	if !strings.Contains(string(result.RawResponse), "invalid recipient") {
		t.Errorf("raw response should carry the parsed error body, got %s", result.RawResponse)
	}

	r := tracker.Snapshot(nil)[0]
	if r.FailureCount != 1 {
		t.Errorf("failure count: got %d, want 1", r.FailureCount)
	}
}

func TestGateway_SendText_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // closed server → connection refused

	g, tracker := newTestGateway(t, enabledConfig(srv.URL))

	result, err := g.SendText(context.Background(), TextMessage{To: "18095551234", Text: "hi"})
	if err == nil {
		t.Fatal("transport failure must propagate an error")
	}
	if result.Sent {
		t.Error("transport failure must report sent=false")
	}

	r := tracker.Snapshot(nil)[0]
	if r.FailureCount != 1 {
		t.Errorf("failure count: got %d, want 1", r.FailureCount)
	}
}

func TestGateway_SendLocation_Success(t *testing.T) {
	var gotBody struct {
		Type     string `json:"type"`
		Location struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
			Name      string  `json:"name"`
			Address   string  `json:"address"`
		} `json:"location"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &gotBody)
		json.NewEncoder(w).Encode(map[string]any{"messages": []map[string]string{{"id": "wamid.LOC"}}})
	}))
	defer srv.Close()

	g, tracker := newTestGateway(t, enabledConfig(srv.URL))

	result, err := g.SendLocation(context.Background(), LocationMessage{
		To:        "18095551234",
		Latitude:  18.4861,
		Longitude: -69.9312,
		Name:      strings.Repeat("n", 150),
		Address:   strings.Repeat("a", 400),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Sent || result.ProviderMessageID != "wamid.LOC" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if gotBody.Type != "location" {
		t.Errorf("type: got %q", gotBody.Type)
	}
	if gotBody.Location.Latitude != 18.4861 || gotBody.Location.Longitude != -69.9312 {
		t.Errorf("coordinates: got %+v", gotBody.Location)
	}
	if len(gotBody.Location.Name) != maxLocNameLen {
		t.Errorf("name length: got %d, want %d", len(gotBody.Location.Name), maxLocNameLen)
	}
	if len(gotBody.Location.Address) != maxAddressLen {
		t.Errorf("address length: got %d, want %d", len(gotBody.Location.Address), maxAddressLen)
	}

	r := tracker.Snapshot(nil)[0]
	if r.Key != "whatsapp:send_location" {
		t.Errorf("tracker key: got %q", r.Key)
	}
}

func TestDigitsOnly(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"+1 (809) 555-1234", "18095551234"},
		{"18095551234", "18095551234"},
		{"abc", ""},
	}
	for _, tt := range tests {
		if got := digitsOnly(tt.in); got != tt.want {
			t.Errorf("digitsOnly(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestVerifyChallenge(t *testing.T) {
	tests := []struct {
		name        string
		mode, token string
		expected    string
		wantEcho    string
		wantOK      bool
	}{
		{"valid subscribe", "subscribe", "secret", "secret", "12345", true},
		{"wrong token", "subscribe", "nope", "secret", "", false},
		{"wrong mode", "unsubscribe", "secret", "secret", "", false},
		{"no token configured", "subscribe", "", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			echo, ok := VerifyChallenge(tt.mode, tt.token, "12345", tt.expected)
			if ok != tt.wantOK {
				t.Fatalf("ok: got %v, want %v", ok, tt.wantOK)
			}
			if echo != tt.wantEcho {
				t.Errorf("echo: got %q, want %q", echo, tt.wantEcho)
			}
		})
	}
}

func TestTruncateKeepsRuneBoundary(t *testing.T) {
	// A two-byte rune straddling the cap must be dropped whole.
	s := strings.Repeat("a", maxTextLen-1) + "ñ"
	got := truncate(s, maxTextLen)
	if !utf8.ValidString(got) {
		t.Fatalf("truncated text must stay valid UTF-8, got %q", got[len(got)-4:])
	}
	if len(got) != maxTextLen-1 {
		t.Errorf("length: got %d, want %d", len(got), maxTextLen-1)
	}

	if got := truncate("holá", 10); got != "holá" {
		t.Errorf("short text must pass through, got %q", got)
	}
	if got := truncate("abcdef", 3); got != "abc" {
		t.Errorf("ascii truncation: got %q", got)
	}
}
