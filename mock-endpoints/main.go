package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"
)

// Mock WhatsApp Cloud API server for local development. Point
// WHATSAPP_BASE_URL at this server to exercise the outbound gateway without
// real credentials. Recipient phones steer the behavior: a phone ending in
// 0000 fails with a Graph-style error, one ending in 1111 responds after a
// 3 second delay.

var requestCount atomic.Int64

type sendRequest struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
}

func main() {
	port := "9090"
	if p := os.Getenv("PORT"); p != "" {
		port = p
	}

	// Matches /{version}/{phone-number-id}/messages
	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/messages") {
			http.NotFound(w, r)
			return
		}
		count := requestCount.Add(1)

		body, _ := io.ReadAll(r.Body)
		var req sendRequest
		json.Unmarshal(body, &req)

		switch {
		case strings.HasSuffix(req.To, "0000"):
			logRequest(r, count, req, 500)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{
					"message": "(#131000) Something went wrong",
					"type":    "OAuthException",
					"code":    131000,
				},
			})
			return
		case strings.HasSuffix(req.To, "1111"):
			time.Sleep(3 * time.Second)
		}

		logRequest(r, count, req, 200)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"messaging_product": "whatsapp",
			"contacts":          []map[string]string{{"input": req.To, "wa_id": req.To}},
			"messages":          []map[string]string{{"id": fmt.Sprintf("wamid.mock-%d", count)}},
		})
	})

	// Stats endpoint — shows request count
	http.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int64{"total_sends": requestCount.Load()})
	})

	log.Printf("Mock WhatsApp API server starting on :%s", port)
	log.Printf("  POST /{version}/{phone-id}/messages -> 200 with wamid")
	log.Printf("  ...to ending 0000                   -> 500 Graph error")
	log.Printf("  ...to ending 1111                   -> 200 after 3s")
	log.Printf("  GET  /stats                         -> send count")

	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func logRequest(r *http.Request, count int64, req sendRequest, status int) {
	fmt.Printf("[#%d] %s %s -> %d | to=%s type=%s auth=%s\n",
		count,
		r.Method,
		r.URL.Path,
		status,
		req.To,
		req.Type,
		truncate(r.Header.Get("Authorization"), 16),
	)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
