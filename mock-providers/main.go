package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
)

var requestCount atomic.Int64

func main() {
	port := "9090"
	if p := os.Getenv("PORT"); p != "" {
		port = p
	}

	// Fake Expo push API — rejects tokens containing "bad", accepts the rest
	http.HandleFunc("/--/api/v2/push/send", func(w http.ResponseWriter, r *http.Request) {
		count := requestCount.Add(1)

		var msg struct {
			To    string `json:"to"`
			Title string `json:"title"`
		}
		json.NewDecoder(r.Body).Decode(&msg)
		logRequest(r, count, msg.To)

		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(msg.To, "bad") {
			json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{
					"status":  "error",
					"message": "token is not a valid push token",
					"details": map[string]any{"error": "DeviceNotRegistered"},
				},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"status": "ok", "id": fmt.Sprintf("ticket-%d", count)},
		})
	})

	// Fake Twilio messages API — numbers ending in 0000 fail, the rest queue
	http.HandleFunc("/2010-04-01/Accounts/", func(w http.ResponseWriter, r *http.Request) {
		count := requestCount.Add(1)
		r.ParseForm()
		to := r.FormValue("To")
		logRequest(r, count, to)

		w.Header().Set("Content-Type", "application/json")
		if strings.HasSuffix(to, "0000") {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]any{
				"message": "The 'To' number is not a valid phone number.",
				"status":  400,
			})
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"sid":    fmt.Sprintf("SM-mock-%d", count),
			"status": "queued",
			"price":  "-0.0079",
		})
	})

	// Stats endpoint — shows request count
	http.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int64{"total_requests": requestCount.Load()})
	})

	log.Printf("Mock provider server starting on :%s", port)
	log.Printf("  POST /--/api/v2/push/send          -> Expo-style push API")
	log.Printf("  POST /2010-04-01/Accounts/.../...  -> Twilio-style SMS API")
	log.Printf("  GET  /stats                        -> request count")

	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func logRequest(r *http.Request, count int64, to string) {
	fmt.Printf("[#%d] %s %s -> to=%s\n", count, r.Method, r.URL.Path, to)
}
