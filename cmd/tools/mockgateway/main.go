// mockgateway is a local stand-in for the hosted payment provider. It
// implements the redirect protocol end to end: form-encoded initiate with a
// plain-text session id, a hosted payment page that redirects the browser
// back with trans_id/id_get, and a verify endpoint that answers each
// transaction exactly once.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
)

type session struct {
	ID            int64
	Amount        int64
	CorrelationID string
	ReturnURL     string
	TransID       string
	Verified      bool
	Approve       bool
}

type gateway struct {
	mu       sync.Mutex
	nextID   int64
	sessions map[int64]*session
	apiKey   string
	approve  bool
}

func main() {
	addr := flag.String("addr", ":9090", "Listen address")
	apiKey := flag.String("api-key", "test-key", "Expected api_key")
	approve := flag.Bool("approve", true, "Approve payments (false simulates declines)")
	flag.Parse()

	g := &gateway{nextID: 1000, sessions: map[int64]*session{}, apiKey: *apiKey, approve: *approve}

	mux := http.NewServeMux()
	mux.HandleFunc("/send", g.send)
	mux.HandleFunc("/gateway/", g.page)
	mux.HandleFunc("/verify", g.verify)

	log.Printf("mock gateway on %s (approve=%v)", *addr, *approve)
	log.Fatal(http.ListenAndServe(*addr, mux))
}

// POST /send: initiate. Plain-text numeric session id on success, "-1" on
// rejection.
func (g *gateway) send(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	if r.PostFormValue("api_key") != g.apiKey {
		fmt.Fprint(w, "-1")
		return
	}
	amount, err := strconv.ParseInt(r.PostFormValue("amount"), 10, 64)
	if err != nil || amount <= 0 {
		fmt.Fprint(w, "-2")
		return
	}

	g.mu.Lock()
	g.nextID++
	s := &session{
		ID:            g.nextID,
		Amount:        amount,
		CorrelationID: r.PostFormValue("correlation_id"),
		ReturnURL:     r.PostFormValue("redirect"),
		Approve:       g.approve,
	}
	g.sessions[s.ID] = s
	g.mu.Unlock()

	fmt.Fprintf(w, "%d", s.ID)
}

// GET /gateway/{id}: the "hosted payment page". Immediately sends the
// browser back to the return URL with trans_id and id_get.
func (g *gateway) page(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/gateway/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	g.mu.Lock()
	s, ok := g.sessions[id]
	if ok && s.TransID == "" {
		s.TransID = fmt.Sprintf("tx-%d", s.ID)
	}
	g.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}

	u := fmt.Sprintf("%s?trans_id=%s&id_get=%d", s.ReturnURL, s.TransID, s.ID)
	http.Redirect(w, r, u, http.StatusFound)
}

// POST /verify: JSON with numeric status. status 1 = paid, 0 = declined,
// 101 = already verified. Each transaction is answerable once.
func (g *gateway) verify(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	resp := map[string]any{"status": 0}
	defer func() {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}()

	if r.PostFormValue("api_key") != g.apiKey {
		return
	}
	id, err := strconv.ParseInt(r.PostFormValue("id_get"), 10, 64)
	if err != nil {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	s, ok := g.sessions[id]
	if !ok || r.PostFormValue("trans_id") != s.TransID {
		return
	}
	if s.Verified {
		resp["status"] = 101
		return
	}
	s.Verified = true

	if s.Approve {
		resp["status"] = 1
	}
	resp["trans_id"] = s.TransID
	resp["correlation_id"] = s.CorrelationID
	resp["amount"] = s.Amount
}
