package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

func (a *API) StreamQuotes(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusBadRequest)
		return
	}

	q := r.URL.Query()
	intervalSec := parseIntParam(q.Get("interval"), 10, 5, 60)
	symbols := parseSymbols(q.Get("symbols"), a.cfg.MaxSymbols)
	if len(symbols) == 0 {
		http.Error(w, "symbols required", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	snaps, unsubscribe := a.hub.Subscribe(r.Context(), symbols, time.Duration(intervalSec)*time.Second)
	defer unsubscribe()

	for {
		select {
		case <-r.Context().Done():
			return
		case snap, ok := <-snaps:
			if !ok {
				return
			}
			payload := map[string]any{
				"tsISO":  nowISO(),
				"quotes": snap.Quotes.Quotes,
				"cache":  cacheStatus(snap.Hit),
			}
			if snap.Err != "" {
				payload["error"] = snap.Err
			}
			data, _ := json.Marshal(payload)
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
