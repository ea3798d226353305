package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// handleStream serves a Server-Sent Events stream of issue statuses. The
// repository is re-evaluated every streamInterval and a "status" event is
// sent whenever the totals or any issue's bucket changed. Evaluation errors
// are sent as "error" events and the stream continues.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	var last []byte
	send := func() {
		rep, err := s.eval.Evaluate(r.Context())
		if err != nil {
			msg, _ := json.Marshal(map[string]string{"error": err.Error()})
			fmt.Fprintf(w, "event: error\ndata: %s\n\n", msg)
			flusher.Flush()
			return
		}
		view := statusView(rep)
		// Compare without the timestamp so unchanged evaluations stay quiet.
		key, _ := json.Marshal(struct {
			Totals interface{}
			Issues interface{}
		}{view.Totals, view.Issues})
		if bytes.Equal(key, last) {
			return
		}
		last = key
		data, err := json.Marshal(view)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "event: status\ndata: %s\n\n", data)
		flusher.Flush()
	}

	send()
	tick := time.NewTicker(s.streamInterval)
	defer tick.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-tick.C:
			send()
		}
	}
}
