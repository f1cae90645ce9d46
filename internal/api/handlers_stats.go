package api

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]any{
		"upload_backend":  s.cfg.UploadBackend,
		"max_body_bytes":  s.cfg.MaxBodyBytes,
		"max_depth":       s.cfg.MaxDepth,
		"lenient_rows":    s.cfg.LenientRows,
		"label_delimiter": s.cfg.LabelDelimiter,
	}
	if s.forwarder != nil {
		stats["forward_queue_depth"] = s.forwarder.QueueDepth()
	}

	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(stats)
}
