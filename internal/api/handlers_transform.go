package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dgallion1/formflat/internal/forward"
	"github.com/dgallion1/formflat/internal/metrics"
	"github.com/dgallion1/formflat/internal/normalize"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const msgTransformFailed = "Failed to transform JSON"

func (s *Server) handleTransform(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	outcome := metrics.OutcomeFailed
	defer func() { s.metrics.ObserveTransform(outcome, time.Since(start)) }()

	log := s.log.With(zap.String("request_id", middleware.GetReqID(r.Context())))

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			outcome = metrics.OutcomeTooLarge
			jsonError(w, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return
		}
		outcome = metrics.OutcomeInvalid
		jsonError(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	payload, err := s.transform(r.Context(), body)
	if err != nil {
		switch {
		case errors.Is(err, normalize.ErrInvalidJSON):
			outcome = metrics.OutcomeInvalid
			jsonError(w, "invalid JSON body", http.StatusBadRequest)
		case errors.Is(err, normalize.ErrDepthExceeded):
			outcome = metrics.OutcomeTooDeep
			jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		default:
			log.Error("transform error", zap.Error(err), zap.Int("body_bytes", len(body)))
			jsonError(w, msgTransformFailed, http.StatusInternalServerError)
		}
		return
	}

	outcome = metrics.OutcomeOK
	w.Header().Set("Content-Type", "application/json")
	w.Write(payload)

	if raw := r.URL.Query().Get("forward_url"); raw != "" {
		s.forward(log, raw, payload, middleware.GetReqID(r.Context()))
	}
}

// transform runs the normalizer and encodes its result, turning a panic
// anywhere in the walk into an error.
func (s *Server) transform(ctx context.Context, body []byte) (payload []byte, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("transform panic: %v", p)
		}
	}()
	result, err := s.transformer.Transform(ctx, body)
	if err != nil {
		return nil, err
	}
	return normalize.Marshal(result)
}

// forward hands the response bytes to the dispatcher. Problems are logged
// only; the caller already has its response.
func (s *Server) forward(log *zap.Logger, raw string, payload []byte, requestID string) {
	log = log.With(zap.String("forward_url", raw))
	if s.forwarder == nil {
		log.Warn("forwarding disabled, ignoring forward_url")
		return
	}
	target, err := parseForwardURL(raw)
	if err != nil {
		s.metrics.Forward(metrics.OutcomeInvalid)
		log.Warn("ignoring forward_url", zap.Error(err))
		return
	}
	id, err := s.forwarder.Submit(forward.Job{URL: target, Body: payload, RequestID: requestID})
	if err != nil {
		log.Warn("forward not queued", zap.Error(err))
		return
	}
	log.Debug("forward queued", zap.String("delivery_id", id))
}

func parseForwardURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse forward_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("forward_url scheme %q is not http or https", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.New("forward_url has no host")
	}
	return u.String(), nil
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
