package forward

import (
	"context"
	"errors"
	"fmt"
)

// Deliver posts the job body to its URL, retrying transient failures.
// It returns the status code of the last response received, if any.
func (d *Dispatcher) Deliver(ctx context.Context, job Job) (int, error) {
	var status int
	err := withRetry(ctx, d.cfg.Retries, d.cfg.BaseBackoff, func(ctx context.Context) error {
		code, err := d.post(ctx, job)
		if code != 0 {
			status = code
		}
		return err
	})
	return status, err
}

// post makes one attempt bounded by the per-attempt timeout.
func (d *Dispatcher) post(ctx context.Context, job Job) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	req := d.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader(HeaderDeliveryID, job.ID).
		SetBody(job.Body)
	if job.RequestID != "" {
		req.SetHeader(HeaderRequestID, job.RequestID)
	}

	resp, err := req.Post(job.URL)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return 0, fmt.Errorf("forward to %s: %w", job.URL, err)
		}
		return 0, &RetryableError{Message: err.Error()}
	}
	code := resp.StatusCode()
	if retryableStatus(code) {
		return code, &RetryableError{StatusCode: code, Message: resp.String()}
	}
	if !resp.IsSuccess() {
		return code, fmt.Errorf("forward to %s: status %d: %s", job.URL, code, truncate(resp.String(), 200))
	}
	return code, nil
}
