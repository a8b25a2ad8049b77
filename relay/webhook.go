package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
)

const DeliveryIDHeader = "X-Delivery-Id"

var errInvalidPayload = errors.New("event is not valid JSON")

// DeliveryError describes one failed webhook POST.
type DeliveryError struct {
	URL    string
	Status int
	Err    error
}

func (e *DeliveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("deliver to %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("deliver to %s: unexpected status %d", e.URL, e.Status)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Webhook posts payloads, unmodified, to a fixed URL.
type Webhook struct {
	URL       string
	UserAgent string
	client    *http.Client
}

func NewWebhook(url string, client *http.Client) *Webhook {
	if client == nil {
		client = http.DefaultClient
	}
	return &Webhook{URL: url, client: client}
}

func (w *Webhook) Deliver(ctx context.Context, payload json.RawMessage) error {
	if !json.Valid(payload) {
		return &DeliveryError{URL: w.URL, Err: errInvalidPayload}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(payload))
	if err != nil {
		return &DeliveryError{URL: w.URL, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(DeliveryIDHeader, uuid.NewString())
	if w.UserAgent != "" {
		req.Header.Set("User-Agent", w.UserAgent)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return &DeliveryError{URL: w.URL, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &DeliveryError{URL: w.URL, Status: resp.StatusCode}
	}
	return nil
}
