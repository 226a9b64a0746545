// Package httpclient holds the JSON-over-HTTP clients the roles use to call each other.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Zhima-Mochi/minishop-saga/internal/apperr"
	"github.com/Zhima-Mochi/minishop-saga/internal/observability"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
)

const maxErrorBody = 64 << 10

// errorBody mirrors the error envelope every role writes on non-2xx responses.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type client struct {
	peer    string
	baseURL string
	http    *http.Client
	tracer  observability.Tracer
}

func newClient(peer, baseURL string, hc *http.Client, tel observability.Observability) client {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return client{
		peer:    peer,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
		tracer:  observability.OrNop(tel).Tracer(),
	}
}

// do sends in as JSON and decodes a 2xx body into out. Transport failures and
// 5xx answers become DependencyUnavailable; 4xx answers keep the peer's reason.
func (c client) do(ctx context.Context, method, route, path string, in, out any) (err error) {
	ctx, span := c.tracer.Start(ctx, "HTTP "+method+" "+route,
		attribute.String("peer.service", c.peer),
		attribute.String("http.method", method),
		attribute.String("http.route", route),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, apperr.Kind(err))
		}
		span.End()
	}()

	var body io.Reader
	if in != nil {
		buf, merr := json.Marshal(in)
		if merr != nil {
			return fmt.Errorf("%s client: encode request: %w", c.peer, merr)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s client: build request: %w", c.peer, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.DependencyUnavailable(c.peer+" service unavailable", err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if derr := json.NewDecoder(resp.Body).Decode(out); derr != nil {
			return apperr.DependencyUnavailable(c.peer+" service sent an unreadable response", derr)
		}
		return nil
	}
	return c.statusError(resp)
}

func (c client) statusError(resp *http.Response) error {
	var eb errorBody
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &eb)
	}
	if eb.Error == "" {
		eb.Error = http.StatusText(resp.StatusCode)
	}
	cause := fmt.Errorf("%s responded %d: %s", c.peer, resp.StatusCode, eb.Error)

	if resp.StatusCode >= 500 {
		return apperr.DependencyUnavailable(c.peer+" service failed", cause)
	}
	reason := eb.Code
	if reason == "" {
		reason = apperr.ReasonInvalidRequest
	}
	return apperr.Wrap(classForStatus(resp.StatusCode, reason), reason, eb.Error, cause)
}

func classForStatus(status int, reason string) apperr.Class {
	switch status {
	case http.StatusNotFound:
		return apperr.ClassNotFound
	case http.StatusConflict:
		return apperr.ClassConflict
	}
	switch reason {
	case apperr.ReasonInvalidRequest, apperr.ReasonInvalidQuantity, apperr.ReasonInvalidStatus, apperr.ReasonInvalidID:
		return apperr.ClassValidation
	default:
		return apperr.ClassBusinessRejection
	}
}
