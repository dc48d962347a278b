// Package api is the HTTP client for the case marketplace backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/thegitsss/lets-para3-sub002/cases"
)

// IdempotencyHeader carries a key on every write so the backend can
// collapse retried requests.
const IdempotencyHeader = "Idempotency-Key"

type idempotencyKeyCtx struct{}

// WithIdempotencyKey makes writes issued with ctx send key instead of a
// freshly generated one.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKeyCtx{}, key)
}

// IdempotencyKey returns the key attached by WithIdempotencyKey.
func IdempotencyKey(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(idempotencyKeyCtx{}).(string)
	return key, ok && key != ""
}

type Client struct {
	baseURL     string
	token       string
	httpClient  *http.Client
	idGenerator func() string
}

// NewClient builds a client for baseURL. A nil httpClient uses
// http.DefaultClient; no client-side timeout is imposed beyond ctx.
func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		token:       token,
		httpClient:  httpClient,
		idGenerator: func() string { return uuid.NewString() },
	}
}

func (c *Client) WithIDGenerator(gen func() string) *Client {
	c.idGenerator = gen
	return c
}

type ListParams struct {
	Archived  bool
	Limit     int
	WithFiles bool
}

// PaymentMethod is the viewer's default payment method summary.
type PaymentMethod struct {
	ID    string `json:"id"`
	Brand string `json:"brand,omitempty"`
	Last4 string `json:"last4,omitempty"`
}

// EscrowIntent is returned by start-escrow and handed to the payment SDK.
type EscrowIntent struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId,omitempty"`
}

type CompleteResponse struct {
	DownloadPath      string
	PurgeScheduledFor *time.Time
	Case              *cases.Case
}

type TerminateResponse struct {
	RequiresAdmin bool
	DisputeID     string
	Case          *cases.Case
}

// ListCases fetches the viewer's cases.
func (c *Client) ListCases(ctx context.Context, params ListParams) ([]cases.Case, error) {
	q := url.Values{}
	if params.WithFiles {
		q.Set("withFiles", "true")
	}
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}
	q.Set("archived", strconv.FormatBool(params.Archived))

	body, err := c.do(ctx, http.MethodGet, "/api/cases/my?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	return decodeCaseList(body)
}

// GetCase fetches a single case including applicants and invites.
func (c *Client) GetCase(ctx context.Context, caseID string) (cases.Case, error) {
	body, err := c.do(ctx, http.MethodGet, casePath(caseID), nil)
	if err != nil {
		return cases.Case{}, err
	}
	got, err := decodeCaseEnvelope(body)
	if err != nil {
		return cases.Case{}, err
	}
	if got == nil {
		return cases.Case{}, &Error{Kind: KindNotFound, Message: "case not found"}
	}
	return *got, nil
}

// PatchCase applies a generic field update.
func (c *Client) PatchCase(ctx context.Context, caseID string, fields map[string]any) (*cases.Case, error) {
	body, err := c.do(ctx, http.MethodPatch, casePath(caseID), fields)
	if err != nil {
		return nil, err
	}
	return decodeCaseEnvelope(body)
}

// SetArchived toggles the archive flag. A non-empty status is sent along
// for the normalize-and-retry path.
func (c *Client) SetArchived(ctx context.Context, caseID string, archived bool, status string) (*cases.Case, error) {
	payload := map[string]any{"archived": archived}
	if status != "" {
		payload["status"] = status
	}
	body, err := c.do(ctx, http.MethodPatch, casePath(caseID)+"/archive", payload)
	if err != nil {
		return nil, err
	}
	return decodeCaseEnvelope(body)
}

// DeleteCase permanently deletes a case.
func (c *Client) DeleteCase(ctx context.Context, caseID string) error {
	_, err := c.do(ctx, http.MethodDelete, casePath(caseID), nil)
	return err
}

func (c *Client) Hire(ctx context.Context, caseID, paralegalID string) (*cases.Case, error) {
	body, err := c.do(ctx, http.MethodPost, casePath(caseID)+"/hire/"+url.PathEscape(paralegalID), nil)
	if err != nil {
		return nil, err
	}
	return decodeCaseEnvelope(body)
}

func (c *Client) Invite(ctx context.Context, caseID, paralegalID string) (*cases.Case, error) {
	body, err := c.do(ctx, http.MethodPost, casePath(caseID)+"/invite/"+url.PathEscape(paralegalID), nil)
	if err != nil {
		return nil, err
	}
	return decodeCaseEnvelope(body)
}

func (c *Client) RespondInvite(ctx context.Context, caseID, decision string) (*cases.Case, error) {
	body, err := c.do(ctx, http.MethodPost, casePath(caseID)+"/respond-invite", map[string]any{"decision": decision})
	if err != nil {
		return nil, err
	}
	return decodeCaseEnvelope(body)
}

func (c *Client) Apply(ctx context.Context, caseID, note string) (*cases.Case, error) {
	body, err := c.do(ctx, http.MethodPost, casePath(caseID)+"/apply", map[string]any{"note": note})
	if err != nil {
		return nil, err
	}
	return decodeCaseEnvelope(body)
}

func (c *Client) Complete(ctx context.Context, caseID string) (CompleteResponse, error) {
	body, err := c.do(ctx, http.MethodPost, casePath(caseID)+"/complete", nil)
	if err != nil {
		return CompleteResponse{}, err
	}

	var raw struct {
		DownloadPath      string     `json:"downloadPath"`
		PurgeScheduledFor *time.Time `json:"purgeScheduledFor"`
	}
	if err := unmarshalBody(body, &raw); err != nil {
		return CompleteResponse{}, err
	}
	got, err := decodeCaseEnvelope(body)
	if err != nil {
		return CompleteResponse{}, err
	}
	return CompleteResponse{DownloadPath: raw.DownloadPath, PurgeScheduledFor: raw.PurgeScheduledFor, Case: got}, nil
}

func (c *Client) Terminate(ctx context.Context, caseID, reason string) (TerminateResponse, error) {
	body, err := c.do(ctx, http.MethodPost, casePath(caseID)+"/terminate", map[string]any{"reason": reason})
	if err != nil {
		return TerminateResponse{}, err
	}

	var raw struct {
		RequiresAdmin bool   `json:"requiresAdmin"`
		DisputeID     string `json:"disputeId"`
	}
	if err := unmarshalBody(body, &raw); err != nil {
		return TerminateResponse{}, err
	}
	got, err := decodeCaseEnvelope(body)
	if err != nil {
		return TerminateResponse{}, err
	}
	return TerminateResponse{RequiresAdmin: raw.RequiresAdmin, DisputeID: raw.DisputeID, Case: got}, nil
}

// StartEscrow creates the payment intent for a case.
func (c *Client) StartEscrow(ctx context.Context, caseID string) (EscrowIntent, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/payments/start-escrow", map[string]any{"caseId": caseID})
	if err != nil {
		return EscrowIntent{}, err
	}
	var intent EscrowIntent
	if err := unmarshalBody(body, &intent); err != nil {
		return EscrowIntent{}, err
	}
	if intent.ClientSecret == "" {
		return EscrowIntent{}, &Error{Kind: KindUnknown, Message: "missing client secret"}
	}
	return intent, nil
}

// DefaultPaymentMethod reports the viewer's default payment method. The
// boolean is false when none is on file.
func (c *Client) DefaultPaymentMethod(ctx context.Context) (PaymentMethod, bool, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/payments/payment-method/default", nil)
	if err != nil {
		if KindOf(err) == KindNotFound {
			return PaymentMethod{}, false, nil
		}
		return PaymentMethod{}, false, err
	}

	var raw struct {
		PaymentMethod *PaymentMethod `json:"paymentMethod"`
		ID            string         `json:"id"`
		Brand         string         `json:"brand"`
		Last4         string         `json:"last4"`
	}
	if err := unmarshalBody(body, &raw); err != nil {
		return PaymentMethod{}, false, err
	}
	if raw.PaymentMethod != nil && raw.PaymentMethod.ID != "" {
		return *raw.PaymentMethod, true, nil
	}
	if raw.ID != "" {
		return PaymentMethod{ID: raw.ID, Brand: raw.Brand, Last4: raw.Last4}, true, nil
	}
	return PaymentMethod{}, false, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("api: encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("api: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if method != http.MethodGet {
		key, ok := IdempotencyKey(ctx)
		if !ok {
			key = c.idGenerator()
		}
		req.Header.Set(IdempotencyHeader, key)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{StatusCode: resp.StatusCode, Kind: KindNetwork, Message: err.Error(), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := failureMessage(body)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &Error{StatusCode: resp.StatusCode, Kind: classify(resp.StatusCode, msg), Message: msg}
	}
	return body, nil
}

func casePath(caseID string) string {
	return "/api/cases/" + url.PathEscape(caseID)
}

func failureMessage(body []byte) string {
	var payload struct {
		Error   json.RawMessage `json:"error"`
		Msg     string          `json:"msg"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return strings.TrimSpace(string(body))
	}
	if len(payload.Error) > 0 {
		var s string
		if err := json.Unmarshal(payload.Error, &s); err == nil && s != "" {
			return s
		}
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(payload.Error, &nested); err == nil && nested.Message != "" {
			return nested.Message
		}
	}
	if payload.Msg != "" {
		return payload.Msg
	}
	return payload.Message
}

func unmarshalBody(body []byte, out any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("api: decode response: %w", err)
	}
	return nil
}

// decodeCaseEnvelope accepts a bare case, {"case": {...}}, or a response
// without a case (returns nil).
func decodeCaseEnvelope(body []byte) (*cases.Case, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, fmt.Errorf("api: decode response: %w", err)
	}

	raw, ok := fields["case"]
	if !ok {
		_, hasID := fields["_id"]
		if _, ok := fields["id"]; ok {
			hasID = true
		}
		_, hasStatus := fields["status"]
		if !hasID || !hasStatus {
			return nil, nil
		}
		raw = trimmed
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil
	}

	var out cases.Case
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("api: decode case: %w", err)
	}
	return &out, nil
}

func decodeCaseList(body []byte) ([]cases.Case, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return []cases.Case{}, nil
	}

	var out []cases.Case
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &out); err != nil {
			return nil, fmt.Errorf("api: decode case list: %w", err)
		}
		return out, nil
	}

	var wrapped struct {
		Cases []cases.Case `json:"cases"`
		Items []cases.Case `json:"items"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, fmt.Errorf("api: decode case list: %w", err)
	}
	if wrapped.Cases != nil {
		return wrapped.Cases, nil
	}
	if wrapped.Items != nil {
		return wrapped.Items, nil
	}
	return []cases.Case{}, nil
}
