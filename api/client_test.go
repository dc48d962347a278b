package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thegitsss/lets-para3-sub002/status"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "tok-123", srv.Client()).WithIDGenerator(func() string { return "key-1" })
}

func TestListCases_QueryAndDecode(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/cases/my", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("archived"))
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
		assert.Equal(t, "true", r.URL.Query().Get("withFiles"))
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		assert.Empty(t, r.Header.Get(IdempotencyHeader), "reads carry no idempotency key")
		_, _ = w.Write([]byte(`[{"_id":"c1","status":"in_progress"},{"_id":"c2","status":"cancelled"}]`))
	})

	list, err := client.ListCases(context.Background(), ListParams{Archived: true, Limit: 25, WithFiles: true})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, status.InProgress, list[0].Status)
	assert.Equal(t, status.Closed, list[1].Status)
}

func TestListCases_WrappedShape(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"cases":[{"id":"c1","status":"open"}]}`))
	})

	list, err := client.ListCases(context.Background(), ListParams{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "c1", list[0].ID)
}

func TestWrites_CarryIdempotencyKeyAndBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/cases/c1/respond-invite", r.URL.Path)
		assert.Equal(t, "key-1", r.Header.Get(IdempotencyHeader))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "accept", body["decision"])
		_, _ = w.Write([]byte(`{"case":{"_id":"c1","status":"in progress","paralegal":"para-1"}}`))
	})

	got, err := client.RespondInvite(context.Background(), "c1", "accept")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "para-1", got.Paralegal.ID)
}

func TestWrites_UseKeyFromContext(t *testing.T) {
	var got []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Method+" "+r.Header.Get(IdempotencyHeader))
		_, _ = w.Write([]byte(`{"_id":"c1","status":"open"}`))
	})

	ctx := WithIdempotencyKey(context.Background(), "caller-key")
	_, err := client.SetArchived(ctx, "c1", true, "")
	require.NoError(t, err)
	_, err = client.GetCase(ctx, "c1")
	require.NoError(t, err)
	_, err = client.SetArchived(context.Background(), "c1", false, "")
	require.NoError(t, err)

	assert.Equal(t, []string{"PATCH caller-key", "GET ", "PATCH key-1"}, got)

	_, ok := IdempotencyKey(WithIdempotencyKey(context.Background(), ""))
	assert.False(t, ok)
}

func TestInvite_AcknowledgementOnly(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/cases/c1/invite/para-2", r.URL.Path)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	got, err := client.Invite(context.Background(), "c1", "para-2")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestComplete_Decode(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"downloadPath":"/exports/c1.zip","purgeScheduledFor":"2025-02-01T00:00:00Z"}`))
	})

	resp, err := client.Complete(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "/exports/c1.zip", resp.DownloadPath)
	require.NotNil(t, resp.PurgeScheduledFor)
	assert.Nil(t, resp.Case)
}

func TestTerminate_Decode(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "no progress", body["reason"])
		_, _ = w.Write([]byte(`{"requiresAdmin":true,"disputeId":"d-1"}`))
	})

	resp, err := client.Terminate(context.Background(), "c1", "no progress")
	require.NoError(t, err)
	assert.True(t, resp.RequiresAdmin)
	assert.Equal(t, "d-1", resp.DisputeID)
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		body     string
		sentinel error
		message  string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":"Session expired"}`, ErrUnauthorized, "Session expired"},
		{"forbidden", http.StatusForbidden, `{"msg":"Not your case"}`, ErrUnauthorized, "Not your case"},
		{"not found", http.StatusNotFound, `{"error":"Case not found"}`, ErrNotFound, "Case not found"},
		{"conflict", http.StatusBadRequest, `{"error":"Invalid status value"}`, ErrValidationConflict, "Invalid status value"},
		{"stripe", http.StatusBadRequest, `{"error":"Paralegal must connect Stripe before being hired"}`, ErrPaymentRequired, "Paralegal must connect Stripe before being hired"},
		{"payment", http.StatusPaymentRequired, `{}`, ErrPaymentRequired, "Payment Required"},
		{"nested", http.StatusConflict, `{"error":{"message":"Already hired"}}`, ErrValidationConflict, "Already hired"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.Hire(context.Background(), "c1", "p1")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.sentinel), "got %v", err)
			assert.Equal(t, tt.message, MessageOf(err))
		})
	}
}

func TestNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()
	client := NewClient(srv.URL, "", nil)

	_, err := client.GetCase(context.Background(), "c1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Equal(t, KindNetwork, KindOf(err))
}

func TestDefaultPaymentMethod(t *testing.T) {
	t.Run("present", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"paymentMethod":{"id":"pm_1","brand":"visa","last4":"4242"}}`))
		})
		pm, ok, err := client.DefaultPaymentMethod(context.Background())
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "4242", pm.Last4)
	})
	t.Run("null", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"paymentMethod":null}`))
		})
		_, ok, err := client.DefaultPaymentMethod(context.Background())
		require.NoError(t, err)
		assert.False(t, ok)
	})
	t.Run("404", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		_, ok, err := client.DefaultPaymentMethod(context.Background())
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestStartEscrow(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/payments/start-escrow", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "c1", body["caseId"])
		_, _ = w.Write([]byte(`{"clientSecret":"cs_1","paymentIntentId":"pi_1"}`))
	})

	intent, err := client.StartEscrow(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "cs_1", intent.ClientSecret)
	assert.Equal(t, "pi_1", intent.PaymentIntentID)
}
