package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/recontent/recontent/internal/config"
	"github.com/recontent/recontent/internal/jobs"
	"github.com/recontent/recontent/internal/queue"
	"github.com/recontent/recontent/internal/security"
	"github.com/recontent/recontent/internal/storage"
)

const testWebhookSecret = "whsec_test_secret"

type serverFixture struct {
	srv     *Server
	queue   *queue.MemoryQueue
	objects *storage.MemoryStore
}

func newTestServer(t *testing.T) *serverFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Port:                "8080",
		Env:                 "development",
		LogLevel:            "error",
		JobQueue:            "jobs:composite",
		S3BucketRaw:         "raw",
		S3BucketProcessed:   "processed",
		StripeWebhookSecret: testWebhookSecret,
		StripePriceBasic:    "price_basic",
		StripePricePro:      "price_pro",
		StripePricePremium:  "price_premium",
		MockAI:              true,
	}

	q := queue.NewMemoryQueue(16)
	objects := storage.NewMemoryStore()

	srv, err := New(cfg, WithQueue(q), WithObjectStore(objects))
	require.NoError(t, err)

	return &serverFixture{srv: srv, queue: q, objects: objects}
}

func (f *serverFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.srv.Router().ServeHTTP(w, req)
	return w
}

func (f *serverFixture) postWebhook(t *testing.T, eventType string, object map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(object)
	require.NoError(t, err)
	payload, err := json.Marshal(map[string]any{
		"id":   "evt_test",
		"type": eventType,
		"data": map[string]any{"object": json.RawMessage(raw)},
	})
	require.NoError(t, err)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(signed.Payload))
	req.Header.Set("Stripe-Signature", signed.Header)
	w := httptest.NewRecorder()
	f.srv.Router().ServeHTTP(w, req)
	return w
}

// checkoutOrg provisions an org through the billing webhook and returns its id.
func (f *serverFixture) checkoutOrg(t *testing.T) string {
	t.Helper()

	w := f.postWebhook(t, "checkout.session.completed", map[string]any{
		"id":           "cs_test",
		"customer":     "cus_test",
		"subscription": "sub_test",
		"metadata":     map[string]string{"plan_key": "basic"},
		"customer_details": map[string]any{
			"email": "broker@example.com",
			"name":  "Skyline Realty",
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	o, err := f.srv.orgs.GetByStripeSubscription(context.Background(), "sub_test")
	require.NoError(t, err)
	return o.ID
}

func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 160, 120))
	for y := 0; y < 120; y++ {
		for x := 0; x < 160; x++ {
			img.Set(x, y, color.RGBA{R: uint8(2 * x), G: uint8(y), B: 64, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

// uploadAsset walks the presigned upload flow over HTTP.
func (f *serverFixture) uploadAsset(t *testing.T, orgID, kind string) string {
	t.Helper()

	w := f.do(t, http.MethodPost, "/v1/orgs/"+orgID+"/assets/upload-url", map[string]any{
		"kind":        kind,
		"filename":    "photo.jpg",
		"contentType": "image/jpeg",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Asset struct {
			ID     string `json:"id"`
			Bucket string `json:"bucket"`
			Key    string `json:"key"`
		} `json:"asset"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	// The client PUTs to the presigned URL; in tests we write directly.
	require.NoError(t, f.objects.Put(context.Background(),
		resp.Asset.Bucket, resp.Asset.Key, bytes.NewReader(testJPEG(t)), "image/jpeg"))

	w = f.do(t, http.MethodPost, fmt.Sprintf("/v1/orgs/%s/assets/%s/confirm", orgID, resp.Asset.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return resp.Asset.ID
}

func TestHealthAndInfoEndpoints(t *testing.T) {
	f := newTestServer(t)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/health/live", nil).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api", nil).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/metrics", nil).Code)

	// Readiness flips only after Run.
	assert.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodGet, "/health/ready", nil).Code)
}

func TestPlansEndpoint(t *testing.T) {
	f := newTestServer(t)

	w := f.do(t, http.MethodGet, "/v1/plans", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Plans []struct {
			Plan        string `json:"plan"`
			WeeklyLimit int    `json:"weeklyLimit"`
		} `json:"plans"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Plans, 3)
	assert.Equal(t, "basic", resp.Plans[0].Plan)
	assert.Equal(t, 2, resp.Plans[0].WeeklyLimit)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	f := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Stripe-Signature", "t=1,v1=bogus")
	w := httptest.NewRecorder()
	f.srv.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookProvisionsOrg(t *testing.T) {
	f := newTestServer(t)
	orgID := f.checkoutOrg(t)

	w := f.do(t, http.MethodGet, "/v1/orgs/"+orgID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Org struct {
			Plan        string `json:"plan"`
			Status      string `json:"status"`
			WeeklyLimit int    `json:"weeklyLimit"`
		} `json:"org"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "basic", resp.Org.Plan)
	assert.Equal(t, "active", resp.Org.Status)
	assert.Equal(t, 2, resp.Org.WeeklyLimit)
}

func TestWebhookIgnoresUnknownEventTypes(t *testing.T) {
	f := newTestServer(t)

	w := f.postWebhook(t, "customer.created", map[string]any{"id": "cus_1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ignored":true`)
}

func TestSubmitJobEndToEnd(t *testing.T) {
	f := newTestServer(t)
	ctx := context.Background()
	orgID := f.checkoutOrg(t)

	headshot := f.uploadAsset(t, orgID, "headshot")
	room := f.uploadAsset(t, orgID, "listing")

	w := f.do(t, http.MethodPost, "/v1/orgs/"+orgID+"/jobs", map[string]any{
		"type":            "composite",
		"headshotAssetId": headshot,
		"roomAssetId":     room,
		"brief":           "Sunny 3-bed craftsman near the park",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var submitResp struct {
		Job struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"job"`
		Quota struct {
			Used  int `json:"used"`
			Limit int `json:"limit"`
		} `json:"quota"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &submitResp))
	assert.Equal(t, "queued", submitResp.Job.Status)
	assert.Equal(t, 1, submitResp.Quota.Used)
	assert.Equal(t, 2, submitResp.Quota.Limit)

	// Drain the in-process queue the way Run's worker goroutine would.
	msg, err := f.queue.Consume(ctx)
	require.NoError(t, err)
	require.NoError(t, f.srv.worker.Process(ctx, msg))

	w = f.do(t, http.MethodGet, fmt.Sprintf("/v1/orgs/%s/jobs/%s", orgID, submitResp.Job.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var jobResp struct {
		Job jobs.Job `json:"job"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &jobResp))
	assert.Equal(t, jobs.StatusComplete, jobResp.Job.Status)
	assert.Len(t, jobResp.Job.OutputAssetIDs, 9)

	// Outputs are downloadable through the asset API.
	w = f.do(t, http.MethodGet,
		fmt.Sprintf("/v1/orgs/%s/assets/%s/download-url", orgID, jobResp.Job.OutputAssetIDs[0]), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestQuotaExhaustionOverHTTP(t *testing.T) {
	f := newTestServer(t)
	orgID := f.checkoutOrg(t)
	room := f.uploadAsset(t, orgID, "listing")

	submit := func() *httptest.ResponseRecorder {
		return f.do(t, http.MethodPost, "/v1/orgs/"+orgID+"/jobs", map[string]any{
			"type":        "staging",
			"roomAssetId": room,
			"brief":       "stage it",
		})
	}

	// Basic plan allows two jobs per window.
	require.Equal(t, http.StatusCreated, submit().Code)
	require.Equal(t, http.StatusCreated, submit().Code)

	w := submit()
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "quota_exceeded")

	w = f.do(t, http.MethodGet, "/v1/orgs/"+orgID+"/quota", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var quotaResp struct {
		Quota struct {
			Used  int `json:"used"`
			Limit int `json:"limit"`
		} `json:"quota"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &quotaResp))
	assert.Equal(t, 2, quotaResp.Quota.Used)
}

func TestPaymentFailureSuspendsOrgOverHTTP(t *testing.T) {
	f := newTestServer(t)
	orgID := f.checkoutOrg(t)
	room := f.uploadAsset(t, orgID, "listing")

	w := f.postWebhook(t, "invoice.payment_failed", map[string]any{
		"id":           "in_test",
		"subscription": "sub_test",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPost, "/v1/orgs/"+orgID+"/jobs", map[string]any{
		"type":        "staging",
		"roomAssetId": room,
	})
	require.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Contains(t, w.Body.String(), "org_suspended")
}

func TestDraftPostOverHTTP(t *testing.T) {
	f := newTestServer(t)
	orgID := f.checkoutOrg(t)

	w := f.do(t, http.MethodPost, "/v1/orgs/"+orgID+"/posts", map[string]any{
		"platform":      "instagram",
		"brief":         "Open house Sunday 2-4pm",
		"imageAssetIds": []string{"ast_1"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Post struct {
			ID      string `json:"id"`
			Caption string `json:"caption"`
			Status  string `json:"status"`
		} `json:"post"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "draft", resp.Post.Status)
	assert.Contains(t, resp.Post.Caption, "Open house Sunday 2-4pm")

	w = f.do(t, http.MethodGet, "/v1/orgs/"+orgID+"/posts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), resp.Post.ID)
}

func TestUnconfiguredWebhookReturns503(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Port: "8080", Env: "development", LogLevel: "error",
		S3BucketRaw: "raw", S3BucketProcessed: "processed", MockAI: true,
	}
	srv, err := New(cfg, WithQueue(queue.NewMemoryQueue(4)), WithObjectStore(storage.NewMemoryStore()))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestProductionRejectsUnsafeObjectStoreEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Port: "8080", Env: "production", LogLevel: "error",
		S3BucketRaw: "raw", S3BucketProcessed: "processed",
		S3Endpoint: "http://169.254.169.254", MockAI: true,
	}
	_, err := New(cfg, WithQueue(queue.NewMemoryQueue(4)))
	require.ErrorIs(t, err, security.ErrUnsafeEndpoint)
}
