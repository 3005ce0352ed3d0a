package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/NoteFox/app/models"
	"github.com/ManuelReschke/NoteFox/app/repository"
	"github.com/ManuelReschke/NoteFox/internal/pkg/billing"
	"github.com/ManuelReschke/NoteFox/internal/pkg/database"
	"github.com/ManuelReschke/NoteFox/internal/pkg/entitlements"
	"github.com/ManuelReschke/NoteFox/internal/pkg/extract"
	"github.com/ManuelReschke/NoteFox/internal/pkg/logging"
	"github.com/ManuelReschke/NoteFox/internal/pkg/middleware"
	"github.com/ManuelReschke/NoteFox/internal/pkg/quota"
	"github.com/ManuelReschke/NoteFox/internal/pkg/studio"
	"github.com/ManuelReschke/NoteFox/internal/pkg/usercontext"
)

const secret = "whsec_test"

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func readJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return out
}

func billingApp(t *testing.T, db *gorm.DB) *fiber.App {
	t.Helper()
	svc := billing.NewService(billing.NewRepository(db), quota.NewSQLStore(db),
		billing.NewPlanLookup(map[string]string{"plan_basic": "basic"}))
	bc := NewBillingController(svc, secret, logging.Discard())
	app := fiber.New()
	app.Post("/webhook", bc.HandleRazorpayWebhook)
	return app
}

func signedRequest(body, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(HeaderRazorpaySignature, signature)
	}
	return req
}

func subscriptionBody(event, planID, status string) string {
	return fmt.Sprintf(`{"event":%q,"payload":{"subscription":{"entity":{"id":"sub_9","plan_id":%q,"customer_id":"user-9","status":%q,"start_at":1773705600,"current_end":1776384000}}}}`, event, planID, status)
}

func TestRazorpayWebhookResponses(t *testing.T) {
	charged := subscriptionBody("subscription.charged", "plan_basic", "active")

	tests := []struct {
		name      string
		body      string
		signature string
		status    int
		code      string
	}{
		{name: "missing signature", body: charged, status: fiber.StatusBadRequest, code: "missing_signature"},
		{name: "forged signature", body: charged, signature: billing.SignRazorpayPayload([]byte(charged), "nope"), status: fiber.StatusBadRequest, code: "invalid_signature"},
		{name: "malformed payload", body: `{"event":"subscription.charged","payload":{}}`, status: fiber.StatusBadRequest, code: "invalid_payload"},
		{name: "event without subscription entity", body: `{"event":"payment.captured","payload":{}}`, status: fiber.StatusBadRequest, code: "invalid_payload"},
		{name: "unrecognized plan", body: subscriptionBody("subscription.charged", "plan_gold", "active"), status: fiber.StatusBadRequest, code: "unrecognized_plan"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := tt.signature
			if sig == "" && tt.code != "missing_signature" {
				sig = billing.SignRazorpayPayload([]byte(tt.body), secret)
			}
			resp, err := billingApp(t, newTestDB(t)).Test(signedRequest(tt.body, sig), -1)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, readJSON(t, resp)["error"])
		})
	}
}

func TestRazorpayWebhookProcessesAndAcknowledges(t *testing.T) {
	db := newTestDB(t)
	app := billingApp(t, db)

	body := subscriptionBody("subscription.charged", "plan_basic", "active")
	resp, err := app.Test(signedRequest(body, billing.SignRazorpayPayload([]byte(body), secret)), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	out := readJSON(t, resp)
	assert.Equal(t, "success", out["status"])
	result := out["result"].(map[string]interface{})
	assert.Equal(t, "basic", result["plan"])
	assert.Equal(t, false, result["usage_reset"])

	var user models.User
	require.NoError(t, db.Where("id = ?", "user-9").First(&user).Error)
	assert.Equal(t, "basic", user.Plan)

	// same body, no event id: deduplicated by content hash
	resp, err = app.Test(signedRequest(body, billing.SignRazorpayPayload([]byte(body), secret)), -1)
	require.NoError(t, err)
	assert.Equal(t, true, readJSON(t, resp)["duplicate"])

	var events int64
	require.NoError(t, db.Model(&models.BillingWebhookEvent{}).Count(&events).Error)
	assert.Equal(t, int64(1), events)
}

func TestRazorpayWebhookStorageFailure(t *testing.T) {
	db := newTestDB(t)
	app := billingApp(t, db)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	body := subscriptionBody("subscription.charged", "plan_basic", "active")
	resp, err := app.Test(signedRequest(body, billing.SignRazorpayPayload([]byte(body), secret)), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "reconciliation_failed", readJSON(t, resp)["error"])
}

type failingGenerator struct{}

func (failingGenerator) Complete(context.Context, studio.Request) (string, error) {
	return "", fmt.Errorf("%w: status 503", studio.ErrUpstream)
}

type echoGenerator struct{}

func (echoGenerator) Complete(_ context.Context, req studio.Request) (string, error) {
	return req.Messages[len(req.Messages)-1].Content, nil
}

func studyApp(gen studio.Generator) *fiber.App {
	sc := NewStudyController(studio.New(gen), extract.NewFetcher(1<<20), logging.Discard())
	app := fiber.New()
	app.Post("/summarize", middleware.ValidateBody[TextRequest](), sc.HandleSummarize)
	app.Post("/handwritten", middleware.ValidateBody[HandwrittenRequest](), sc.HandleGenerateHandwritten)
	app.Post("/url", middleware.ValidateBody[URLRequest](), sc.HandleFetchAndExtractURL)
	app.Post("/upload", middleware.RequireUpload("file", 1<<20), sc.HandleUploadAndExtract)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestStudyGenerationFailureIsBadGateway(t *testing.T) {
	resp := postJSON(t, studyApp(failingGenerator{}), "/summarize", `{"text":"cells"}`)
	assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "generation_failed", readJSON(t, resp)["error"])
}

func TestStudyFailureLogsConsumedGrant(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	sc := NewStudyController(studio.New(failingGenerator{}), extract.NewFetcher(1<<20), log)
	app := fiber.New()
	app.Post("/summarize", middleware.ValidateBody[TextRequest](), func(c *fiber.Ctx) error {
		c.Locals(usercontext.KeyGrant, &quota.Grant{
			UserID:    "user-1",
			Feature:   entitlements.FeatureSummaries,
			Plan:      entitlements.PlanFree,
			UsedCount: 2,
		})
		return c.Next()
	}, sc.HandleSummarize)

	resp := postJSON(t, app, "/summarize", `{"text":"cells"}`)
	assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "summarize", entry.Data["op"])
	assert.Equal(t, entitlements.FeatureSummaries, entry.Data["feature"])
	assert.Equal(t, entitlements.PlanFree, entry.Data["plan"])
	assert.Equal(t, int64(2), entry.Data["used_count"])
}

func TestHandwrittenDefaultsStyle(t *testing.T) {
	resp := postJSON(t, studyApp(echoGenerator{}), "/handwritten", `{"text":"mitosis"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	out := readJSON(t, resp)
	assert.Equal(t, "neat", out["style"])
	assert.Contains(t, out["handwritten_text"], "mitosis")

	resp = postJSON(t, studyApp(echoGenerator{}), "/handwritten", `{"text":"mitosis","style":"fancy"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestFetchAndExtractURL(t *testing.T) {
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/article":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = io.WriteString(w, "<html><body><script>x()</script><p>Chlorophyll absorbs light.</p></body></html>")
		default:
			http.NotFound(w, r)
		}
	}))
	defer page.Close()

	resp := postJSON(t, studyApp(echoGenerator{}), "/url", fmt.Sprintf(`{"url":%q}`, page.URL+"/article"))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "Chlorophyll absorbs light.", readJSON(t, resp)["extracted_text"])

	resp = postJSON(t, studyApp(echoGenerator{}), "/url", fmt.Sprintf(`{"url":%q}`, page.URL+"/missing"))
	assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)
	out := readJSON(t, resp)
	assert.Equal(t, "fetch_failed", out["error"])
	assert.Equal(t, float64(404), out["status"])
}

func TestUploadAndExtractCSV(t *testing.T) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "terms.csv")
	require.NoError(t, err)
	_, err = io.WriteString(part, "term,meaning\nATP,energy\n")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := studyApp(echoGenerator{}).Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	out := readJSON(t, resp)
	assert.Equal(t, "csv", out["file_type"])
	assert.Contains(t, out["extracted_text"], "ATP | energy")
}

type snapshotFunc func(ctx context.Context, userID string) (entitlements.Plan, []quota.FeatureUsage, error)

func (f snapshotFunc) Snapshot(ctx context.Context, userID string) (entitlements.Plan, []quota.FeatureUsage, error) {
	return f(ctx, userID)
}

func accountApp(db *gorm.DB, usage UsageReporter, userID string) *fiber.App {
	ac := NewAccountController(repository.NewUserRepository(db), repository.NewSubscriptionRepository(db), usage, logging.Discard())
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if userID != "" {
			usercontext.Set(c, usercontext.UserContext{UserID: userID, IsLoggedIn: true})
		}
		return c.Next()
	})
	app.Get("/me", ac.HandleGetMe)
	app.Get("/usage", ac.HandleGetUsage)
	return app
}

func TestAccountEndpoints(t *testing.T) {
	db := newTestDB(t)
	_, err := models.GetOrCreateUser(db, "user-5", "five@example.com")
	require.NoError(t, err)

	ok := snapshotFunc(func(context.Context, string) (entitlements.Plan, []quota.FeatureUsage, error) {
		return entitlements.PlanFree, []quota.FeatureUsage{{Feature: entitlements.FeatureSummaries, Limit: entitlements.Bounded(3), Period: entitlements.PeriodDay}}, nil
	})

	resp, err := accountApp(db, ok, "user-5").Test(httptest.NewRequest(http.MethodGet, "/me", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	me := readJSON(t, resp)
	assert.Equal(t, "user-5", me["id"])
	assert.Equal(t, "five@example.com", me["email"])
	assert.Equal(t, "free", me["plan"])
	assert.Nil(t, me["plan_updated_at"])
	assert.Nil(t, me["subscription"])

	start := time.Date(2026, 3, 17, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.Create(&models.Subscription{
		ID: "sub_5", UserID: "user-5", Plan: "basic", ProviderPlanID: "plan_basic", Status: "active",
		StartedAt: start, CurrentEnd: start.AddDate(0, 1, 0),
	}).Error)
	resp, err = accountApp(db, ok, "user-5").Test(httptest.NewRequest(http.MethodGet, "/me", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	sub := readJSON(t, resp)["subscription"].(map[string]interface{})
	assert.Equal(t, "sub_5", sub["id"])
	assert.Equal(t, "active", sub["status"])
	assert.Equal(t, "2026-04-17T00:00:00Z", sub["current_end"])

	resp, err = accountApp(db, ok, "ghost").Test(httptest.NewRequest(http.MethodGet, "/me", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, err = accountApp(db, ok, "").Test(httptest.NewRequest(http.MethodGet, "/usage", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, err = accountApp(db, ok, "user-5").Test(httptest.NewRequest(http.MethodGet, "/usage", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "free", readJSON(t, resp)["plan"])

	broken := snapshotFunc(func(context.Context, string) (entitlements.Plan, []quota.FeatureUsage, error) {
		return "", nil, quota.ErrStorage
	})
	resp, err = accountApp(db, broken, "user-5").Test(httptest.NewRequest(http.MethodGet, "/usage", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	hc := NewHealthController(map[string]HealthCheck{
		"database": func(context.Context) error { return nil },
		"cache":    func(context.Context) error { return errors.New("connection refused") },
	})
	app := fiber.New()
	app.Get("/healthz", hc.HandleHealthz)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	out := readJSON(t, resp)
	assert.Equal(t, "degraded", out["status"])
	checks := out["checks"].(map[string]interface{})
	assert.Equal(t, "ok", checks["database"])
	assert.Equal(t, "connection refused", checks["cache"])
}

func TestFormatTimePtr(t *testing.T) {
	assert.Nil(t, formatTimePtr(nil))

	now := time.Date(2024, 5, 1, 12, 34, 56, 0, time.FixedZone("CEST", 2*3600))
	assert.Equal(t, "2024-05-01T10:34:56Z", formatTimePtr(&now))
}
