package middleware

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

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/NoteFox/app/models"
	"github.com/ManuelReschke/NoteFox/internal/pkg/auth"
	"github.com/ManuelReschke/NoteFox/internal/pkg/entitlements"
	"github.com/ManuelReschke/NoteFox/internal/pkg/logging"
	"github.com/ManuelReschke/NoteFox/internal/pkg/quota"
	"github.com/ManuelReschke/NoteFox/internal/pkg/usercontext"
)

type fakeVerifier struct {
	identity *auth.Identity
	err      error
}

func (f fakeVerifier) VerifyToken(_ context.Context, token string) (*auth.Identity, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.identity, nil
}

type fakeRegistry struct {
	err error
}

func (f fakeRegistry) GetOrCreate(_ context.Context, id, email string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.User{ID: id, Email: email, Plan: models.DefaultPlan}, nil
}

type fakeGuard struct {
	calls int
	err   error
}

func (f *fakeGuard) CheckAndConsume(_ context.Context, userID string, feature entitlements.Feature) (*quota.Grant, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &quota.Grant{UserID: userID, Feature: feature, Plan: entitlements.PlanFree, UsedCount: int64(f.calls)}, nil
}

func decode(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return out
}

func authApp(v auth.TokenVerifier, r UserRegistry) *fiber.App {
	app := fiber.New()
	app.Get("/me", RequireBearerAuth(v, r, logging.Discard()), func(c *fiber.Ctx) error {
		return c.JSON(usercontext.GetUserContext(c))
	})
	return app
}

func TestRequireBearerAuth(t *testing.T) {
	ok := fakeVerifier{identity: &auth.Identity{UserID: "user-1", Email: "a@example.com"}}

	tests := []struct {
		name     string
		verifier auth.TokenVerifier
		registry UserRegistry
		header   string
		status   int
		code     string
	}{
		{name: "missing header", verifier: ok, registry: fakeRegistry{}, status: fiber.StatusUnauthorized, code: "unauthorized"},
		{name: "not bearer", verifier: ok, registry: fakeRegistry{}, header: "Basic abc", status: fiber.StatusUnauthorized, code: "unauthorized"},
		{name: "invalid token", verifier: fakeVerifier{err: auth.ErrInvalidToken}, registry: fakeRegistry{}, header: "Bearer bad", status: fiber.StatusUnauthorized, code: "unauthorized"},
		{name: "provider down", verifier: fakeVerifier{err: errors.New("dial tcp: refused")}, registry: fakeRegistry{}, header: "Bearer tok", status: fiber.StatusServiceUnavailable, code: "auth_unavailable"},
		{name: "registry failure", verifier: ok, registry: fakeRegistry{err: errors.New("db down")}, header: "Bearer tok", status: fiber.StatusInternalServerError, code: "internal_server_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := authApp(tt.verifier, tt.registry).Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, decode(t, resp)["error"])
		})
	}

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer good")
		resp, err := authApp(ok, fakeRegistry{}).Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		body := decode(t, resp)
		assert.Equal(t, "user-1", body["user_id"])
		assert.Equal(t, "a@example.com", body["email"])
		assert.Equal(t, true, body["is_logged_in"])
	})
}

type sampleBody struct {
	Text  string `json:"text" validate:"required"`
	Count int    `json:"count" validate:"gte=1,lte=20"`
}

func (b *sampleBody) ApplyDefaults() {
	if b.Count == 0 {
		b.Count = 5
	}
}

func bodyApp() *fiber.App {
	app := fiber.New()
	app.Post("/", ValidateBody[sampleBody](), func(c *fiber.Ctx) error {
		return c.JSON(Body[sampleBody](c))
	})
	return app
}

func postJSON(t *testing.T, app *fiber.App, path, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestValidateBodyAppliesDefaults(t *testing.T) {
	resp := postJSON(t, bodyApp(), "/", `{"text":"hello"}`)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, "hello", body["text"])
	assert.Equal(t, float64(5), body["count"])
}

func TestValidateBodyRejects(t *testing.T) {
	resp := postJSON(t, bodyApp(), "/", `{"count":50}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, "validation_failed", body["error"])
	details, ok := body["details"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "required", details["text"])
	assert.Equal(t, "lte=20", details["count"])

	resp = postJSON(t, bodyApp(), "/", `{"text":`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_request", decode(t, resp)["error"])
}

func usageApp(g UsageGuard, userID string) *fiber.App {
	app := fiber.New()
	app.Post("/", func(c *fiber.Ctx) error {
		if userID != "" {
			usercontext.Set(c, usercontext.UserContext{UserID: userID, IsLoggedIn: true})
		}
		return c.Next()
	}, EnforceUsageLimit(g, entitlements.FeatureSummaries), func(c *fiber.Ctx) error {
		grant := GrantFrom(c)
		return c.JSON(fiber.Map{"used_count": grant.UsedCount})
	})
	return app
}

func TestEnforceUsageLimitAllows(t *testing.T) {
	g := &fakeGuard{}
	resp, err := usageApp(g, "user-1").Test(httptest.NewRequest(http.MethodPost, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), decode(t, resp)["used_count"])
}

func TestEnforceUsageLimitDenials(t *testing.T) {
	limitErr := &quota.LimitExceededError{
		Feature:   entitlements.FeatureSummaries,
		Plan:      entitlements.PlanFree,
		Period:    entitlements.PeriodDay,
		UsedCount: 3,
		Limit:     3,
	}

	t.Run("limit exceeded", func(t *testing.T) {
		resp, err := usageApp(&fakeGuard{err: limitErr}, "user-1").Test(httptest.NewRequest(http.MethodPost, "/", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
		body := decode(t, resp)
		assert.Equal(t, "limit_exceeded", body["error"])
		assert.Equal(t, "summaries", body["feature"])
		assert.Equal(t, "free", body["plan"])
		assert.Equal(t, "day", body["period"])
		assert.Equal(t, float64(3), body["used_count"])
		assert.Equal(t, float64(3), body["limit"])
		assert.Equal(t, "summaries limit reached for your free plan (3/3 daily)", body["message"])
	})

	t.Run("not entitled", func(t *testing.T) {
		resp, err := usageApp(&fakeGuard{err: quota.ErrFeatureNotEntitled}, "user-1").Test(httptest.NewRequest(http.MethodPost, "/", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
		assert.Equal(t, "feature_not_entitled", decode(t, resp)["error"])
	})

	t.Run("wrapped denial", func(t *testing.T) {
		wrapped := fmt.Errorf("%w: diagrams on free", quota.ErrFeatureNotEntitled)
		resp, err := usageApp(&fakeGuard{err: wrapped}, "user-1").Test(httptest.NewRequest(http.MethodPost, "/", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	})

	t.Run("unexpected error fails closed", func(t *testing.T) {
		resp, err := usageApp(&fakeGuard{err: errors.New("boom")}, "user-1").Test(httptest.NewRequest(http.MethodPost, "/", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	})

	t.Run("storage failure fails closed", func(t *testing.T) {
		resp, err := usageApp(&fakeGuard{err: quota.ErrStorage}, "user-1").Test(httptest.NewRequest(http.MethodPost, "/", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, "internal_server_error", decode(t, resp)["error"])
	})

	t.Run("anonymous", func(t *testing.T) {
		g := &fakeGuard{}
		resp, err := usageApp(g, "").Test(httptest.NewRequest(http.MethodPost, "/", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		assert.Zero(t, g.calls)
	})
}

func multipartRequest(t *testing.T, field, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if field != "" {
		part, err := w.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	} else {
		require.NoError(t, w.WriteField("other", "value"))
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestRequireUpload(t *testing.T) {
	app := fiber.New()
	app.Post("/", RequireUpload("file", 64), func(c *fiber.Ctx) error {
		u := UploadFrom(c)
		return c.JSON(fiber.Map{"kind": u.Kind, "name": u.Header.Filename})
	})

	resp, err := app.Test(multipartRequest(t, "file", "notes.txt", []byte("hello world")))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, "txt", body["kind"])
	assert.Equal(t, "notes.txt", body["name"])

	resp, err = app.Test(multipartRequest(t, "", "", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(multipartRequest(t, "file", "big.txt", bytes.Repeat([]byte("a"), 65)))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Equal(t, "file_too_large", decode(t, resp)["error"])

	resp, err = app.Test(multipartRequest(t, "file", "scan.png", []byte("\x89PNG\r\n\x1a\n")))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnsupportedMediaType, resp.StatusCode)
	assert.Equal(t, "unsupported_media_type", decode(t, resp)["error"])
}
