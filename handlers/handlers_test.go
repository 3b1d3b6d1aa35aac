package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"initium-core/middleware"
	"initium-core/services"
	"initium-core/store"

	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const apiToken = "local-token"

func newLocalApp(t *testing.T) *fiber.App {
	t.Helper()
	st, err := store.Open(store.Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	log := zaptest.NewLogger(t)
	prog := services.NewProgressionService(st.DB, log)
	prog.Clock = clockwork.NewFakeClockAt(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	prog.Location = time.UTC
	habits := services.NewHabitService(st.DB)
	settings := services.NewSettingsService(st.DB)
	state := services.NewAppState(prog, habits, log)
	session := services.NewSessionState()
	syncer := services.NewSyncCoordinator(st.DB, nil, session, log)

	app := fiber.New()
	api := app.Group("/", middleware.BearerAuthMiddleware(apiToken, log))
	SetupProgressionRoutes(api, ProgressionDeps{
		State:       state,
		Session:     session,
		Progression: prog,
		Habits:      habits,
		Settings:    settings,
	})
	SetupTrainingRoutes(api, state, services.NewTrainingService(st.DB, prog, log))
	SetupQuestRoutes(api, state, services.NewQuestService(st.DB, prog, log))
	SetupSyncRoutes(api, session, state, syncer, nil)
	SetupBackupRoutes(api, state, services.NewBackupService(st.DB, nil, log))
	return app
}

func call(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Authorization", "Bearer "+apiToken)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func login(t *testing.T, app *fiber.App) {
	t.Helper()
	status, _ := call(t, app, http.MethodPost, "/session", `{"user_id":"u1","name":"Ada","token":"tok"}`)
	require.Equal(t, http.StatusOK, status)
}

func TestBearerTokenRequired(t *testing.T) {
	app := newLocalApp(t)

	req := httptest.NewRequest(http.MethodGet, "/user", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/user", nil)
	req.Header.Set("Authorization", "Bearer nope")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSessionAndXP(t *testing.T) {
	app := newLocalApp(t)

	status, _ := call(t, app, http.MethodGet, "/user", "")
	assert.Equal(t, http.StatusNotFound, status)

	login(t, app)
	status, user := call(t, app, http.MethodGet, "/user", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "u1", user["id"])

	status, body := call(t, app, http.MethodPost, "/user/xp", `{"amount":2.5}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["cause"], "whole number")

	status, user = call(t, app, http.MethodPost, "/user/xp", `{"amount":150,"source":"manual"}`)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 3, user["level"])
	assert.EqualValues(t, 225, user["xp_to_next_level"])

	status, today := call(t, app, http.MethodGet, "/user/today", "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 150, today["xp_earned"])
}

func TestHabitCompletionConflict(t *testing.T) {
	app := newLocalApp(t)
	login(t, app)

	status, habit := call(t, app, http.MethodPost, "/habits", `{"title":"Stretch","xp_per_completion":10}`)
	require.Equal(t, http.StatusCreated, status)
	id := habit["id"].(string)

	path := fmt.Sprintf("/habits/%s/complete", id)
	status, res := call(t, app, http.MethodPost, path, "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, res["habit"].(map[string]any)["streak"])

	status, _ = call(t, app, http.MethodPost, path, "")
	assert.Equal(t, http.StatusConflict, status)

	status, _ = call(t, app, http.MethodPost, "/habits/missing/complete", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestThemeAndTraining(t *testing.T) {
	app := newLocalApp(t)
	login(t, app)

	status, _ := call(t, app, http.MethodPut, "/settings/theme", `{"theme":"sepia"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = call(t, app, http.MethodPut, "/settings/theme", `{"theme":"ocean"}`)
	assert.Equal(t, http.StatusOK, status)
	_, theme := call(t, app, http.MethodGet, "/settings/theme", "")
	assert.Equal(t, "ocean", theme["theme"])

	status, _ = call(t, app, http.MethodPost, "/training/schedule",
		`{"template":{"title":"Yoga","duration":30},"start":"2025-03-12T07:00:00Z","recurrence":"8weeks"}`)
	require.Equal(t, http.StatusCreated, status)

	status, _ = call(t, app, http.MethodPost, "/training/schedule", `{"start":"2025-03-12T07:00:00Z"}`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestSyncAsGuestIsUnauthorized(t *testing.T) {
	app := newLocalApp(t)
	status, _ := call(t, app, http.MethodPost, "/session", `{"guest":true}`)
	require.Equal(t, http.StatusOK, status)

	status, _ = call(t, app, http.MethodPost, "/sync", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, st := call(t, app, http.MethodGet, "/sync/status", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, st["authenticated"])
}

func TestBackupRoutes(t *testing.T) {
	app := newLocalApp(t)
	login(t, app)

	status, _ := call(t, app, http.MethodPost, "/backup/reset", "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, backup := call(t, app, http.MethodGet, "/backup/export", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, services.BackupApp, backup["meta"].(map[string]any)["app"])

	status, _ = call(t, app, http.MethodPost, "/backup/import", `{"meta":{"app":"NOPE"}}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = call(t, app, http.MethodPost, "/backup/reset?confirm=true", "")
	assert.Equal(t, http.StatusOK, status)
}

func TestCloudRoutesRequireAccount(t *testing.T) {
	st, err := store.Open(store.Config{DataDir: t.TempDir(), Migrate: services.MigrateCloud})
	require.NoError(t, err)
	defer st.Close()
	log := zaptest.NewLogger(t)

	app := fiber.New()
	SetupCloudRoutes(app, services.NewCloudAccountService(st.DB, log), "svc", log)

	req := httptest.NewRequest(http.MethodPost, services.SyncEndpoint, strings.NewReader(`{"snapshot":{}}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer svc")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest(http.MethodPost, services.SyncEndpoint,
		strings.NewReader(`{"snapshot":{"habits":[{"id":"h1","title":"Read"}]}}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer svc")
	req.Header.Set(middleware.HeaderUserID, "u1")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out services.PushResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Snapshot.Habits, 1)
	assert.Equal(t, "Read", out.Snapshot.Habits[0].Title)
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		services.ErrValidation:               http.StatusBadRequest,
		services.ErrImportFormatInvalid:      http.StatusBadRequest,
		services.ErrAlreadyCompletedToday:    http.StatusConflict,
		services.ErrNotAuthenticated:         http.StatusUnauthorized,
		services.ErrNotFound:                 http.StatusNotFound,
		services.ErrSyncFailed:               http.StatusBadGateway,
		services.ErrStorageTransactionFailed: http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, statusFor(fmt.Errorf("wrapped: %w", err)), err.Error())
	}
}
