package workers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"initium-core/handlers"
	"initium-core/models"
	"initium-core/services"
	"initium-core/store"
	"initium-core/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var member = services.Identity{UserID: "u1", Token: "session-tok"}

func TestRemoteAccountClientSendsIdentity(t *testing.T) {
	var got *http.Request
	var body services.PushRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_ = json.NewEncoder(w).Encode(services.PushResponse{Snapshot: body.Snapshot})
	}))
	defer srv.Close()

	client, err := workers.NewRemoteAccountClient(srv.URL, "svc-token", time.Second, zaptest.NewLogger(t))
	require.NoError(t, err)

	snap := &store.Snapshot{Habits: []models.Habit{{ID: "h1", Title: "Read"}}}
	out, err := client.Push(context.Background(), member, snap)
	require.NoError(t, err)
	require.Len(t, out.Habits, 1)

	assert.Equal(t, services.SyncEndpoint, got.URL.Path)
	assert.Equal(t, "Bearer svc-token", got.Header.Get("Authorization"))
	assert.Equal(t, "u1", got.Header.Get("X-User-ID"))
	assert.Equal(t, "session-tok", got.Header.Get("X-Session-Token"))
}

func TestRemoteAccountClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := workers.NewRemoteAccountClient(srv.URL, "svc-token", time.Second, nil)
	require.NoError(t, err)
	_, err = client.Push(context.Background(), member, &store.Snapshot{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")

	_, err = workers.NewRemoteAccountClient("", "x", time.Second, nil)
	assert.Error(t, err)
}

// End to end: the local sync coordinator against the cloud routes served over HTTP.
func TestSyncAgainstCloudService(t *testing.T) {
	cloudStore, err := store.Open(store.Config{DataDir: t.TempDir(), Migrate: services.MigrateCloud})
	require.NoError(t, err)
	defer cloudStore.Close()

	log := zaptest.NewLogger(t)
	app := fiber.New()
	handlers.SetupCloudRoutes(app, services.NewCloudAccountService(cloudStore.DB, log), "svc-token", log)
	srv := httptest.NewServer(adaptor.FiberApp(app))
	defer srv.Close()

	local, err := store.Open(store.Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	defer local.Close()
	u := models.NewUser("u1", "Ada")
	require.NoError(t, local.DB.Create(&u).Error)
	require.NoError(t, local.DB.Create(&models.Quest{ID: "q1", Title: "Ship", Status: models.QuestStatusTodo, XPReward: 50}).Error)

	client, err := workers.NewRemoteAccountClient(srv.URL, "svc-token", 5*time.Second, log)
	require.NoError(t, err)
	session := services.NewSessionState()
	session.SetIdentity(member)
	coord := services.NewSyncCoordinator(local.DB, client, session, log)

	res, err := coord.MigrateToCloud(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Received)

	res, err = coord.SyncAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Received)

	var quests []models.Quest
	require.NoError(t, local.DB.Find(&quests).Error)
	require.Len(t, quests, 1)
	assert.Equal(t, "Ship", quests[0].Title)

	// A wrong service token is a sync failure and leaves the local store alone.
	bad, err := workers.NewRemoteAccountClient(srv.URL, "wrong", time.Second, log)
	require.NoError(t, err)
	coord.Remote = bad
	_, err = coord.SyncAll(context.Background())
	assert.ErrorIs(t, err, services.ErrSyncFailed)
	require.NoError(t, local.DB.Find(&quests).Error)
	assert.Len(t, quests, 1)
}
