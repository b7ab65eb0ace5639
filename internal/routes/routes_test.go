package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hunghhdev/sqlcache/internal/auth"
	"github.com/hunghhdev/sqlcache/internal/realtime"
	"github.com/hunghhdev/sqlcache/internal/store"
	"github.com/hunghhdev/sqlcache/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*gin.Engine, *store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := testutil.NewInMemoryDB()
	require.NoError(t, err)

	hub := realtime.NewHub()
	st := store.New(db, store.Options{
		AutoCreateTable: true,
		Listeners:       []store.Listener{realtime.NewEventBridge(hub)},
	})
	t.Cleanup(st.Shutdown)

	return SetupRoutes(st, hub), st
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestCORSPreflight(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodOptions, "/api/cache/k", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	router, _ := newTestRouter(t)

	for _, route := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/cache/k"},
		{http.MethodDelete, "/api/cache"},
		{http.MethodGet, "/api/keys"},
		{http.MethodGet, "/api/statistics"},
		{http.MethodGet, "/api/size"},
	} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(route.method, route.path, nil)
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusUnauthorized, w.Code, "%s %s must be protected", route.method, route.path)
	}
}

func TestLoginThenUseCache(t *testing.T) {
	router, _ := newTestRouter(t)

	// Login with the default dev credentials.
	loginBody, _ := json.Marshal(gin.H{
		"username": "admin",
		"password": "development-insecure-password",
	})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/login", bytes.NewReader(loginBody))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var loginResp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &loginResp))
	require.NotEmpty(t, loginResp.Token)

	// Use the token to write and read an entry.
	putBody, _ := json.Marshal(gin.H{"value": "v"})
	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodPut, "/api/cache/k", bytes.NewReader(putBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+loginResp.Token)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/api/cache/k", nil)
	req.Header.Set("Authorization", "Bearer "+loginResp.Token)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"value":"v"`)
}

func TestEventFeedStreamsMutations(t *testing.T) {
	router, st := newTestRouter(t)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	token, err := auth.GenerateToken("admin")
	require.NoError(t, err)

	wsURL := strings.Replace(server.URL, "http", "ws", 1) + "/api/events?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })

	// Give the handler a moment to register the subscriber before mutating.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, st.Put(context.Background(), "watched", "v"))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev realtime.Event
	require.NoError(t, json.Unmarshal(msg, &ev))
	require.Equal(t, "put", ev.Type)
	require.Equal(t, "watched", ev.Key)
}

func TestEventFeedRejectsUnauthenticated(t *testing.T) {
	router, _ := newTestRouter(t)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	wsURL := strings.Replace(server.URL, "http", "ws", 1) + "/api/events"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	if conn != nil {
		conn.Close()
	}
	require.NotNil(t, resp)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
