package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newLoginRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/api/login", Login)
	return router
}

func postLogin(t *testing.T, router *gin.Engine, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestLogin_Success(t *testing.T) {
	router := newLoginRouter()

	w := postLogin(t, router, LoginRequest{
		Username: "admin",
		Password: "development-insecure-password",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	require.Equal(t, "admin", resp.Username)
}

func TestLogin_WrongPassword(t *testing.T) {
	router := newLoginRouter()

	w := postLogin(t, router, LoginRequest{Username: "admin", Password: "wrong"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogin_UnknownUser(t *testing.T) {
	router := newLoginRouter()

	w := postLogin(t, router, LoginRequest{Username: "intruder", Password: "development-insecure-password"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogin_MissingFields(t *testing.T) {
	router := newLoginRouter()

	w := postLogin(t, router, gin.H{"username": "admin"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}
