package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/roomchat/roomchat-server/internal/auth"
	"github.com/roomchat/roomchat-server/internal/config"
	"github.com/roomchat/roomchat-server/internal/core"
	"github.com/roomchat/roomchat-server/internal/store"
	"github.com/roomchat/roomchat-server/internal/store/sqlite"
)

// testEnv runs the full HTTP stack against an in-memory database.
type testEnv struct {
	srv      *httptest.Server
	store    *sqlite.SQLiteStore
	registry *core.Registry
	cancel   context.CancelFunc
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("create store: %v", err)
	}

	logger := zerolog.New(nil)
	cfg := config.Default()
	cfg.JWTSecret = "test-secret"

	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	})

	registry := core.NewRegistry()
	broadcaster := core.NewBroadcaster(registry, &logger)

	lifecycle, cancel := context.WithCancel(context.Background())
	server := NewServer(lifecycle, &cfg, authService, st, registry, broadcaster, &logger)

	env := &testEnv{
		srv:      httptest.NewServer(server.Handler),
		store:    st,
		registry: registry,
		cancel:   cancel,
	}
	t.Cleanup(func() {
		env.cancel()
		env.srv.Close()
		env.store.Close()
	})
	return env
}

// doJSON issues a request with an optional JSON body and bearer token.
func (e *testEnv) doJSON(t *testing.T, method, path, token string, body interface{}) (*stdhttp.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := stdhttp.NewRequest(method, e.srv.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}
	return resp, payload
}

// signupAndLogin registers a user and returns a bearer token.
func (e *testEnv) signupAndLogin(t *testing.T, username, role string) string {
	t.Helper()

	resp, body := e.doJSON(t, stdhttp.MethodPost, "/api/signup", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "password123",
		"role":     role,
	})
	if resp.StatusCode != stdhttp.StatusCreated {
		t.Fatalf("signup %s: status %d body %s", username, resp.StatusCode, body)
	}

	resp, body = e.doJSON(t, stdhttp.MethodPost, "/api/login", "", map[string]string{
		"username": username,
		"password": "password123",
	})
	if resp.StatusCode != stdhttp.StatusOK {
		t.Fatalf("login %s: status %d body %s", username, resp.StatusCode, body)
	}

	var authResp AuthResponse
	if err := json.Unmarshal(body, &authResp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return authResp.Token
}

// createRoom creates a room through the API and returns its ID.
func (e *testEnv) createRoom(t *testing.T, token, name string) int64 {
	t.Helper()

	resp, body := e.doJSON(t, stdhttp.MethodPost, "/api/rooms", token, map[string]string{"name": name})
	if resp.StatusCode != stdhttp.StatusCreated {
		t.Fatalf("create room %s: status %d body %s", name, resp.StatusCode, body)
	}
	var room RoomResponse
	if err := json.Unmarshal(body, &room); err != nil {
		t.Fatalf("decode room response: %v", err)
	}
	return room.ID
}

// seedMessages inserts messages directly into the store.
func (e *testEnv) seedMessages(t *testing.T, roomID, userID int64, count int) {
	t.Helper()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < count; i++ {
		msg := &store.Message{
			RoomID:    roomID,
			UserID:    userID,
			Content:   fmt.Sprintf("message %d", i+1),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := e.store.SaveMessage(context.Background(), msg); err != nil {
			t.Fatalf("seed message %d: %v", i, err)
		}
	}
}
