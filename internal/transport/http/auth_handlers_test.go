package http

import (
	"encoding/json"
	stdhttp "net/http"
	"testing"
)

func TestSignupAndLogin(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.doJSON(t, stdhttp.MethodPost, "/api/signup", "", map[string]string{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "password123",
	})
	if resp.StatusCode != stdhttp.StatusCreated {
		t.Fatalf("signup: status %d body %s", resp.StatusCode, body)
	}
	var user UserResponse
	if err := json.Unmarshal(body, &user); err != nil {
		t.Fatalf("decode signup response: %v", err)
	}
	if user.Username != "alice" || user.Role != "user" || !user.IsActive {
		t.Fatalf("unexpected signup response: %+v", user)
	}

	resp, body = env.doJSON(t, stdhttp.MethodPost, "/api/login", "", map[string]string{
		"username": "alice",
		"password": "password123",
	})
	if resp.StatusCode != stdhttp.StatusOK {
		t.Fatalf("login: status %d body %s", resp.StatusCode, body)
	}
	var authResp AuthResponse
	if err := json.Unmarshal(body, &authResp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if authResp.Token == "" {
		t.Fatal("expected non-empty token")
	}
}

func TestSignupValidation(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name string
		body map[string]string
	}{
		{"short username", map[string]string{"username": "ab", "email": "a@example.com", "password": "password123"}},
		{"bad email", map[string]string{"username": "alice", "email": "not-an-email", "password": "password123"}},
		{"short password", map[string]string{"username": "alice", "email": "a@example.com", "password": "pw"}},
		{"bad role", map[string]string{"username": "alice", "email": "a@example.com", "password": "password123", "role": "root"}},
	}
	for _, tc := range cases {
		resp, body := env.doJSON(t, stdhttp.MethodPost, "/api/signup", "", tc.body)
		if resp.StatusCode != stdhttp.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d body %s", tc.name, resp.StatusCode, body)
		}
	}
}

func TestSignupDuplicate(t *testing.T) {
	env := newTestEnv(t)
	env.signupAndLogin(t, "alice", "")

	resp, body := env.doJSON(t, stdhttp.MethodPost, "/api/signup", "", map[string]string{
		"username": "alice",
		"email":    "other@example.com",
		"password": "password123",
	})
	if resp.StatusCode != stdhttp.StatusConflict {
		t.Fatalf("expected 409 for duplicate username, got %d body %s", resp.StatusCode, body)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.signupAndLogin(t, "alice", "")

	resp, _ := env.doJSON(t, stdhttp.MethodPost, "/api/login", "", map[string]string{
		"username": "alice",
		"password": "wrongpass",
	})
	if resp.StatusCode != stdhttp.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", resp.StatusCode)
	}

	resp, _ = env.doJSON(t, stdhttp.MethodPost, "/api/login", "", map[string]string{
		"username": "nobody",
		"password": "password123",
	})
	if resp.StatusCode != stdhttp.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown user, got %d", resp.StatusCode)
	}
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)
	token := env.signupAndLogin(t, "alice", "")

	resp, body := env.doJSON(t, stdhttp.MethodGet, "/api/users/me", token, nil)
	if resp.StatusCode != stdhttp.StatusOK {
		t.Fatalf("me: status %d body %s", resp.StatusCode, body)
	}
	var user UserResponse
	if err := json.Unmarshal(body, &user); err != nil {
		t.Fatalf("decode me response: %v", err)
	}
	if user.Username != "alice" || user.Email != "alice@example.com" {
		t.Fatalf("unexpected profile: %+v", user)
	}

	resp, _ = env.doJSON(t, stdhttp.MethodGet, "/api/users/me", "", nil)
	if resp.StatusCode != stdhttp.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	resp, _ = env.doJSON(t, stdhttp.MethodGet, "/api/users/me", "garbage-token", nil)
	if resp.StatusCode != stdhttp.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", resp.StatusCode)
	}
}

func TestListUsersAdminOnly(t *testing.T) {
	env := newTestEnv(t)
	userToken := env.signupAndLogin(t, "alice", "")
	adminToken := env.signupAndLogin(t, "root", "admin")

	resp, _ := env.doJSON(t, stdhttp.MethodGet, "/api/admin/users", userToken, nil)
	if resp.StatusCode != stdhttp.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", resp.StatusCode)
	}

	resp, body := env.doJSON(t, stdhttp.MethodGet, "/api/admin/users", adminToken, nil)
	if resp.StatusCode != stdhttp.StatusOK {
		t.Fatalf("admin list users: status %d body %s", resp.StatusCode, body)
	}
	var users []UserResponse
	if err := json.Unmarshal(body, &users); err != nil {
		t.Fatalf("decode users: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.doJSON(t, stdhttp.MethodGet, "/health", "", nil)
	if resp.StatusCode != stdhttp.StatusOK {
		t.Fatalf("health: status %d body %s", resp.StatusCode, body)
	}
}
