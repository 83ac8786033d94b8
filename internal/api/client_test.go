package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/auxodev/dashclient/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL)
	require.NoError(t, err)
	return client, srv
}

func TestClient_Login(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/login", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("X-Request-Id"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "user@example.com", body["email"])
		assert.Equal(t, "hunter2", body["password"])

		json.NewEncoder(w).Encode(Session{
			AccessToken: "tok-1",
			User:        &session.User{ID: 1, Email: "user@example.com"},
		})
	}))

	sess, err := client.Login(context.Background(), "user@example.com", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", sess.AccessToken)
	require.NotNil(t, sess.User)
	assert.Equal(t, int64(1), sess.User.ID)
}

func TestClient_RefreshCarriesCookies(t *testing.T) {
	var sawCookie bool
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			http.SetCookie(w, &http.Cookie{Name: "refresh", Value: "opaque", Path: "/"})
			json.NewEncoder(w).Encode(Session{AccessToken: "tok-1"})
		case "/auth/refresh":
			if c, err := r.Cookie("refresh"); err == nil && c.Value == "opaque" {
				sawCookie = true
			}
			json.NewEncoder(w).Encode(Session{AccessToken: "tok-2"})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))

	_, err := client.Login(context.Background(), "user@example.com", "pw")
	require.NoError(t, err)

	sess, err := client.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-2", sess.AccessToken)
	assert.True(t, sawCookie, "refresh call should carry the ambient cookie")
}

func TestClient_RefreshWithoutActiveSession(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// No active session: 200 with no access_token
		json.NewEncoder(w).Encode(Session{})
	}))

	sess, err := client.Refresh(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sess.AccessToken)
}

func TestClient_MeSendsBearerToken(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(Profile{
			User:            &session.User{ID: 4, Email: "user@example.com"},
			ActiveAccountID: 42,
		})
	}))

	profile, err := client.Me(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, int64(42), profile.ActiveAccountID)
	require.NotNil(t, profile.User)
	assert.Equal(t, int64(4), profile.User.ID)
}

func TestClient_MeUnauthorized(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.Me(context.Background(), "expired")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.True(t, IsUnauthorized(err))
}

func TestClient_ServerErrorIsNotUnauthorized(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]string{"error": "upstream down"})
	}))

	_, err := client.Me(context.Background(), "tok")
	require.Error(t, err)
	assert.False(t, IsUnauthorized(err))

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	assert.Contains(t, statusErr.Error(), "upstream down")
}

func TestClient_OAuthStart(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/oauth/google/start", r.URL.Path)
		json.NewEncoder(w).Encode(OAuthStart{
			RedirectURL:  "https://accounts.google.com/o/oauth2/auth?state=abc",
			State:        "abc",
			CodeVerifier: "ver",
		})
	}))

	start, err := client.OAuthStart(context.Background(), "google")
	require.NoError(t, err)
	assert.Equal(t, "abc", start.State)
	assert.Equal(t, "ver", start.CodeVerifier)
	assert.Contains(t, start.RedirectURL, "accounts.google.com")
}

func TestClient_Verify(t *testing.T) {
	tests := []struct {
		name     string
		kind     VerificationKind
		response Verification
	}{
		{
			name:     "email_verification_returns_profile",
			kind:     VerifyEmail,
			response: Verification{User: &session.User{ID: 9, Verified: true}},
		},
		{
			name:     "password_reset_returns_csrf_token",
			kind:     VerifyPasswordReset,
			response: Verification{ResetToken: "csrf-123"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var body map[string]string
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, string(tt.kind), body["type"])
				assert.Equal(t, "link-token", body["token"])
				json.NewEncoder(w).Encode(tt.response)
			}))

			got, err := client.Verify(context.Background(), tt.kind, "link-token")
			require.NoError(t, err)
			assert.Equal(t, tt.response.ResetToken, got.ResetToken)
			if tt.response.User != nil {
				require.NotNil(t, got.User)
				assert.Equal(t, tt.response.User.ID, got.User.ID)
			}
		})
	}
}

func TestClient_LogoutIgnoresResponseBody(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/logout", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))

	assert.NoError(t, client.Logout(context.Background(), "tok"))
}
