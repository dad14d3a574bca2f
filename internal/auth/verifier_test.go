package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mindwell-backend/internal/config"
)

func newVerifierAgainst(ts *httptest.Server) *RemoteVerifier {
	return NewRemoteVerifier(config.AuthConfig{
		UserinfoURL: ts.URL,
		Timeout:     5 * time.Second,
	})
}

func TestRemoteVerifier_ResolvesIdentity(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"u1","email":"ignored@example.com"}`))
	}))
	defer ts.Close()

	userID, err := newVerifierAgainst(ts).Verify(context.Background(), "good-token")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if userID != "u1" {
		t.Fatalf("userID = %q, want u1", userID)
	}
}

func TestRemoteVerifier_RejectedTokenIsUnauthenticated(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	if _, err := newVerifierAgainst(ts).Verify(context.Background(), "expired"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("error = %v, want ErrUnauthenticated", err)
	}
}

func TestRemoteVerifier_EmptyTokenSkipsNetwork(t *testing.T) {
	called := false
	ts := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))
	defer ts.Close()

	if _, err := newVerifierAgainst(ts).Verify(context.Background(), ""); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("error = %v, want ErrUnauthenticated", err)
	}
	if called {
		t.Fatal("empty token must not hit the provider")
	}
}

func TestRemoteVerifier_ProviderOutageIsNotUnauthenticated(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := newVerifierAgainst(ts).Verify(context.Background(), "good-token")
	if err == nil {
		t.Fatal("expected an error")
	}
	if errors.Is(err, ErrUnauthenticated) {
		t.Fatal("an outage must stay distinguishable from a bad token")
	}
}

func TestStaticVerifier(t *testing.T) {
	v := &StaticVerifier{Tokens: map[string]string{"t1": "u1"}}

	userID, err := v.Verify(context.Background(), "t1")
	if err != nil || userID != "u1" {
		t.Fatalf("Verify = %q, %v", userID, err)
	}
	if _, err := v.Verify(context.Background(), "t2"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("unknown token error = %v", err)
	}
}
