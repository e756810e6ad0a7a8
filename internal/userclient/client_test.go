package userclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"go.uber.org/zap"

	"github.com/spec-kit/task-management/internal/domain"
)

func newUserService(c *qt.C) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/internal/users/user-id", func(w http.ResponseWriter, r *http.Request) {
		var req usernameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		switch req.Username {
		case "alice":
			_, _ = w.Write([]byte("42"))
		case "broken":
			w.WriteHeader(http.StatusInternalServerError)
		case "slow":
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write([]byte("1"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	mux.HandleFunc("/internal/users/user-details", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(domain.UserProfile{ID: 42, Username: "alice", Email: "alice@example.com", Name: "Alice"})
	})
	srv := httptest.NewServer(mux)
	c.Cleanup(srv.Close)
	return srv
}

func TestResolveUserID(t *testing.T) {
	c := qt.New(t)
	srv := newUserService(c)
	client := New(srv.URL+"/", time.Second, zap.NewNop())
	ctx := context.Background()

	id, err := client.ResolveUserID(ctx, "alice")
	c.Assert(err, qt.IsNil)
	c.Assert(id, qt.Equals, int64(42))

	_, err = client.ResolveUserID(ctx, "nobody")
	c.Assert(err, qt.ErrorIs, ErrUserNotFound)

	_, err = client.ResolveUserID(ctx, "broken")
	c.Assert(err, qt.ErrorIs, ErrServiceUnavailable)
}

func TestResolveUserIDTimeout(t *testing.T) {
	c := qt.New(t)
	srv := newUserService(c)
	client := New(srv.URL, 50*time.Millisecond, zap.NewNop())

	_, err := client.ResolveUserID(context.Background(), "slow")
	c.Assert(err, qt.ErrorIs, ErrServiceUnavailable)
}

func TestResolveUserIDUnreachable(t *testing.T) {
	c := qt.New(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url, time.Second, zap.NewNop()).ResolveUserID(context.Background(), "alice")
	c.Assert(err, qt.ErrorIs, ErrServiceUnavailable)
}

func TestResolveUserIDCancelledContext(t *testing.T) {
	c := qt.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New("http://127.0.0.1:1", time.Second, zap.NewNop()).ResolveUserID(ctx, "alice")
	c.Assert(err, qt.ErrorIs, ErrServiceUnavailable)
}

func TestGetUserDetails(t *testing.T) {
	c := qt.New(t)
	srv := newUserService(c)
	profile, err := New(srv.URL, time.Second, zap.NewNop()).GetUserDetails(context.Background(), "alice")
	c.Assert(err, qt.IsNil)
	c.Assert(profile, qt.DeepEquals, &domain.UserProfile{ID: 42, Username: "alice", Email: "alice@example.com", Name: "Alice"})
}
