package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/dashAuth/session"
	"github.com/MrEthical07/dashAuth/storage"
	"github.com/MrEthical07/dashAuth/token"
)

func TestNewRejectsBadBaseURL(t *testing.T) {
	for _, raw := range []string{"", "   ", "ftp://example.com", "://bad"} {
		_, err := New(Config{BaseURL: raw}, nil)
		assert.Error(t, err, "base URL %q", raw)
	}
}

func TestDoUnwrapsEnvelope(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success":true,"message":"ok","results":{"name":"Plant 7"}}`)
	}), nil)

	var out struct{ Name string }
	require.NoError(t, c.Do(context.Background(), http.MethodGet, "/factories/7", nil, &out))
	assert.Equal(t, "Plant 7", out.Name)
}

func TestDoDecodesBareDocument(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"name":"Plant 7"}`)
	}), nil)

	var out struct{ Name string }
	require.NoError(t, c.Do(context.Background(), http.MethodGet, "/factories/7", nil, &out))
	assert.Equal(t, "Plant 7", out.Name)
}

func TestDoReportsMalformedResults(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success":true,"results":null}`)
	}), nil)

	var out struct{ Name string }
	err := c.Do(context.Background(), http.MethodGet, "/factories/7", nil, &out)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestMeValidatesUserRecord(t *testing.T) {
	body := `{"success":true,"results":{"name":"no id"}}`
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/me", r.URL.Path)
		_, _ = io.WriteString(w, body)
	}), nil)

	_, err := c.Me(context.Background())
	assert.ErrorIs(t, err, ErrMalformedResponse)

	body = `{"success":true,"results":{"id":42,"name":"Ada","role":"FUM","level":"FACTORY"}}`
	user, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, session.FlexID("42"), user.ID)
	assert.Equal(t, "FUM", user.Role)
}

func TestLogoutRemoteCarriesExplicitCredential(t *testing.T) {
	src := newFakeSource("")
	var header atomic.Value

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/users/logout", r.URL.Path)
		header.Store(r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusUnauthorized)
	}), src)

	err := c.LogoutRemote(context.Background(), "abc.def.ghi")
	require.Error(t, err)
	assert.Equal(t, "Bearer abc.def.ghi", header.Load())

	_, invalidated := src.counts()
	assert.Zero(t, invalidated, "remote logout must not feed back into invalidation")

	assert.NoError(t, c.LogoutRemote(context.Background(), ""))
}

func TestLoginPassword(t *testing.T) {
	cred := validCredential()
	src := newFakeSource("")

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		if in["password"] != "hunter2" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"success":false,"message":"invalid credentials"}`)
			return
		}
		_, _ = io.WriteString(w, `{"success":true,"results":{"token":"`+cred+`","user":{"id":"u-1","role":"sys-admin"}}}`)
	}), src)

	_, _, err := c.LoginPassword(context.Background(), "ada@example.com", "")
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, _, err = c.LoginPassword(context.Background(), "ada@example.com", "wrong")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	_, invalidated := src.counts()
	assert.Zero(t, invalidated, "a rejected login is not a session invalidation")

	got, user, err := c.LoginPassword(context.Background(), " ada@example.com ", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, cred, got)
	require.NotNil(t, user)
	assert.Equal(t, "sys-admin", user.Role)
}

func TestSearch(t *testing.T) {
	var path atomic.Value
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path.Store(r.URL.Path)
		_, _ = io.WriteString(w, `{"success":true,"results":[{"id":1},{"id":2}]}`)
	}), nil)

	err := c.Search(context.Background(), "secrets", nil, nil)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	var rows []map[string]any
	require.NoError(t, c.Search(context.Background(), ResourceFactories, map[string]any{"q": "plant"}, &rows))
	assert.Equal(t, "/factories/search", path.Load())
	assert.Len(t, rows, 2)
}

func TestLifetimeCancelsInFlightRequests(t *testing.T) {
	src := newFakeSource(validCredential())
	entered := make(chan struct{})

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-r.Context().Done()
	}), src)

	errCh := make(chan error, 1)
	go func() { errCh <- c.Do(context.Background(), http.MethodGet, "/slow", nil, nil) }()

	<-entered
	src.cancel()

	select {
	case err := <-errCh:
		assert.True(t, IsCanceled(err), "got %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("request was not discarded when the session lifetime ended")
	}
}

func TestForcedLogoutEndsStoreSession(t *testing.T) {
	store := session.NewStore(storage.NewMemory(), session.Options{})
	defer store.Close()

	var revoked atomic.Bool
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/logout":
			w.WriteHeader(http.StatusNoContent)
		default:
			if revoked.Load() {
				_, _ = io.WriteString(w, `{"success":false,"results":{"force_logout":true}}`)
				return
			}
			_, _ = io.WriteString(w, `{"success":true,"results":{"id":"u-1","role":"FUM"}}`)
		}
	}), store)
	store.AttachBackend(c)

	require.NoError(t, store.Login(context.Background(), validCredential(), nil))
	require.NoError(t, store.RefetchUser(context.Background()))
	require.NotNil(t, store.Snapshot().User)

	revoked.Store(true)
	err := c.Do(context.Background(), http.MethodGet, "/data/search", nil, nil)
	require.Error(t, err)

	snap := store.Snapshot()
	assert.False(t, snap.Authenticated)
	assert.Nil(t, snap.User)
	_, ok := store.Credential(context.Background())
	assert.False(t, ok)
	assert.False(t, errors.Is(err, context.DeadlineExceeded))
}

func TestExpiredCredentialRequestIsSentThenSessionEnds(t *testing.T) {
	var now atomic.Int64
	now.Store(time.Now().UnixNano())
	validator := token.NewValidator(token.WithClock(func() time.Time { return time.Unix(0, now.Load()) }))

	store := session.NewStore(storage.NewMemory(), session.Options{Validator: validator})
	defer store.Close()

	var hits, logouts atomic.Int32
	var header atomic.Value
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/users/logout" {
			logouts.Add(1)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		hits.Add(1)
		header.Store(r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"success":true,"results":{"pong":true}}`)
	}), store, WithValidator(validator))
	store.AttachBackend(c)

	ctx := context.Background()
	require.NoError(t, store.Login(ctx, credentialExpiring(time.Now().Add(time.Minute)), nil))
	now.Add(int64(2 * time.Minute))

	var out struct {
		Pong bool `json:"pong"`
	}
	require.NoError(t, c.Do(ctx, http.MethodGet, "/ping", nil, &out))
	assert.True(t, out.Pong, "response must be decoded before the session ends")
	assert.EqualValues(t, 1, hits.Load())
	assert.Equal(t, "", header.Load())

	assert.False(t, store.Snapshot().Authenticated)
	_, ok := store.Credential(ctx)
	assert.False(t, ok)
	assert.EqualValues(t, 1, logouts.Load())
}

func TestLateUnauthorizedKeepsNewerSession(t *testing.T) {
	store := session.NewStore(storage.NewMemory(), session.Options{})
	defer store.Close()

	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entered <- struct{}{}
		<-release
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()
	defer close(release)

	ctx := context.Background()
	first := credentialExpiring(time.Now().Add(time.Hour))
	second := credentialExpiring(time.Now().Add(2 * time.Hour))
	require.NoError(t, store.Login(ctx, first, nil))

	hc := &http.Client{Transport: &Interceptor{Source: store}}
	done := make(chan error, 1)
	go func() {
		resp, err := hc.Get(srv.URL + "/data/search")
		if err == nil {
			_ = resp.Body.Close()
		}
		done <- err
	}()

	<-entered
	require.NoError(t, store.Login(ctx, second, nil))
	release <- struct{}{}
	require.NoError(t, <-done)

	snap := store.Snapshot()
	assert.True(t, snap.Authenticated)
	assert.Equal(t, second, snap.Credential)
	got, ok := store.Credential(ctx)
	require.True(t, ok)
	assert.Equal(t, second, got)
}

func TestLoginDiscardsRequestsOfReplacedSession(t *testing.T) {
	store := session.NewStore(storage.NewMemory(), session.Options{})
	defer store.Close()

	entered := make(chan struct{}, 1)
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entered <- struct{}{}
		<-r.Context().Done()
		w.WriteHeader(http.StatusUnauthorized)
	}), store)

	ctx := context.Background()
	second := credentialExpiring(time.Now().Add(2 * time.Hour))
	require.NoError(t, store.Login(ctx, credentialExpiring(time.Now().Add(time.Hour)), nil))

	errCh := make(chan error, 1)
	go func() { errCh <- c.Do(ctx, http.MethodGet, "/data/search", nil, nil) }()

	<-entered
	require.NoError(t, store.Login(ctx, second, nil))

	select {
	case err := <-errCh:
		assert.True(t, IsCanceled(err), "got %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("request of the replaced session was not discarded")
	}
	got, ok := store.Credential(ctx)
	require.True(t, ok)
	assert.Equal(t, second, got)
	assert.True(t, store.Snapshot().Authenticated)
}
