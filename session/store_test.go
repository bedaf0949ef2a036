package session

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/dashAuth/storage"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestLoginRejectsInvalidCredential(t *testing.T) {
	s, mem, _, _ := newTestStore()
	ctx := context.Background()

	rejected := 0
	s.hooks.LoginRejected = func() { rejected++ }

	for _, cred := range []string{"", "garbage", expiredCredential()} {
		if err := s.Login(ctx, cred, testUser()); !errors.Is(err, ErrInvalidCredential) {
			t.Fatalf("expected ErrInvalidCredential for %q, got %v", cred, err)
		}
	}
	if mem.Len() != 0 {
		t.Fatalf("invalid credential must never be stored")
	}
	if s.Snapshot().Authenticated {
		t.Fatalf("session must stay unauthenticated")
	}
	if rejected != 3 {
		t.Fatalf("expected 3 rejected hooks, got %d", rejected)
	}
}

func TestLoginLogoutRoundTrip(t *testing.T) {
	s, mem, backend, nav := newTestStore()
	ctx := context.Background()
	before := s.Snapshot()

	cred := validCredential()
	if err := s.Login(ctx, cred, testUser()); err != nil {
		t.Fatalf("login: %v", err)
	}
	snap := s.Snapshot()
	if !snap.Authenticated || snap.Credential != cred || snap.User == nil || snap.User.ID != "u-1" {
		t.Fatalf("unexpected snapshot after login: %+v", snap)
	}
	if got, _ := s.Credential(ctx); got != cred {
		t.Fatalf("expected persisted credential")
	}

	if err := s.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if after := s.Snapshot(); !reflect.DeepEqual(before, after) {
		t.Fatalf("expected pre-login state %+v, got %+v", before, after)
	}
	if mem.Len() != 0 {
		t.Fatalf("expected storage purged, %d entries left", mem.Len())
	}
	if got := backend.remote(); len(got) != 1 || got[0] != cred {
		t.Fatalf("expected one remote logout with the credential, got %v", got)
	}
	if nav.count.Load() != 1 {
		t.Fatalf("expected one navigation to login, got %d", nav.count.Load())
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s, _, _, _ := newTestStore()
	if err := s.Login(context.Background(), validCredential(), testUser()); err != nil {
		t.Fatalf("login: %v", err)
	}
	snap := s.Snapshot()
	snap.User.Role = "sys-admin"
	snap.User.Permissions["admin"] = true

	again := s.Snapshot()
	if again.User.Role != "FUM" || again.User.Permissions["admin"] {
		t.Fatalf("snapshot mutation leaked into the store")
	}
}

func TestInitializeRestoresSession(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	cred := validCredential()
	encoded, err := EncodeUser(testUser())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	_ = mem.Set(ctx, KeyCredential, cred)
	_ = mem.Set(ctx, KeyUser, encoded)

	restored := false
	s := NewStore(mem, Options{Hooks: Hooks{Restored: func(ok bool) { restored = ok }}})
	if err := s.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	snap := s.Snapshot()
	if !snap.Authenticated || snap.Credential != cred {
		t.Fatalf("expected restored session, got %+v", snap)
	}
	if snap.User == nil || snap.User.Role != "FUM" || snap.User.Level.String() != "FACTORY" {
		t.Fatalf("expected restored user, got %+v", snap.User)
	}
	if !restored {
		t.Fatalf("expected restored hook")
	}
}

func TestInitializePurgesExpiredCredential(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	_ = mem.Set(ctx, KeyCredential, expiredCredential())

	purged := 0
	s := NewStore(mem, Options{Hooks: Hooks{CredentialPurged: func() { purged++ }}})
	if err := s.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if s.Snapshot().Authenticated {
		t.Fatalf("expired credential must not authenticate")
	}
	if _, ok, _ := mem.Get(ctx, KeyCredential); ok {
		t.Fatalf("expired credential must be purged")
	}
	if purged != 1 {
		t.Fatalf("expected one purge hook, got %d", purged)
	}
}

func TestInitializeWithMalformedUserLeavesUserNil(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	_ = mem.Set(ctx, KeyCredential, validCredential())
	_ = mem.Set(ctx, KeyUser, "{broken")

	s := NewStore(mem, Options{})
	if err := s.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	snap := s.Snapshot()
	if !snap.Authenticated || snap.User != nil {
		t.Fatalf("expected authenticated session without user, got %+v", snap)
	}
}

func TestRefetchUserCoalesces(t *testing.T) {
	ctx := context.Background()
	s, mem, backend, _ := newTestStore()
	backend.gate = make(chan struct{})
	if err := s.Login(ctx, validCredential(), nil); err != nil {
		t.Fatalf("login: %v", err)
	}

	const callers = 16
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.RefetchUser(ctx)
		}()
	}

	deadline := time.Now().Add(2 * time.Second)
	for backend.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(backend.gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("refetch: %v", err)
		}
	}
	if got := backend.calls.Load(); got != 1 {
		t.Fatalf("expected exactly one backend call, got %d", got)
	}
	if snap := s.Snapshot(); snap.User == nil || snap.User.ID != "u-1" {
		t.Fatalf("expected fetched user, got %+v", snap.User)
	}
	if _, ok, _ := mem.Get(ctx, KeyUser); !ok {
		t.Fatalf("expected fetched user persisted")
	}

	if err := s.RefetchUser(ctx); err != nil {
		t.Fatalf("refetch with resident user: %v", err)
	}
	if got := backend.calls.Load(); got != 1 {
		t.Fatalf("refetch with resident user must not call backend, got %d calls", got)
	}
}

func TestRefetchUserFailureLogsOut(t *testing.T) {
	ctx := context.Background()
	s, mem, backend, nav := newTestStore()
	backend.err = errors.New("boom")
	if err := s.Login(ctx, validCredential(), nil); err != nil {
		t.Fatalf("login: %v", err)
	}

	err := s.RefetchUser(ctx)
	if !errors.Is(err, ErrSessionFetchFailed) {
		t.Fatalf("expected ErrSessionFetchFailed, got %v", err)
	}
	if s.Snapshot().Authenticated {
		t.Fatalf("failed refetch must end the session")
	}
	if mem.Len() != 0 {
		t.Fatalf("failed refetch must purge storage")
	}
	if nav.count.Load() != 1 {
		t.Fatalf("expected navigation to login")
	}

	if err := s.RefetchUser(ctx); err != nil {
		t.Fatalf("refetch after logout must be a no-op, got %v", err)
	}
	if backend.calls.Load() != 1 {
		t.Fatalf("failure must not be retried, got %d calls", backend.calls.Load())
	}
}

func TestRefetchUserWithoutBackend(t *testing.T) {
	s := NewStore(storage.NewMemory(), Options{})
	if err := s.Login(context.Background(), validCredential(), nil); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := s.RefetchUser(context.Background()); !errors.Is(err, ErrNoBackend) {
		t.Fatalf("expected ErrNoBackend, got %v", err)
	}
}

func TestLogoutDiscardsInFlightRefetch(t *testing.T) {
	ctx := context.Background()
	s, _, backend, _ := newTestStore()
	backend.gate = make(chan struct{})
	if err := s.Login(ctx, validCredential(), nil); err != nil {
		t.Fatalf("login: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- s.RefetchUser(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for backend.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if err := s.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("refetch must be cancelled by logout")
	}
	if snap := s.Snapshot(); snap.Authenticated || snap.User != nil {
		t.Fatalf("expected empty session, got %+v", snap)
	}
}

func TestInvalidationIsIdempotentAndBroadcast(t *testing.T) {
	ctx := context.Background()
	s, mem, _, nav := newTestStore()
	if err := s.Login(ctx, validCredential(), testUser()); err != nil {
		t.Fatalf("login: %v", err)
	}

	var order []string
	var mu sync.Mutex
	record := func(name string) func(context.Context) {
		return func(context.Context) {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
		}
	}
	s.OnInvalidated(record("guard"))
	unsubscribe := s.OnInvalidated(record("header"))

	s.Invalidate(ctx)
	once := s.Snapshot()
	s.Invalidate(ctx)
	twice := s.Snapshot()

	if !reflect.DeepEqual(once, twice) || once.Authenticated {
		t.Fatalf("expected identical empty state, got %+v then %+v", once, twice)
	}
	if mem.Len() != 0 {
		t.Fatalf("expected storage purged")
	}
	if want := []string{"guard", "header", "guard", "header"}; !reflect.DeepEqual(order, want) {
		t.Fatalf("expected subscribers %v, got %v", want, order)
	}
	if nav.count.Load() != 2 {
		t.Fatalf("expected two harmless navigations, got %d", nav.count.Load())
	}

	unsubscribe()
	unsubscribe()
	s.Invalidate(ctx)
	if got := order[len(order)-1]; got != "guard" || len(order) != 5 {
		t.Fatalf("unsubscribed handler still notified: %v", order)
	}
}

func TestLogoutCancelsLifetime(t *testing.T) {
	s, _, _, _ := newTestStore()
	lifetime := s.Lifetime()
	if err := s.Logout(context.Background()); err != nil {
		t.Fatalf("logout: %v", err)
	}
	select {
	case <-lifetime.Done():
	default:
		t.Fatalf("expected lifetime cancelled by logout")
	}
	if s.Lifetime().Err() != nil {
		t.Fatalf("expected fresh lifetime after logout")
	}
}

func TestLoginOverSessionReplacesLifetime(t *testing.T) {
	s, _, _, _ := newTestStore()
	ctx := context.Background()

	first := s.Lifetime()
	if err := s.Login(ctx, validCredential(), testUser()); err != nil {
		t.Fatalf("login: %v", err)
	}
	if first.Err() != nil {
		t.Fatalf("first login must keep the unauthenticated lifetime")
	}

	replaced := s.Lifetime()
	next := credentialExpiring(time.Now().Add(2 * time.Hour))
	if err := s.Login(ctx, next, testUser()); err != nil {
		t.Fatalf("second login: %v", err)
	}
	select {
	case <-replaced.Done():
	default:
		t.Fatalf("expected lifetime of the replaced session cancelled")
	}
	if s.Lifetime().Err() != nil {
		t.Fatalf("expected fresh lifetime for the new session")
	}
	if got, _ := s.Credential(ctx); got != next {
		t.Fatalf("expected new credential persisted, got %q", got)
	}
}

func TestRemoteLogoutInvalidatesSession(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx := context.Background()
	cred := validCredential()

	local := NewStore(storage.NewRedis(rdb, "dash", "ops"), Options{})
	if err := local.Login(ctx, cred, testUser()); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := local.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	defer local.Close()

	invalidated := make(chan struct{}, 1)
	local.OnInvalidated(func(context.Context) {
		select {
		case invalidated <- struct{}{}:
		default:
		}
	})

	other := NewStore(storage.NewRedis(rdb, "dash", "ops"), Options{})
	if err := other.Initialize(ctx); err != nil {
		t.Fatalf("initialize other: %v", err)
	}
	defer other.Close()
	if !other.Snapshot().Authenticated {
		t.Fatalf("second process should restore the shared session")
	}
	if err := other.Logout(ctx); err != nil {
		t.Fatalf("other logout: %v", err)
	}

	select {
	case <-invalidated:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected cross-process invalidation")
	}
	if local.Snapshot().Authenticated {
		t.Fatalf("local session must be reset")
	}
}
