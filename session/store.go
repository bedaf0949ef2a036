package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/MrEthical07/dashAuth/token"
	"golang.org/x/sync/singleflight"
)

// Persisted entry keys.
const (
	KeyCredential = "token"
	KeyUser       = "user"
)

var (
	// ErrInvalidCredential is returned by Login for an expired or malformed credential.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrSessionFetchFailed is returned by RefetchUser after the fetch failed and the
	// session was terminated.
	ErrSessionFetchFailed = errors.New("session fetch failed")
	// ErrStorageUnavailable wraps persistence failures.
	ErrStorageUnavailable = errors.New("session storage unavailable")
	// ErrNoBackend is returned by RefetchUser when no backend is attached.
	ErrNoBackend = errors.New("session backend not attached")
)

// Storage persists the credential and user entries across restarts.
type Storage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Watcher is implemented by storages shared between processes. fn is called when
// another process changes key.
type Watcher interface {
	Watch(ctx context.Context, fn func(key string, deleted bool)) (stop func(), err error)
}

// Backend is the part of the REST API the store depends on.
type Backend interface {
	Me(ctx context.Context) (*UserRecord, error)
	LogoutRemote(ctx context.Context, credential string) error
}

// Navigator performs the hard navigation to the login surface after logout.
type Navigator interface {
	ToLogin(ctx context.Context)
}

// NavigatorFunc adapts a function to [Navigator].
type NavigatorFunc func(ctx context.Context)

func (f NavigatorFunc) ToLogin(ctx context.Context) { f(ctx) }

// Hooks observe store transitions. All fields are optional and are called without the
// store lock held.
type Hooks struct {
	Login            func(user *UserRecord)
	LoginRejected    func()
	Logout           func(hadSession bool)
	Restored         func(authenticated bool)
	CredentialPurged func()
	Invalidated      func()
	Refetch          func(err error)
}

// Options configures a [Store].
type Options struct {
	Validator *token.Validator
	Navigator Navigator
	Logger    *slog.Logger
	Hooks     Hooks
}

// Store is the single source of truth for authentication state.
//
// Store methods are safe for concurrent use.
type Store struct {
	storage   Storage
	validator *token.Validator
	navigator Navigator
	logger    *slog.Logger
	hooks     Hooks
	signal    Signal
	refetch   singleflight.Group

	mu            sync.RWMutex
	authenticated bool
	user          *UserRecord
	credential    string
	generation    uint64
	lifetime      context.Context
	cancel        context.CancelFunc
	backend       Backend
	stopWatch     func()
}

// NewStore creates an empty store over storage. Call Initialize before first use.
func NewStore(storage Storage, opts Options) *Store {
	if opts.Validator == nil {
		opts.Validator = token.NewValidator()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	s := &Store{
		storage:   storage,
		validator: opts.Validator,
		navigator: opts.Navigator,
		logger:    opts.Logger,
		hooks:     opts.Hooks,
	}
	s.lifetime, s.cancel = context.WithCancel(context.Background())

	// The store is always the first subscriber so later subscribers observe the
	// reset state.
	s.signal.Subscribe(func(ctx context.Context) {
		_ = s.Logout(ctx)
	})
	return s
}

// AttachBackend sets the backend used for refetch and remote logout.
func (s *Store) AttachBackend(b Backend) {
	s.mu.Lock()
	s.backend = b
	s.mu.Unlock()
}

// Initialize rehydrates the session from storage. A persisted credential that no
// longer validates is purged and the session stays unauthenticated.
func (s *Store) Initialize(ctx context.Context) error {
	defer s.startWatch()

	cred, ok, err := s.storage.Get(ctx, KeyCredential)
	if err != nil {
		s.logger.Error("session restore failed", slog.Any("error", err))
		s.callRestored(false)
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if !ok || cred == "" {
		s.callRestored(false)
		return nil
	}

	if !s.validator.IsValid(cred) {
		s.logger.Info("persisted credential expired or malformed, purging")
		s.callRestored(false)
		return s.PurgeCredential(ctx)
	}

	var user *UserRecord
	raw, ok, err := s.storage.Get(ctx, KeyUser)
	switch {
	case err != nil:
		s.logger.Warn("persisted user unreadable", slog.Any("error", err))
	case ok:
		if user, err = DecodeUser(raw); err != nil {
			s.logger.Warn("persisted user malformed, will refetch", slog.Any("error", err))
			user = nil
		}
	}

	s.mu.Lock()
	s.authenticated = true
	s.credential = cred
	s.user = user
	s.generation++
	s.mu.Unlock()

	s.logger.Debug("session restored", slog.Bool("user_cached", user != nil))
	s.callRestored(true)
	return nil
}

// Login stores credential and user and marks the session authenticated. An invalid
// credential is never stored. user may be nil, in which case RefetchUser loads it.
// Replacing an existing session ends its lifetime, as Logout does.
func (s *Store) Login(ctx context.Context, credential string, user *UserRecord) error {
	if !s.validator.IsValid(credential) {
		if s.hooks.LoginRejected != nil {
			s.hooks.LoginRejected()
		}
		return ErrInvalidCredential
	}

	if err := s.storage.Set(ctx, KeyCredential, credential); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if user != nil {
		encoded, err := EncodeUser(user)
		if err == nil {
			err = s.storage.Set(ctx, KeyUser, encoded)
		}
		if err != nil {
			_ = s.storage.Delete(ctx, KeyCredential)
			return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
	} else if err := s.storage.Delete(ctx, KeyUser); err != nil {
		_ = s.storage.Delete(ctx, KeyCredential)
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	stored := user.Clone()
	s.mu.Lock()
	if s.authenticated || s.credential != "" {
		s.cancel()
		s.lifetime, s.cancel = context.WithCancel(context.Background())
	}
	s.authenticated = true
	s.credential = credential
	s.user = stored
	s.generation++
	s.mu.Unlock()

	if s.hooks.Login != nil {
		s.hooks.Login(stored.Clone())
	}
	return nil
}

// Logout purges persisted state, resets the session, cancels the current lifetime,
// notifies the backend best-effort, and navigates to login. It is idempotent; the
// local reset happens even when storage fails.
func (s *Store) Logout(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	hadSession := s.authenticated || s.credential != ""
	credential := s.credential
	backend := s.backend
	s.authenticated = false
	s.user = nil
	s.credential = ""
	s.generation++
	s.cancel()
	s.lifetime, s.cancel = context.WithCancel(context.Background())
	s.mu.Unlock()

	var errs []error
	if err := s.storage.Delete(ctx, KeyCredential); err != nil {
		errs = append(errs, err)
	}
	if err := s.storage.Delete(ctx, KeyUser); err != nil {
		errs = append(errs, err)
	}

	if credential != "" && backend != nil {
		if err := backend.LogoutRemote(ctx, credential); err != nil {
			s.logger.Debug("remote logout failed", slog.Any("error", err))
		}
	}

	if s.hooks.Logout != nil {
		s.hooks.Logout(hadSession)
	}
	if s.navigator != nil {
		s.navigator.ToLogin(ctx)
	}

	if len(errs) > 0 {
		s.logger.Warn("session purge incomplete", slog.Any("error", errors.Join(errs...)))
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, errors.Join(errs...))
	}
	return nil
}

// OnInvalidated subscribes fn to the invalidation signal.
func (s *Store) OnInvalidated(fn func(ctx context.Context)) (unsubscribe func()) {
	return s.signal.Subscribe(fn)
}

// Invalidate broadcasts the invalidation signal. The store's own subscriber logs out
// before any other subscriber runs.
func (s *Store) Invalidate(ctx context.Context) {
	if s.hooks.Invalidated != nil {
		s.hooks.Invalidated()
	}
	s.signal.Emit(ctx)
}

// Credential returns the persisted credential, if any.
func (s *Store) Credential(ctx context.Context) (string, bool) {
	cred, ok, err := s.storage.Get(ctx, KeyCredential)
	if err != nil {
		s.logger.Warn("credential read failed", slog.Any("error", err))
		return "", false
	}
	return cred, ok && cred != ""
}

// PurgeCredential removes the persisted credential without touching memory state.
func (s *Store) PurgeCredential(ctx context.Context) error {
	if err := s.storage.Delete(ctx, KeyCredential); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if s.hooks.CredentialPurged != nil {
		s.hooks.CredentialPurged()
	}
	return nil
}

// Lifetime returns a context cancelled by the next Logout.
func (s *Store) Lifetime() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lifetime
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Authenticated: s.authenticated,
		User:          s.user.Clone(),
		Credential:    s.credential,
	}
}

// RefetchUser loads the user record from the backend when the session is
// authenticated but has no user. Concurrent calls within one lifetime segment share a
// single request. Any failure terminates the session and is not retried.
func (s *Store) RefetchUser(ctx context.Context) error {
	s.mu.RLock()
	need := s.authenticated && s.user == nil
	gen := s.generation
	backend := s.backend
	s.mu.RUnlock()

	if !need {
		return nil
	}
	if backend == nil {
		return ErrNoBackend
	}

	ch := s.refetch.DoChan(strconv.FormatUint(gen, 10), func() (interface{}, error) {
		return nil, s.refetchOnce(gen, backend)
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

func (s *Store) refetchOnce(gen uint64, backend Backend) error {
	user, err := backend.Me(s.Lifetime())
	if err == nil && user == nil {
		err = errEmptyUserRecord
	}
	if s.hooks.Refetch != nil {
		s.hooks.Refetch(err)
	}

	if err != nil {
		s.logger.Warn("user refetch failed, ending session", slog.Any("error", err))
		if s.currentGeneration() == gen {
			_ = s.Logout(context.Background())
		}
		return fmt.Errorf("%w: %v", ErrSessionFetchFailed, err)
	}

	stored := user.Clone()
	s.mu.Lock()
	if s.generation != gen || !s.authenticated {
		s.mu.Unlock()
		return nil
	}
	s.user = stored
	s.mu.Unlock()

	if encoded, err := EncodeUser(stored); err == nil {
		if err := s.storage.Set(context.Background(), KeyUser, encoded); err != nil {
			s.logger.Warn("persist user failed", slog.Any("error", err))
		}
	}
	return nil
}

// Close stops the storage watcher, if any.
func (s *Store) Close() {
	s.mu.Lock()
	stop := s.stopWatch
	s.stopWatch = nil
	s.mu.Unlock()
	if stop != nil {
		stop()
	}
}

func (s *Store) currentGeneration() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

func (s *Store) callRestored(ok bool) {
	if s.hooks.Restored != nil {
		s.hooks.Restored(ok)
	}
}

func (s *Store) startWatch() {
	w, ok := s.storage.(Watcher)
	if !ok {
		return
	}
	s.mu.Lock()
	if s.stopWatch != nil {
		s.mu.Unlock()
		return
	}
	s.stopWatch = func() {}
	s.mu.Unlock()

	stop, err := w.Watch(context.Background(), func(key string, deleted bool) {
		if key != KeyCredential || !deleted {
			return
		}
		s.mu.RLock()
		active := s.authenticated
		s.mu.RUnlock()
		if active {
			s.logger.Info("credential removed by another process")
			s.Invalidate(context.Background())
		}
	})
	if err != nil {
		s.logger.Warn("storage watch unavailable", slog.Any("error", err))
		s.mu.Lock()
		s.stopWatch = nil
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	s.stopWatch = stop
	s.mu.Unlock()
}
