package session

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/dashAuth/permission"
	"github.com/MrEthical07/dashAuth/storage"
)

func credentialExpiring(at time.Time) string {
	seg := func(s string) string { return base64.RawURLEncoding.EncodeToString([]byte(s)) }
	return seg(`{"alg":"HS256"}`) + "." + seg(fmt.Sprintf(`{"sub":"u-1","exp":%d}`, at.Unix())) + ".sig"
}

func validCredential() string {
	return credentialExpiring(time.Now().Add(time.Hour))
}

func expiredCredential() string {
	return credentialExpiring(time.Now().Add(-time.Hour))
}

func testUser() *UserRecord {
	return &UserRecord{
		ID:          "u-1",
		Name:        "Ada",
		Email:       "ada@example.com",
		Role:        "FUM",
		Level:       permission.LevelString("FACTORY"),
		FactoryID:   "f-7",
		Permissions: map[string]bool{"devices.read": true},
	}
}

type fakeBackend struct {
	mu          sync.Mutex
	user        *UserRecord
	err         error
	gate        chan struct{}
	calls       atomic.Int32
	remoteCalls []string
}

func (b *fakeBackend) Me(ctx context.Context) (*UserRecord, error) {
	b.calls.Add(1)
	if b.gate != nil {
		select {
		case <-b.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	return b.user.Clone(), nil
}

func (b *fakeBackend) LogoutRemote(_ context.Context, credential string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.remoteCalls = append(b.remoteCalls, credential)
	return nil
}

func (b *fakeBackend) remote() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.remoteCalls...)
}

type recordingNavigator struct {
	count atomic.Int32
}

func (n *recordingNavigator) ToLogin(context.Context) { n.count.Add(1) }

func newTestStore() (*Store, *storage.Memory, *fakeBackend, *recordingNavigator) {
	mem := storage.NewMemory()
	nav := &recordingNavigator{}
	backend := &fakeBackend{user: testUser()}
	s := NewStore(mem, Options{Navigator: nav})
	s.AttachBackend(backend)
	return s, mem, backend, nav
}
