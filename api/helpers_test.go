package api

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"
)

func credentialExpiring(at time.Time) string {
	seg := func(s string) string { return base64.RawURLEncoding.EncodeToString([]byte(s)) }
	return seg(`{"alg":"HS256","typ":"JWT"}`) + "." + seg(fmt.Sprintf(`{"sub":"u-1","exp":%d}`, at.Unix())) + ".sig"
}

func validCredential() string   { return credentialExpiring(time.Now().Add(time.Hour)) }
func expiredCredential() string { return credentialExpiring(time.Now().Add(-time.Hour)) }

type fakeSource struct {
	mu          sync.Mutex
	credential  string
	purged      int
	invalidated int
	life        context.Context
	cancel      context.CancelFunc
}

func newFakeSource(credential string) *fakeSource {
	life, cancel := context.WithCancel(context.Background())
	return &fakeSource{credential: credential, life: life, cancel: cancel}
}

func (f *fakeSource) Credential(context.Context) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.credential, f.credential != ""
}

func (f *fakeSource) PurgeCredential(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.credential = ""
	f.purged++
	return nil
}

// Invalidate ends the current lifetime like session.Store does on logout.
func (f *fakeSource) Invalidate(ctx context.Context) {
	if ctx.Err() != nil {
		panic("invalidate received a cancelled context")
	}
	f.mu.Lock()
	f.invalidated++
	f.cancel()
	f.life, f.cancel = context.WithCancel(context.Background())
	f.mu.Unlock()
}

func (f *fakeSource) Lifetime() context.Context {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.life
}

func (f *fakeSource) counts() (purged, invalidated int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.purged, f.invalidated
}
