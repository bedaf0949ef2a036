package api

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/dashAuth/token"
)

// DefaultMaxInspectBytes bounds how much of a response body the interceptor buffers
// to look for a force_logout envelope.
const DefaultMaxInspectBytes int64 = 1 << 20

// CredentialSource is the session surface the interceptor reads and invalidates.
// *session.Store satisfies it.
type CredentialSource interface {
	Credential(ctx context.Context) (string, bool)
	PurgeCredential(ctx context.Context) error
	Invalidate(ctx context.Context)
	Lifetime() context.Context
}

// Hooks observe interceptor decisions. All fields are optional.
type Hooks struct {
	CredentialAttached func()
	CredentialRejected func()
	ForcedLogout       func(status int)
	RequestDone        func(d time.Duration, status int, err error)
}

type bypassKey struct{}

// withoutInterception marks requests that manage their own Authorization header and
// must not feed back into the invalidation signal (login, remote logout).
func withoutInterception(ctx context.Context) context.Context {
	return context.WithValue(ctx, bypassKey{}, true)
}

func bypassed(ctx context.Context) bool {
	v, _ := ctx.Value(bypassKey{}).(bool)
	return v
}

// Interceptor is an http.RoundTripper implementing the outbound and inbound
// credential hooks.
type Interceptor struct {
	Next            http.RoundTripper
	Source          CredentialSource
	Validator       *token.Validator
	Hooks           Hooks
	MaxInspectBytes int64
	Logger          *slog.Logger
}

func (it *Interceptor) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	next := it.Next
	if next == nil {
		next = http.DefaultTransport
	}

	if it.Source == nil || bypassed(req.Context()) {
		resp, err := next.RoundTrip(req)
		it.done(start, resp, err)
		return resp, err
	}

	req, sent, rejected := it.outbound(req)

	resp, err := next.RoundTrip(req)
	if err != nil {
		if rejected {
			it.invalidate(req.Context(), sent)
		}
		it.done(start, nil, err)
		return nil, err
	}

	switch {
	case rejected && resp.Body == nil:
		it.invalidate(req.Context(), sent)
	case rejected:
		ctx := req.Context()
		resp.Body = &closeHook{ReadCloser: resp.Body, fn: func() { it.invalidate(ctx, sent) }}
	default:
		it.inbound(req, resp, sent)
	}
	it.done(start, resp, nil)
	return resp, nil
}

// outbound attaches the persisted credential. sent is the credential that was
// persisted when the request left, attached or not. A credential that no longer
// validates is left off the request and reported as rejected; the session is
// invalidated once the response has been consumed.
func (it *Interceptor) outbound(req *http.Request) (_ *http.Request, sent string, rejected bool) {
	ctx := req.Context()
	cred, ok := it.Source.Credential(ctx)
	if !ok {
		return req, "", false
	}

	if !it.validator().IsValid(cred) {
		it.logger().Info("persisted credential no longer valid, invalidating session")
		if it.Hooks.CredentialRejected != nil {
			it.Hooks.CredentialRejected()
		}
		return req, cred, true
	}

	if req.Header.Get("Authorization") != "" {
		return req, cred, false
	}
	req = req.Clone(ctx)
	req.Header.Set("Authorization", "Bearer "+cred)
	if it.Hooks.CredentialAttached != nil {
		it.Hooks.CredentialAttached()
	}
	return req, cred, false
}

func (it *Interceptor) inbound(req *http.Request, resp *http.Response, sent string) {
	buf, complete := it.inspect(resp)

	if resp.StatusCode == http.StatusUnauthorized {
		it.logger().Info("server rejected credential", slog.String("path", req.URL.Path))
		it.forced(req.Context(), resp.StatusCode, sent)
		return
	}
	if !complete {
		return
	}
	if env, ok := parseEnvelope(buf); ok && env.ForceLogout() {
		it.logger().Info("server forced logout",
			slog.String("path", req.URL.Path),
			slog.String("message", strings.TrimSpace(env.Message)),
		)
		it.forced(req.Context(), resp.StatusCode, sent)
	}
}

// inspect buffers up to MaxInspectBytes of the body and puts an equivalent reader
// back on resp. complete reports whether buf holds the whole body.
func (it *Interceptor) inspect(resp *http.Response) (buf []byte, complete bool) {
	if resp.Body == nil || resp.Body == http.NoBody {
		return nil, true
	}
	limit := it.MaxInspectBytes
	if limit <= 0 {
		limit = DefaultMaxInspectBytes
	}

	buf, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		resp.Body = readCloser{io.MultiReader(bytes.NewReader(buf), errReader{err}), resp.Body}
		return buf, false
	}
	if int64(len(buf)) > limit {
		resp.Body = readCloser{io.MultiReader(bytes.NewReader(buf), resp.Body), resp.Body}
		return buf, false
	}
	_ = resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(buf))
	return buf, true
}

func (it *Interceptor) forced(ctx context.Context, status int, sent string) {
	if it.Hooks.ForcedLogout != nil {
		it.Hooks.ForcedLogout(status)
	}
	it.invalidate(ctx, sent)
}

// invalidate purges the credential and broadcasts the signal, unless the persisted
// credential is no longer sent. A response that arrives after a new login therefore
// leaves the new session alone. The request context may belong to the lifetime the
// signal is about to cancel, so cancellation is dropped.
func (it *Interceptor) invalidate(ctx context.Context, sent string) {
	ctx = context.WithoutCancel(ctx)
	if cur, _ := it.Source.Credential(ctx); cur != sent {
		it.logger().Debug("credential replaced since request was sent, keeping session")
		return
	}
	if err := it.Source.PurgeCredential(ctx); err != nil {
		it.logger().Warn("credential purge failed", slog.Any("error", err))
	}
	it.Source.Invalidate(ctx)
}

func (it *Interceptor) done(start time.Time, resp *http.Response, err error) {
	if it.Hooks.RequestDone == nil {
		return
	}
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	it.Hooks.RequestDone(time.Since(start), status, err)
}

func (it *Interceptor) validator() *token.Validator {
	if it.Validator == nil {
		return token.NewValidator()
	}
	return it.Validator
}

func (it *Interceptor) logger() *slog.Logger {
	if it.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return it.Logger
}

type readCloser struct {
	io.Reader
	io.Closer
}

// closeHook runs fn once, after the wrapped body is closed.
type closeHook struct {
	io.ReadCloser
	once sync.Once
	fn   func()
}

func (c *closeHook) Close() error {
	err := c.ReadCloser.Close()
	c.once.Do(c.fn)
	return err
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }
