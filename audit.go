package dashAuth

import (
	"io"
	"log/slog"

	"github.com/MrEthical07/dashAuth/internal/audit"
)

// Audit event types emitted by [Client].
const (
	AuditLogin            = "login"
	AuditLoginRejected    = "login_rejected"
	AuditLogout           = "logout"
	AuditRestored         = "session_restored"
	AuditCredentialPurged = "credential_purged"
	AuditInvalidated      = "session_invalidated"
	AuditRefetchFailed    = "profile_refetch_failed"
	AuditAccessDenied     = "access_denied"
)

type (
	// AuditEvent is one audit record.
	AuditEvent = audit.Event
	// AuditSink receives audit records from the dispatcher goroutine.
	AuditSink = audit.Sink
	// NoOpSink discards audit records.
	NoOpSink = audit.NoOpSink
	// ChannelSink forwards audit records to a buffered channel.
	ChannelSink = audit.ChannelSink
	// JSONWriterSink writes audit records as JSON lines.
	JSONWriterSink = audit.JSONWriterSink
	// SlogSink writes audit records to a structured logger.
	SlogSink = audit.SlogSink
)

func NewChannelSink(buffer int) *ChannelSink { return audit.NewChannelSink(buffer) }

func NewJSONWriterSink(w io.Writer) *JSONWriterSink { return audit.NewJSONWriterSink(w) }

func NewSlogSink(logger *slog.Logger) *SlogSink { return audit.NewSlogSink(logger) }
