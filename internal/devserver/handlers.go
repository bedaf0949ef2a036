package devserver

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MrEthical07/dashAuth/permission"
	"github.com/MrEthical07/dashAuth/session"
)

const maxRequestBytes = 64 << 10

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token string              `json:"token"`
	User  *session.UserRecord `json:"user,omitempty"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes)).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := s.validate.Struct(in); err != nil {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	account, ok := s.dir.authenticate(in.Email, in.Password)
	if !ok {
		s.logger.Info("login rejected", slog.String("email", in.Email))
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	id := uuid.NewString()
	userID := string(account.User.ID)
	cred, err := s.issuer.Issue(userID, account.User.Role, id)
	if err != nil {
		s.logger.Error("issue credential failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "could not issue credential")
		return
	}
	if err := s.revoked.Track(r.Context(), userID, id, s.cfg.TokenTTL); err != nil {
		s.logger.Error("track credential failed", slog.Any("error", err))
		writeError(w, http.StatusServiceUnavailable, "revocation store unavailable")
		return
	}

	out := loginResponse{Token: cred}
	if s.cfg.IncludeUserInLogin {
		out.User = account.User.Clone()
	}
	s.logger.Info("login", slog.String("user_id", userID), slog.String("credential_id", id))
	writeResults(w, out)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeResults(w, principalFrom(r.Context()).account.User.Clone())
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())
	if err := s.revoked.RevokeCredential(r.Context(), p.claims.ID, p.claims.ExpiresAt.Time); err != nil {
		s.logger.Error("revoke credential failed", slog.Any("error", err))
		writeError(w, http.StatusServiceUnavailable, "revocation store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "logged out"})
}

func (s *Server) handleRevokeUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.dir.byID[id]; !ok {
		writeError(w, http.StatusNotFound, "unknown user")
		return
	}
	n, err := s.revoked.RevokeUser(r.Context(), id, s.cfg.TokenTTL)
	if err != nil {
		s.logger.Error("revoke user failed", slog.Any("error", err))
		writeError(w, http.StatusServiceUnavailable, "revocation store unavailable")
		return
	}
	writeResults(w, map[string]int{"revoked": n})
}

type searchQuery struct {
	Q     string `json:"q" validate:"max=200"`
	Limit int    `json:"limit" validate:"gte=0,lte=500"`
}

const defaultSearchLimit = 50

func (s *Server) handleSearch(resource string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var q searchQuery
		err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes)).Decode(&q)
		if err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "malformed search query")
			return
		}
		if err := s.validate.Struct(q); err != nil {
			writeError(w, http.StatusBadRequest, "invalid search query")
			return
		}
		if q.Limit == 0 {
			q.Limit = defaultSearchLimit
		}

		p := principalFrom(r.Context())
		rows := make([]Row, 0)
		for _, row := range s.fixtures[resource] {
			if len(rows) == q.Limit {
				break
			}
			if s.visible(resource, row, p) && row.matches(q.Q) {
				rows = append(rows, row)
			}
		}
		writeResults(w, rows)
	}
}

// visible scopes rows to the caller's part of the plant network.
func (s *Server) visible(resource string, row Row, p *principal) bool {
	user := p.account.User
	switch {
	case p.level.AtLeast(permission.LevelNational):
		return true
	case p.level == permission.LevelRegional:
		return row.str("regionId") == string(user.RegionID)
	case p.level == permission.LevelFactory:
		factory := row.str("factoryId")
		if resource == "factories" {
			factory = row.str("id")
		}
		return factory == string(user.FactoryID)
	default:
		return false
	}
}
