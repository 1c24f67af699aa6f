package session

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/placementcell/portal/core"
	"github.com/placementcell/portal/core/portal"
	"github.com/placementcell/portal/core/quiz"
	"github.com/placementcell/portal/core/toast"
	"github.com/placementcell/portal/core/upload"
)

// Session is the per-visitor state: auth keys, preferences, drafts and the state of multi-step flows.
type Session struct {
	ID string `json:"id"`

	AuthToken   string      `json:"authToken,omitempty"`
	UserRole    portal.Role `json:"userRole,omitempty"`
	Username    string      `json:"username,omitempty"`
	CompanyName string      `json:"companyName,omitempty"`
	AdminBranch string      `json:"adminBranch,omitempty"`

	RememberMe        bool   `json:"rememberMe,omitempty"`
	SavedUsername     string `json:"savedUsername,omitempty"`
	SavedComputerCode string `json:"savedComputerCode,omitempty"`

	SendEmailNotifications bool            `json:"sendEmailNotifications,omitempty"`
	ResumeDraft            json.RawMessage `json:"resumeDraft,omitempty"`

	Wizard  *upload.Wizard `json:"wizard,omitempty"`
	Uploads *upload.Queue  `json:"uploads,omitempty"` // last manual upload batch, kept for retries
	Quiz    *quiz.Engine   `json:"quiz,omitempty"`
	Toasts  toast.Queue    `json:"toasts"`

	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func newSession(now time.Time) *Session {
	return &Session{ID: uuid.NewString(), CreatedAt: now}
}

func (s *Session) IsAuthenticated() bool {
	return s.AuthToken != ""
}

// Role is USER for anonymous sessions too.
func (s *Session) Role() portal.Role {
	if s.UserRole == "" {
		return portal.RoleUser
	}
	return s.UserRole
}

func (s *Session) IsAdmin() bool {
	return s.IsAuthenticated() && s.Role().IsAdmin()
}

func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// LoginMode tells which identifier the user logged in with.
type LoginMode string

const (
	LoginStudent LoginMode = "student"
	LoginAdmin   LoginMode = "admin"
)

// SetAuth stores the login result; optional keys missing from the result are removed.
func (s *Session) SetAuth(res portal.LoginResult) {
	s.AuthToken = res.Token
	s.Username = res.Username
	s.UserRole = portal.RoleFromClaims(res.Roles)
	s.CompanyName = res.CompanyName
	s.AdminBranch = res.Branch
}

// Remember saves (or forgets) the identifier of the login mode to pre-fill the login form with.
func (s *Session) Remember(mode LoginMode, identifier string, remember bool) {
	if !remember {
		identifier = ""
	}
	if mode == LoginStudent {
		s.SavedComputerCode = identifier
	} else {
		s.SavedUsername = identifier
	}
	s.RememberMe = s.SavedComputerCode != "" || s.SavedUsername != ""
}

// SavedIdentifier is the remembered identifier of the login mode.
func (s *Session) SavedIdentifier(mode LoginMode) string {
	if mode == LoginStudent {
		return s.SavedComputerCode
	}
	return s.SavedUsername
}

// Logout drops the auth keys and the flows tied to them, keeping the remembered identifiers.
func (s *Session) Logout() {
	s.AuthToken, s.UserRole, s.Username, s.CompanyName, s.AdminBranch = "", "", "", "", ""
	s.Wizard, s.Uploads = nil, nil
}

// reset clears everything but the id.
func (s *Session) reset(now time.Time) {
	*s = Session{ID: s.ID, CreatedAt: now, Toasts: toast.Queue{Duration: s.Toasts.Duration}}
}

// LogUser returns the identity attached to log entries.
func (s *Session) LogUser() core.LogUser {
	return core.LogUser{ID: s.ID, Username: s.Username, Role: string(s.Role())}
}

func Marshal(s *Session) ([]byte, error) {
	data, err := json.Marshal(s)
	return data, errors.Wrap(err, "encoding session")
}

func Unmarshal(data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(err, "decoding session")
	}
	return &s, nil
}
