package auth

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/bayue48/pia-scrap/model"
	"github.com/google/uuid"
)

// Session is the credential material owned by one API run: the
// longer-lived login token plus the device key cookie. Short-lived
// episode tickets are never stored here.
type Session struct {
	LoginAt string `json:"login_at"`
	UserKey string `json:"userkey"`
}

// Valid reports whether the session carries enough state to attempt
// authenticated calls without logging in first.
func (s *Session) Valid() bool {
	return s != nil && s.LoginAt != "" && s.UserKey != ""
}

// NewSession returns an anonymous session with a fresh device key.
func NewSession() *Session {
	return &Session{UserKey: uuid.New().String()}
}

// SessionPath is where the session store lives under an output root.
func SessionPath(outputRoot string) string {
	return filepath.Join(outputRoot, ".session.json")
}

// LoadSession reads the persisted session store. A missing file is not
// an error: it yields a fresh anonymous session. A present but invalid
// file is malformed input.
func LoadSession(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewSession(), nil
		}
		return nil, &model.MalformedInputError{Path: path, Err: err}
	}
	s := &Session{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, &model.MalformedInputError{Path: path, Err: err}
	}
	if s.UserKey == "" {
		s.UserKey = uuid.New().String()
	}
	return s, nil
}

// SaveSession writes the session store, creating the directory if
// needed. Called once after a successful login or refresh.
func SaveSession(path string, s *Session) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
