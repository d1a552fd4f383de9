// Package credential implements the layered credential store: an OS
// secret-service backend preferred over a file fallback, with
// migrate-on-load semantics.
package credential

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zalando/go-keyring"
	"go.uber.org/zap"

	"github.com/bryonbaker/gh-notifier/internal/apperrors"
)

const (
	keyringService = "gh-notifier"
	keyringUser    = "github_auth_token"
)

// SecretString wraps a secret value so it never accidentally round-trips
// through a log statement or an unrelated JSON encoder. String() and
// MarshalJSON() both return a redacted placeholder; Reveal() is the only
// way to recover the underlying value.
type SecretString struct {
	value string
}

// NewSecretString wraps value in a SecretString.
func NewSecretString(value string) SecretString {
	return SecretString{value: value}
}

// Reveal returns the underlying secret value. Callers must never pass the
// result to a logger or a general-purpose serializer.
func (s SecretString) Reveal() string { return s.value }

// String implements fmt.Stringer with a redacted placeholder so %v and %s
// verbs never leak the token.
func (s SecretString) String() string { return "[REDACTED]" }

// MarshalJSON implements json.Marshaler with a redacted placeholder.
// Credential serialises its token via marshalSecret instead, which is the
// only code path permitted to see the real value.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return json.Marshal("[REDACTED]")
}

// Credential is the persisted authentication material for the remote API.
type Credential struct {
	Token             SecretString `json:"-"`
	Scheme            string       `json:"scheme"`
	AccessExpiresAt   *int64       `json:"access_expires_at,omitempty"`
	RefreshToken      *SecretString `json:"-"`
	RefreshExpiresAt  *int64       `json:"refresh_expires_at,omitempty"`
}

// credentialWire is the on-disk/keyring JSON shape. It is the only place
// the raw token value is ever serialized.
type credentialWire struct {
	Token            string `json:"token"`
	Scheme           string `json:"scheme"`
	AccessExpiresAt  *int64 `json:"access_expires_at,omitempty"`
	RefreshToken     string `json:"refresh_token,omitempty"`
	RefreshExpiresAt *int64 `json:"refresh_expires_at,omitempty"`
}

func toWire(c Credential) credentialWire {
	w := credentialWire{
		Token:            c.Token.Reveal(),
		Scheme:           c.Scheme,
		AccessExpiresAt:  c.AccessExpiresAt,
		RefreshExpiresAt: c.RefreshExpiresAt,
	}
	if c.RefreshToken != nil {
		w.RefreshToken = c.RefreshToken.Reveal()
	}
	return w
}

func fromWire(w credentialWire) Credential {
	c := Credential{
		Token:            NewSecretString(w.Token),
		Scheme:           w.Scheme,
		AccessExpiresAt:  w.AccessExpiresAt,
		RefreshExpiresAt: w.RefreshExpiresAt,
	}
	if w.RefreshToken != "" {
		rt := NewSecretString(w.RefreshToken)
		c.RefreshToken = &rt
	}
	return c
}

// Store is the C1 contract: persist a secret token with keyring-preferred,
// file-fallback semantics.
type Store interface {
	Save(c Credential) error
	Load() (*Credential, error)
	Delete() error
}

// LayeredStore tries the OS secret service first and falls back to a JSON
// file at filePath. Successful file loads are opportunistically migrated
// back into the keyring.
type LayeredStore struct {
	filePath string
	logger   *zap.Logger
}

var _ Store = (*LayeredStore)(nil)

// NewLayeredStore builds a LayeredStore whose file fallback lives at
// filePath.
func NewLayeredStore(filePath string, logger *zap.Logger) *LayeredStore {
	return &LayeredStore{filePath: filePath, logger: logger}
}

// Save writes c to the OS secret service, falling back to the file store on
// any keyring error.
func (s *LayeredStore) Save(c Credential) error {
	data, err := json.Marshal(toWire(c))
	if err != nil {
		return &apperrors.AuthError{Kind: "JsonError", Message: "marshalling credential", Cause: err}
	}

	if err := keyring.Set(keyringService, keyringUser, string(data)); err == nil {
		return nil
	}

	if err := s.saveFile(data); err != nil {
		return &apperrors.AuthError{Kind: "CredentialStoreError", Message: "saving credential to file fallback", Cause: err}
	}
	return nil
}

// Load tries the keyring first, then the file fallback, migrating a
// file-sourced credential back into the keyring when the keyring backend is
// usable.
func (s *LayeredStore) Load() (*Credential, error) {
	if raw, err := keyring.Get(keyringService, keyringUser); err == nil {
		var w credentialWire
		if err := json.Unmarshal([]byte(raw), &w); err != nil {
			return nil, &apperrors.AuthError{Kind: "JsonError", Message: "parsing keyring credential", Cause: err}
		}
		c := fromWire(w)
		return &c, nil
	}

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &apperrors.AuthError{Kind: "TokenRetrievalError", Message: "reading credential file", Cause: err}
	}

	var w credentialWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, &apperrors.AuthError{Kind: "JsonError", Message: "parsing credential file", Cause: err}
	}
	c := fromWire(w)

	if err := keyring.Set(keyringService, keyringUser, string(data)); err == nil {
		s.logger.Info("migrated credential from file fallback into OS secret service")
	}

	return &c, nil
}

// Delete removes the credential from both backends. An absent entry in
// either backend is not an error.
func (s *LayeredStore) Delete() error {
	if err := keyring.Delete(keyringService, keyringUser); err != nil && err != keyring.ErrNotFound {
		return &apperrors.AuthError{Kind: "CredentialStoreError", Message: "deleting credential from keyring", Cause: err}
	}

	if err := os.Remove(s.filePath); err != nil && !os.IsNotExist(err) {
		return &apperrors.AuthError{Kind: "CredentialStoreError", Message: "deleting credential file", Cause: err}
	}

	return nil
}

// saveFile writes data atomically to s.filePath with mode 0600.
func (s *LayeredStore) saveFile(data []byte) error {
	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating credential directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".token-*.json")
	if err != nil {
		return fmt.Errorf("creating temp credential file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp credential file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp credential file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("setting credential file permissions: %w", err)
	}
	if err := os.Rename(tmpPath, s.filePath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming credential file into place: %w", err)
	}

	return nil
}

// ValidateTokenFormat performs the non-fatal sanity check used by the
// interactive auth prompt: a recognized prefix and a minimum length. It
// never rejects a token outright, since GitHub's token formats evolve.
func ValidateTokenFormat(token string) (warning string, ok bool) {
	switch {
	case len(token) < 20:
		return "token looks too short to be valid", false
	case len(token) >= 4 && (token[:4] == "ghp_" || token[:4] == "gho_"):
		return "", true
	case len(token) >= 11 && token[:11] == "github_pat_":
		return "", true
	default:
		return "token does not match a recognized GitHub token prefix", false
	}
}
