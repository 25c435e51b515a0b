package auth

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/worksla/worksla-web/internal/apiclient"
	"github.com/worksla/worksla-web/internal/shared"
)

// Roles issued by the backend.
const (
	RoleAdmin   = "admin"
	RoleAnalyst = "analyst"
	RoleViewer  = "viewer"
)

// Session keys holding the signed-in user.
const (
	CredentialsSessionKey = "api_credentials"
	UsernameSessionKey    = "username"
	RoleSessionKey        = "role"
)

// ErrInvalidCredentials is returned when the backend rejects a sign-in.
var ErrInvalidCredentials = errors.New("auth: invalid username or password")

// StoreUser records the signed-in backend user and its credentials on the
// session.
func StoreUser(sess *shared.Session, user apiclient.User, creds *apiclient.Credentials) error {
	encoded, err := creds.Encode()
	if err != nil {
		return err
	}
	sess.SetUser(strconv.FormatInt(user.ID, 10))
	sess.Set(UsernameSessionKey, user.Username)
	sess.Set(RoleSessionKey, user.Role)
	sess.Set(CredentialsSessionKey, encoded)
	return nil
}

// ForgetUser removes the signed-in user from the session.
func ForgetUser(sess *shared.Session) {
	sess.SetUser("")
	sess.Delete(UsernameSessionKey)
	sess.Delete(RoleSessionKey)
	sess.Delete(CredentialsSessionKey)
}

// PrincipalFromSession reads the signed-in user, if any.
func PrincipalFromSession(sess *shared.Session) (shared.Principal, bool) {
	if sess == nil {
		return shared.Principal{}, false
	}
	raw := sess.User()
	if raw == "" || sess.Get(CredentialsSessionKey) == "" {
		return shared.Principal{}, false
	}
	id, _ := strconv.ParseInt(raw, 10, 64)
	return shared.Principal{
		ID:       id,
		Username: sess.Get(UsernameSessionKey),
		Role:     sess.Get(RoleSessionKey),
	}, true
}

// BindCredentials restores the session's credentials and keeps the session
// in step with every later change. Cleared credentials sign the user out.
func BindCredentials(sess *shared.Session) (*apiclient.Credentials, error) {
	creds, err := apiclient.RestoreCredentials(sess.ID, sess.Get(CredentialsSessionKey))
	if err != nil {
		return nil, err
	}
	creds.OnChange(func(state apiclient.CredentialsState) {
		if len(state.Cookies) == 0 {
			ForgetUser(sess)
			return
		}
		encoded, err := json.Marshal(state)
		if err != nil {
			return
		}
		sess.Set(CredentialsSessionKey, string(encoded))
	})
	return creds, nil
}
