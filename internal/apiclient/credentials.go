package apiclient

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Credentials is the cookie set presented to the backend on behalf of one
// dashboard session. It is set on login, replaced by refresh, cleared on
// logout or terminal auth failure, and read by every outbound request.
type Credentials struct {
	mu       sync.RWMutex
	key      string
	cookies  map[string]string
	version  uint64
	onChange func(CredentialsState)
}

// CredentialsState is the persisted form of Credentials.
type CredentialsState struct {
	Cookies map[string]string `json:"cookies"`
	Version uint64            `json:"version"`
}

// NewCredentials returns an empty credential set identified by key.
func NewCredentials(key string) *Credentials {
	return &Credentials{key: key, cookies: map[string]string{}}
}

// RestoreCredentials rebuilds credentials from a value produced by Encode.
func RestoreCredentials(key, encoded string) (*Credentials, error) {
	creds := NewCredentials(key)
	if encoded == "" {
		return creds, nil
	}
	var state CredentialsState
	if err := json.Unmarshal([]byte(encoded), &state); err != nil {
		return nil, err
	}
	for name, value := range state.Cookies {
		creds.cookies[name] = value
	}
	creds.version = state.Version
	return creds, nil
}

// Key identifies the owner of the credentials for refresh coordination.
func (c *Credentials) Key() string {
	return c.key
}

// OnChange registers fn to be called after every mutation.
func (c *Credentials) OnChange(fn func(CredentialsState)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Valid reports whether any credential cookie is held.
func (c *Credentials) Valid() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cookies) > 0
}

// Version increases on every change to the cookie set.
func (c *Credentials) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Cookies returns request cookies in a stable order.
func (c *Credentials) Cookies() []*http.Cookie {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cookieList(c.cookies)
}

// State copies the current cookie set and version.
func (c *Credentials) State() CredentialsState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stateLocked()
}

// Encode serialises the credentials for session storage.
func (c *Credentials) Encode() (string, error) {
	data, err := json.Marshal(c.State())
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Merge applies Set-Cookie values from a backend response. Expired or empty
// cookies are removed. It reports whether anything changed.
func (c *Credentials) Merge(cookies []*http.Cookie) bool {
	if len(cookies) == 0 {
		return false
	}
	now := time.Now()
	c.mu.Lock()
	changed := false
	for _, ck := range cookies {
		if ck == nil || ck.Name == "" {
			continue
		}
		expired := ck.MaxAge < 0 || ck.Value == "" || (!ck.Expires.IsZero() && ck.Expires.Before(now))
		current, ok := c.cookies[ck.Name]
		switch {
		case expired && ok:
			delete(c.cookies, ck.Name)
			changed = true
		case !expired && (!ok || current != ck.Value):
			c.cookies[ck.Name] = ck.Value
			changed = true
		}
	}
	return c.commitLocked(changed)
}

// Replace discards the current cookie set in favour of cookies.
func (c *Credentials) Replace(cookies []*http.Cookie) {
	c.mu.Lock()
	c.cookies = map[string]string{}
	for _, ck := range cookies {
		if ck == nil || ck.Name == "" || ck.Value == "" || ck.MaxAge < 0 {
			continue
		}
		c.cookies[ck.Name] = ck.Value
	}
	c.commitLocked(true)
}

// Clear drops every credential cookie.
func (c *Credentials) Clear() {
	c.mu.Lock()
	changed := len(c.cookies) > 0
	c.cookies = map[string]string{}
	c.commitLocked(changed)
}

// commitLocked bumps the version and fires onChange after releasing the lock.
func (c *Credentials) commitLocked(changed bool) bool {
	if !changed {
		c.mu.Unlock()
		return false
	}
	c.version++
	state := c.stateLocked()
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn(state)
	}
	return true
}

func (c *Credentials) stateLocked() CredentialsState {
	out := make(map[string]string, len(c.cookies))
	for k, v := range c.cookies {
		out[k] = v
	}
	return CredentialsState{Cookies: out, Version: c.version}
}

func cookieList(values map[string]string) []*http.Cookie {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*http.Cookie, 0, len(names))
	for _, name := range names {
		out = append(out, &http.Cookie{Name: name, Value: values[name]})
	}
	return out
}
