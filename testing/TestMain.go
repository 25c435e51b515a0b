// Package testing switches the process into test mode when imported, so
// binaries and handlers skip dialing Redis, the backend API and Gotenberg.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

// defaults are applied only when the variable is unset.
var defaults = map[string]string{
	"WORKSLA_TEST_MODE": "1",
	"API_BASE_URL":      "http://127.0.0.1:0",
	"REDIS_ADDR":        "127.0.0.1:0",
	"SESSION_SECRET":    "test-session-secret-0123456789abcdef",
	"CSRF_SECRET":       "test-csrf-secret-0123456789abcdef",
}

func ensureTestMode() {
	once.Do(func() {
		for key, value := range defaults {
			if _, ok := os.LookupEnv(key); !ok {
				_ = os.Setenv(key, value)
			}
		}
	})
}

func init() {
	ensureTestMode()
}

// TestMain lets a package delegate its TestMain here.
func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
