package app

import (
	"os"
	"strconv"
	"sync"
)

// TestModeEnv makes the binaries return before dialing Redis or the API.
const TestModeEnv = "WORKSLA_TEST_MODE"

var testMode = sync.OnceValue(func() bool {
	return parseTestMode(os.Getenv(TestModeEnv))
})

// InTestMode reports whether the process runs under tests. The environment
// is read once.
func InTestMode() bool {
	return testMode()
}

func parseTestMode(raw string) bool {
	on, err := strconv.ParseBool(raw)
	return err == nil && on
}
