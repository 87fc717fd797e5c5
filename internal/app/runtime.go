package app

import (
	"os"
	"strconv"
	"sync"
)

// TestModeEnv makes both binaries exit before touching Postgres or Redis.
const TestModeEnv = "FACTORYKPI_TEST_MODE"

var (
	testModeMu sync.RWMutex
	testMode   *bool
)

// InTestMode reports whether runtime side effects should be skipped. The
// environment is read once and cached until RefreshTestMode.
func InTestMode() bool {
	testModeMu.RLock()
	cached := testMode
	testModeMu.RUnlock()
	if cached != nil {
		return *cached
	}
	return RefreshTestMode()
}

// RefreshTestMode re-reads the environment and returns the new value.
func RefreshTestMode() bool {
	on, _ := strconv.ParseBool(os.Getenv(TestModeEnv))
	testModeMu.Lock()
	testMode = &on
	testModeMu.Unlock()
	return on
}
