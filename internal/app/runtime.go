package app

import (
	"os"
	"strconv"
	"sync"
	"sync/atomic"
)

// startupEnv stops cmd/hrportal and cmd/worker from starting. Test binaries
// set it by importing the hr-portal testing package.
const startupEnv = "HRPORTAL_DISABLE_STARTUP"

var (
	startupDisabled atomic.Bool
	startupOnce     sync.Once
)

func readStartupFlag() {
	disabled, _ := strconv.ParseBool(os.Getenv(startupEnv))
	startupDisabled.Store(disabled)
}

// StartupDisabled reports whether a binary should return before contacting
// Keycloak, Redis or the HR API.
func StartupDisabled() bool {
	startupOnce.Do(readStartupFlag)
	return startupDisabled.Load()
}

// ReloadStartupFlag re-reads the environment.
func ReloadStartupFlag() {
	startupOnce.Do(func() {})
	readStartupFlag()
}
