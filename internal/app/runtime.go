package app

import (
	"os"
	"strconv"
)

// TestModeEnv makes the binaries exit before opening Postgres, Redis or a
// listener.
const TestModeEnv = "LEDGER_TEST_MODE"

// InTestMode reports whether TestModeEnv is set to a true value.
func InTestMode() bool {
	on, err := strconv.ParseBool(os.Getenv(TestModeEnv))
	return err == nil && on
}
