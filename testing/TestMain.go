// Package testing switches the process into test mode. Test files
// blank-import it so cmd entrypoints and runtime wiring skip Postgres and
// Redis.
package testing

import "os"

const testModeEnv = "FACTORYKPI_TEST_MODE"

func init() {
	if os.Getenv(testModeEnv) == "" {
		_ = os.Setenv(testModeEnv, "1")
	}
}
