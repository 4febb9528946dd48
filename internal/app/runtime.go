package app

import "os"

const testModeEnv = "EMPRECORDS_TEST_MODE"

// InTestMode reports whether EMPRECORDS_TEST_MODE=1. The binaries then exit
// before touching postgres or redis.
func InTestMode() bool {
	return os.Getenv(testModeEnv) == "1"
}
