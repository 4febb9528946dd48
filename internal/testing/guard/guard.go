// Package guard flips the process into test mode when imported by a test
// binary, so wiring code skips external side effects such as migrations.
package guard

import (
	"os"
	"sync"
)

const testModeEnv = "EMPRECORDS_TEST_MODE"

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv(testModeEnv) == "" {
			_ = os.Setenv(testModeEnv, "1")
		}
	})
}
