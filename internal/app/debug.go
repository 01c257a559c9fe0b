package app

import (
	"os"
	"strings"
)

// DebugEnvVar names the environment variable that forces debug-level log
// output regardless of the configured log level. It is read once at app
// construction, never inside the factory itself.
const DebugEnvVar = "PLUGFACTORY_DEBUGGING"

func debugEnabled() bool {
	value := os.Getenv(DebugEnvVar)
	if value == "" || value == "0" || strings.EqualFold(value, "false") {
		return false
	}
	return true
}
