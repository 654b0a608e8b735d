// Package testing is imported for its side effect by test packages that link
// the portal or worker wiring. It sets HRPORTAL_DISABLE_STARTUP so their main
// functions return before discovering Keycloak or dialing Redis.
package testing

import "os"

// StartupEnv is the variable read by app.StartupDisabled.
const StartupEnv = "HRPORTAL_DISABLE_STARTUP"

func init() {
	_ = os.Setenv(StartupEnv, "1")
}
