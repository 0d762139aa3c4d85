package utils

import (
	"log"

	"github.com/rollbar/rollbar-go"
)

var rollbarEnabled bool

// InitReporting enables Rollbar when a token is configured.
func InitReporting(token, env string) {
	if token == "" {
		return
	}
	rollbar.SetToken(token)
	rollbar.SetEnvironment(env)
	rollbar.SetServerRoot("exam-platform")
	rollbarEnabled = true
	log.Println("✅ Rollbar error reporting enabled")
}

// ReportError logs err under tag and forwards it to Rollbar when enabled.
func ReportError(tag string, err error, extras map[string]interface{}) {
	if err == nil {
		return
	}
	log.Printf("[%s] ❌ %v", tag, err)
	if !rollbarEnabled {
		return
	}
	if extras == nil {
		extras = map[string]interface{}{}
	}
	extras["component"] = tag
	rollbar.Error(err, extras)
}

func CloseReporting() {
	if rollbarEnabled {
		rollbar.Close()
	}
}
