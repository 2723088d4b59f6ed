// Package kernelconfig loads the Kernel's environment-driven
// configuration, following the shape of the teacher's
// internal/config.Load(): os.Getenv with defaults, validated once at
// startup, returned as a typed value threaded explicitly through every
// constructor rather than read ad hoc.
package kernelconfig

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port int
	DBPath string

	SessionTimeout              time.Duration
	EnableSessionDriftClassifier bool

	RecoveryPhrase string // empty means "dev" signing key, per spec.md §4.1

	DownstreamTimeout time.Duration
	ApprovalTTL       time.Duration
	ApprovalTTLMax    time.Duration
	DCTTTL            time.Duration
	DCTTTLMax         time.Duration
}

func Load() (Config, error) {
	cfg := Config{
		Port:                         envInt("KERNEL_PORT", 18888),
		DBPath:                       env("DB_PATH", "data/clawos-kernel.sqlite"),
		SessionTimeout:               time.Duration(envInt("SESSION_TIMEOUT_MINUTES", 30)) * time.Minute,
		EnableSessionDriftClassifier: envBool("ENABLE_SESSION_DRIFT_CLASSIFIER", false),
		RecoveryPhrase:               env("KERNEL_RECOVERY_PHRASE", ""),
		DownstreamTimeout:            time.Duration(envInt("KERNEL_DOWNSTREAM_TIMEOUT_SECONDS", 10)) * time.Second,
		ApprovalTTL:                  time.Duration(envInt("KERNEL_APPROVAL_TTL_SECONDS", 600)) * time.Second,
		ApprovalTTLMax:               time.Hour,
		DCTTTL:                       time.Duration(envInt("KERNEL_APPROVAL_TTL_SECONDS", 600)) * time.Second,
		DCTTTLMax:                    time.Hour,
	}
	return cfg, nil
}

func env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if raw == "" {
		return def
	}
	return raw == "1" || raw == "true" || raw == "yes"
}
