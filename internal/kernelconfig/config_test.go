package kernelconfig

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 18888 {
		t.Fatalf("port=%d", cfg.Port)
	}
	if cfg.SessionTimeout.Minutes() != 30 {
		t.Fatalf("session timeout=%v", cfg.SessionTimeout)
	}
	if cfg.EnableSessionDriftClassifier {
		t.Fatalf("expected drift classifier off by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KERNEL_PORT", "9001")
	t.Setenv("SESSION_TIMEOUT_MINUTES", "5")
	t.Setenv("ENABLE_SESSION_DRIFT_CLASSIFIER", "true")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 9001 {
		t.Fatalf("port=%d", cfg.Port)
	}
	if cfg.SessionTimeout.Minutes() != 5 {
		t.Fatalf("session timeout=%v", cfg.SessionTimeout)
	}
	if !cfg.EnableSessionDriftClassifier {
		t.Fatalf("expected drift classifier on")
	}
}
