package secret

import "testing"

func TestSourcePrefersEnvironment(t *testing.T) {
	t.Setenv("VAULTCTL_TEST_SECRET", "  hunter2-hunter2  ")
	src := NewSource("VAULTCTL_TEST_SECRET", "signing secret")
	value, err := src.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if value != "hunter2-hunter2" {
		t.Fatalf("unexpected secret %q", value)
	}
}

func TestSourceRejectsBlankEnvironment(t *testing.T) {
	t.Setenv("VAULTCTL_TEST_SECRET", "   ")
	if _, err := NewSource("VAULTCTL_TEST_SECRET", "signing secret").Get(); err == nil {
		t.Fatalf("expected blank secret to be rejected")
	}
}
