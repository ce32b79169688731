package secret

import (
	"errors"
	"strings"
	"testing"
)

func TestExpandEnvStrict(t *testing.T) {
	t.Setenv("PHOENIX_TEST_HOST", "redis")
	t.Setenv("PHOENIX_TEST_EMPTY", "")

	tests := []struct {
		in   string
		want string
	}{
		{"addr: ${PHOENIX_TEST_HOST}:6379", "addr: redis:6379"},
		{"addr: $PHOENIX_TEST_HOST", "addr: redis"},
		{"price: $$5", "price: $5"},
		{"$$${PHOENIX_TEST_HOST}", "$redis"},
		{"empty: '${PHOENIX_TEST_EMPTY}'", "empty: ''"},
		{"no vars", "no vars"},
	}
	for _, tt := range tests {
		got, err := ExpandEnvStrict(tt.in)
		if err != nil {
			t.Errorf("ExpandEnvStrict(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ExpandEnvStrict(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExpandEnvStrict_MissingVarsListed(t *testing.T) {
	t.Setenv("PHOENIX_TEST_HOST", "ok")

	_, err := ExpandEnvStrict("${PHOENIX_TEST_ZZ} ${PHOENIX_TEST_HOST} ${PHOENIX_TEST_AA} ${PHOENIX_TEST_ZZ}")
	if !errors.Is(err, ErrMissingEnv) {
		t.Fatalf("error = %v, want ErrMissingEnv", err)
	}
	if !strings.HasSuffix(err.Error(), "PHOENIX_TEST_AA, PHOENIX_TEST_ZZ") {
		t.Fatalf("error = %q, want sorted unique names", err)
	}
}
