package boolean_test

import (
	"errors"
	"testing"

	"github.com/ezachrisen/tripwire/boolean"
)

// mustViolate fails the test unless f panics with a *boolean.ContractViolation.
func mustViolate(t *testing.T, f func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		if r == nil {
			t.Fatal("expected a contract violation, got none")
		}
		err, ok := r.(error)
		var cv *boolean.ContractViolation
		if !ok || !errors.As(err, &cv) {
			t.Fatalf("expected a contract violation, got %v", r)
		}
	}()
	f()
}
