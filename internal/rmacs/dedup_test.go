package rmacs_test

import (
	"testing"

	"github.com/google/uuid"

	"github.com/tiiuae/rmacs/internal/rmacs"
)

// TestDedupAcceptsFirstRejectsDuplicate verifies the core duplicate
// suppression contract.
func TestDedupAcceptsFirstRejectsDuplicate(t *testing.T) {
	t.Parallel()

	d := rmacs.NewDedup()
	id := uuid.NewString()

	if !d.Accept(id) {
		t.Fatal("first Accept of a fresh id returned false")
	}
	if d.Accept(id) {
		t.Fatal("second Accept of the same id returned true")
	}
	if d.Len() != 1 {
		t.Errorf("Len() = %d, want 1", d.Len())
	}
}

// TestDedupDistinctIDsAreIndependent verifies distinct message_ids do
// not interfere with each other's acceptance.
func TestDedupDistinctIDsAreIndependent(t *testing.T) {
	t.Parallel()

	d := rmacs.NewDedup()
	a, b := uuid.NewString(), uuid.NewString()

	if !d.Accept(a) {
		t.Fatal("Accept(a) = false, want true")
	}
	if !d.Accept(b) {
		t.Fatal("Accept(b) = false, want true")
	}
	if d.Len() != 2 {
		t.Errorf("Len() = %d, want 2", d.Len())
	}
}
