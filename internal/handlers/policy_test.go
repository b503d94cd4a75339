package handlers

import (
	"errors"
	"testing"

	"github.com/reviewdb/apiserver/types"
)

func TestAdminOrReadOnly(t *testing.T) {
	policy := AdminOrReadOnly()

	if err := policy.CanRead(nil); err != nil {
		t.Fatalf("anonymous read rejected: %v", err)
	}
	if err := policy.CanWrite(nil, 0); !errors.Is(err, errUnauthenticated) {
		t.Fatalf("anonymous write: got %v, want unauthenticated", err)
	}
	if err := policy.CanWrite(&Identity{UserID: 1, Role: types.RoleModerator}, 0); !errors.Is(err, errForbidden) {
		t.Fatalf("moderator write: got %v, want forbidden", err)
	}
	if err := policy.CanWrite(&Identity{UserID: 1, Role: types.RoleAdmin}, 0); err != nil {
		t.Fatalf("admin write rejected: %v", err)
	}
}

func TestOwnerOrReadOnly(t *testing.T) {
	policy := OwnerOrReadOnly()
	owner := &Identity{UserID: 7, Role: types.RoleUser}

	if err := policy.CanRead(nil); err != nil {
		t.Fatalf("anonymous read rejected: %v", err)
	}
	if err := policy.CanWrite(nil, 7); !errors.Is(err, errUnauthenticated) {
		t.Fatalf("anonymous write: got %v, want unauthenticated", err)
	}

	// Ownership wins regardless of role.
	if err := policy.CanWrite(owner, 7); err != nil {
		t.Fatalf("owner write rejected: %v", err)
	}
	if err := policy.CanWrite(&Identity{UserID: 8, Role: types.RoleUser}, 7); !errors.Is(err, errForbidden) {
		t.Fatalf("stranger write: got %v, want forbidden", err)
	}
	if err := policy.CanWrite(&Identity{UserID: 8, Role: types.RoleModerator}, 7); err != nil {
		t.Fatalf("moderator write rejected: %v", err)
	}
	if err := policy.CanWrite(&Identity{UserID: 8, Role: types.RoleAdmin}, 7); err != nil {
		t.Fatalf("admin write rejected: %v", err)
	}

	// Create path: no owner yet, any authenticated caller may write.
	if err := policy.CanWrite(owner, 0); err != nil {
		t.Fatalf("create by plain user rejected: %v", err)
	}
}

func TestAdminOnly(t *testing.T) {
	policy := AdminOnly()

	if err := policy.CanRead(nil); !errors.Is(err, errUnauthenticated) {
		t.Fatalf("anonymous read: got %v, want unauthenticated", err)
	}
	if err := policy.CanRead(&Identity{UserID: 1, Role: types.RoleModerator}); !errors.Is(err, errForbidden) {
		t.Fatalf("moderator read: got %v, want forbidden", err)
	}
	if err := policy.CanRead(&Identity{UserID: 1, Role: types.RoleAdmin}); err != nil {
		t.Fatalf("admin read rejected: %v", err)
	}
}
