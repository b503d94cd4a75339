package handlers

import (
	"errors"
	"net/http"
)

// Sentinel results of a policy check, mapped to HTTP statuses by
// writePolicyError.
var (
	errUnauthenticated = errors.New("authentication required")
	errForbidden       = errors.New("forbidden")
)

// Policy declares who may read and who may write a resource class. A policy
// value is attached to a handler at registration time, so the same handler
// code serves admin-writable catalog resources and owner-writable content.
//
// CanWrite receives the owner of the concrete resource being mutated;
// ownerID is zero for resources that have no owner (create included).
type Policy struct {
	CanRead  func(id *Identity) error
	CanWrite func(id *Identity, ownerID int) error
}

// AdminOrReadOnly reads are open to everyone, anonymous included; writes
// require the admin role.
func AdminOrReadOnly() Policy {
	return Policy{
		CanRead: func(*Identity) error { return nil },
		CanWrite: func(id *Identity, _ int) error {
			if id == nil {
				return errUnauthenticated
			}
			if !id.IsAdmin() {
				return errForbidden
			}
			return nil
		},
	}
}

// OwnerOrReadOnly reads are open to everyone; writes require authentication
// and either ownership or an elevated role. Ownership short-circuits the
// role check: an author edits their own content whatever their role. A zero
// ownerID means the resource has no owner yet (create), and the caller
// becomes the author, so any authenticated identity may write.
func OwnerOrReadOnly() Policy {
	return Policy{
		CanRead: func(*Identity) error { return nil },
		CanWrite: func(id *Identity, ownerID int) error {
			if id == nil {
				return errUnauthenticated
			}
			if ownerID == 0 || id.UserID == ownerID {
				return nil
			}
			if id.IsAdmin() || id.IsModerator() {
				return nil
			}
			return errForbidden
		},
	}
}

// AdminOnly restricts both reads and writes to admins.
func AdminOnly() Policy {
	adminOnly := func(id *Identity, _ int) error {
		if id == nil {
			return errUnauthenticated
		}
		if !id.IsAdmin() {
			return errForbidden
		}
		return nil
	}
	return Policy{
		CanRead:  func(id *Identity) error { return adminOnly(id, 0) },
		CanWrite: adminOnly,
	}
}

func writePolicyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errUnauthenticated):
		writeError(w, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, errForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// requirePolicyWrite wraps a create handler so anonymous or under-privileged
// callers are rejected before the body is parsed.
func requirePolicyWrite(policy Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := policy.CanWrite(identityFromContext(r.Context()), 0); err != nil {
				writePolicyError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
