package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/reviewdb/apiserver/types"
)

func TestMeReturnsOwnProfile(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.addUser(t, "reader", types.RoleUser)

	rec := env.do(t, http.MethodGet, "/users/me", token, nil)
	requireStatus(t, rec, http.StatusOK)

	body := decodeBody[UserResponse](t, rec)
	if body.Username != "reader" || body.Role != types.RoleUser {
		t.Fatalf("unexpected profile: %+v", body)
	}
}

func TestMeRequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	requireStatus(t, env.do(t, http.MethodGet, "/users/me", "", nil), http.StatusUnauthorized)
	requireStatus(t, env.do(t, http.MethodGet, "/users/me", "garbage", nil), http.StatusUnauthorized)
}

func TestMePatchStripsRoleForNonAdmins(t *testing.T) {
	env := newTestEnv(t)
	user, token := env.addUser(t, "reader", types.RoleUser)

	bio := "writes about movies"
	role := types.RoleAdmin
	rec := env.do(t, http.MethodPatch, "/users/me", token, UserPatchRequest{
		Bio:  &bio,
		Role: &role,
	})
	requireStatus(t, rec, http.StatusOK)

	body := decodeBody[UserResponse](t, rec)
	if body.Bio != bio {
		t.Fatalf("bio not applied: %+v", body)
	}
	if body.Role != types.RoleUser {
		t.Fatalf("role escalated via self-update: %+v", body)
	}

	stored, err := env.users.GetByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("load user: %v", err)
	}
	if stored.Role != types.RoleUser {
		t.Fatalf("stored role = %q, want user", stored.Role)
	}
}

func TestMePatchHonorsRoleForAdmins(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.addUser(t, "boss", types.RoleAdmin)

	role := types.RoleModerator
	rec := env.do(t, http.MethodPatch, "/users/me", token, UserPatchRequest{Role: &role})
	requireStatus(t, rec, http.StatusOK)

	body := decodeBody[UserResponse](t, rec)
	if body.Role != types.RoleModerator {
		t.Fatalf("role not applied for admin: %+v", body)
	}
}

func TestUserAdminRoutesForbiddenForOthers(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "target", types.RoleUser)
	_, userToken := env.addUser(t, "reader", types.RoleUser)
	_, modToken := env.addUser(t, "mod", types.RoleModerator)

	for _, token := range []string{userToken, modToken} {
		requireStatus(t, env.do(t, http.MethodGet, "/users", token, nil), http.StatusForbidden)
		requireStatus(t, env.do(t, http.MethodGet, "/users/target", token, nil), http.StatusForbidden)
		requireStatus(t, env.do(t, http.MethodDelete, "/users/target", token, nil), http.StatusForbidden)
	}

	requireStatus(t, env.do(t, http.MethodGet, "/users", "", nil), http.StatusUnauthorized)
}

func TestUserAdminCRUD(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.addUser(t, "boss", types.RoleAdmin)

	rec := env.do(t, http.MethodPost, "/users", token, UserUpsertRequest{
		Username: "newmod",
		Email:    "newmod@example.com",
		Role:     types.RoleModerator,
	})
	requireStatus(t, rec, http.StatusCreated)
	created := decodeBody[UserResponse](t, rec)
	if created.Role != types.RoleModerator {
		t.Fatalf("role not set on create: %+v", created)
	}

	rec = env.do(t, http.MethodPost, "/users", token, UserUpsertRequest{
		Username: "newmod",
		Email:    "elsewhere@example.com",
	})
	requireStatus(t, rec, http.StatusBadRequest)

	rec = env.do(t, http.MethodPost, "/users", token, UserUpsertRequest{
		Username: "badrole",
		Email:    "badrole@example.com",
		Role:     "overlord",
	})
	requireStatus(t, rec, http.StatusBadRequest)

	rec = env.do(t, http.MethodGet, "/users/newmod", token, nil)
	requireStatus(t, rec, http.StatusOK)

	role := types.RoleUser
	rec = env.do(t, http.MethodPatch, "/users/newmod", token, UserPatchRequest{Role: &role})
	requireStatus(t, rec, http.StatusOK)
	if patched := decodeBody[UserResponse](t, rec); patched.Role != types.RoleUser {
		t.Fatalf("demotion not applied: %+v", patched)
	}

	requireStatus(t, env.do(t, http.MethodDelete, "/users/newmod", token, nil), http.StatusNoContent)
	requireStatus(t, env.do(t, http.MethodGet, "/users/newmod", token, nil), http.StatusNotFound)
}

func TestUserListSearchAndPaging(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.addUser(t, "boss", types.RoleAdmin)
	for _, name := range []string{"alpha", "alphonse", "beta"} {
		env.addUser(t, name, types.RoleUser)
	}

	rec := env.do(t, http.MethodGet, "/users?search=alph", token, nil)
	requireStatus(t, rec, http.StatusOK)
	body := decodeBody[ListResponse](t, rec)
	if body.Total != 2 {
		t.Fatalf("total = %d, want 2", body.Total)
	}

	rec = env.do(t, http.MethodGet, "/users?page=1&limit=2", token, nil)
	requireStatus(t, rec, http.StatusOK)
	body = decodeBody[ListResponse](t, rec)
	if body.Limit != 2 || body.Total != 4 {
		t.Fatalf("unexpected page: %+v", body)
	}
}
