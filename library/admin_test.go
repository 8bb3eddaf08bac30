package library

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminSaveValidation(t *testing.T) {
	tests := []struct {
		name string
		id   int64
		in   RegisterInput
		want string
	}{
		{"create needs everything", 0, RegisterInput{}, "Required: username, email, password"},
		{"update keeps password", 5, RegisterInput{Username: "x"}, "Required: email"},
		{"bad role", 0, RegisterInput{Username: "x", Email: "x@example.com", Password: "p", Role: "owner"}, `Unknown role "owner"`},
	}

	b := newBackend(t)
	ui := &recordingUI{}
	mgr := testManager(t, b.URL, ui)
	loginAs(t, mgr, "ada", "admin-pass")
	before := b.requests.Load()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mgr.Admin.Save(context.Background(), tt.id, tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.want, ErrorMessage(err, ""))
			assert.Equal(t, tt.want, ui.last())
		})
	}
	assert.Equal(t, before, b.requests.Load())
}

func TestAdminCreateAndUpdateUser(t *testing.T) {
	b := newBackend(t)
	ui := &recordingUI{}
	mgr := testManager(t, b.URL, ui)
	loginAs(t, mgr, "ada", "admin-pass")
	ctx := context.Background()
	adminAccess := mgr.Session.AccessToken()

	require.NoError(t, mgr.Admin.Save(ctx, 0, RegisterInput{Username: "omar", Email: "omar@example.com", Password: "omar-pass"}))
	assert.Equal(t, "User created successfully", ui.last())

	// Creating someone else leaves the admin logged in as themselves.
	u, ok := mgr.Session.CurrentUser()
	require.True(t, ok)
	assert.Equal(t, "ada", u.Username)
	assert.Equal(t, adminAccess, mgr.Session.AccessToken())

	users := mgr.Admin.Users()
	require.Len(t, users, 4)
	omar := users[3]
	assert.Equal(t, "omar", omar.Username)
	assert.Equal(t, RoleMember, omar.Role)

	in := RegisterInput{Username: "omar", Email: "omar@library.test", Role: RoleLibrarian}
	require.NoError(t, mgr.Admin.Save(ctx, omar.ID, in))
	assert.Equal(t, "User updated successfully", ui.last())
	got, ok := mgr.Admin.User(omar.ID)
	require.True(t, ok)
	assert.Equal(t, "omar@library.test", got.Email)
	assert.Equal(t, RoleLibrarian, got.Role)

	// The untouched password still works.
	other := testManager(t, b.URL, &recordingUI{})
	loginAs(t, other, "omar", "omar-pass")
	assert.Equal(t, RoleLibrarian, other.Role())

	require.Error(t, mgr.Admin.Save(ctx, 0, RegisterInput{Username: "mia", Email: "m@example.com", Password: "p"}))
	assert.Equal(t, "A user with that username already exists.", ui.last())
}

func TestAdminDeleteUser(t *testing.T) {
	b := newBackend(t)
	ui := &recordingUI{}
	mgr := testManager(t, b.URL, ui)
	loginAs(t, mgr, "ada", "admin-pass")
	ctx := context.Background()
	require.NoError(t, mgr.Admin.Load(ctx))

	deleted, err := mgr.Admin.Delete(ctx, int64(b.memberID))
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Equal(t, []string{"Are you sure you want to delete this user?"}, ui.prompts)
	assert.Len(t, mgr.Admin.Users(), 3)

	ui.confirm = true
	deleted, err = mgr.Admin.Delete(ctx, int64(b.memberID))
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, "User deleted successfully", ui.last())
	assert.Len(t, mgr.Admin.Users(), 2)
	_, ok := mgr.Admin.User(int64(b.memberID))
	assert.False(t, ok)
}

func TestAdminRequiresAdminRole(t *testing.T) {
	b := newBackend(t)
	ui := &recordingUI{confirm: true}
	mgr := testManager(t, b.URL, ui)
	loginAs(t, mgr, "lena", "librarian-pass")
	ctx := context.Background()

	// Librarians may list users but not change them.
	require.NoError(t, mgr.Admin.Load(ctx))
	assert.Len(t, mgr.Admin.Users(), 3)

	_, err := mgr.Admin.Delete(ctx, int64(b.memberID))
	require.Error(t, err)
	assert.Equal(t, "Failed to delete user", ui.last())
	assert.Len(t, mgr.Admin.Users(), 3)
}
