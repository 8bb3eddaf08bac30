package library

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// AdminView manages user accounts.
type AdminView struct {
	viewBase

	mu    sync.Mutex
	users []User
}

func NewAdminView(api *Client, session SessionContext, ui UI, log *slog.Logger) *AdminView {
	return &AdminView{
		viewBase: newViewBase(api, session, ui, log, "admin"),
		users:    []User{},
	}
}

func (v *AdminView) Load(ctx context.Context) error { return v.FetchUsers(ctx) }

func (v *AdminView) FetchUsers(ctx context.Context) error {
	items, err := fetchCollection[User](ctx, v.api, usersPath)
	if err != nil {
		v.log.Error("fetch_users_failed", "error", err)
	}
	if items != nil {
		v.mu.Lock()
		v.users = items
		v.mu.Unlock()
	}
	return err
}

func (v *AdminView) Users() []User {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]User(nil), v.users...)
}

func (v *AdminView) User(id int64) (User, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, u := range v.users {
		if u.ID == id {
			return u, true
		}
	}
	return User{}, false
}

// Save creates an account when id is 0, otherwise updates it. A blank password on update
// leaves the stored one alone. Creating an account does not touch the admin's session.
func (v *AdminView) Save(ctx context.Context, id int64, in RegisterInput) error {
	if err := validateUser(id, in); err != nil {
		return v.fail("save_user_rejected", err, err.Error())
	}
	if in.Role == "" {
		in.Role = RoleMember
	}

	var err error
	if id == 0 {
		_, err = v.api.Post(ctx, registerPath, in)
	} else {
		_, err = v.api.Put(ctx, fmt.Sprintf("%s%d/", usersPath, id), in)
	}
	if err != nil {
		return v.fail("save_user_failed", err, ErrorMessage(err, "Failed to save user"))
	}

	if id == 0 {
		v.ui.Alert("User created successfully")
	} else {
		v.ui.Alert("User updated successfully")
	}
	v.FetchUsers(ctx)
	return nil
}

// Delete asks for confirmation and, only if given, deletes the account and re-fetches.
func (v *AdminView) Delete(ctx context.Context, id int64) (bool, error) {
	if !v.ui.Confirm("Are you sure you want to delete this user?") {
		return false, nil
	}
	if _, err := v.api.Delete(ctx, fmt.Sprintf("%s%d/", usersPath, id)); err != nil {
		return false, v.fail("delete_user_failed", err, "Failed to delete user")
	}
	v.ui.Alert("User deleted successfully")
	v.FetchUsers(ctx)
	return true, nil
}

func validateUser(id int64, in RegisterInput) error {
	var missing []string
	if strings.TrimSpace(in.Username) == "" {
		missing = append(missing, "username")
	}
	if strings.TrimSpace(in.Email) == "" {
		missing = append(missing, "email")
	}
	if id == 0 && in.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return &ValidationError{Message: "Required: " + strings.Join(missing, ", ")}
	}
	if in.Role != "" && !in.Role.Valid() {
		return &ValidationError{Message: fmt.Sprintf("Unknown role %q", in.Role)}
	}
	return nil
}
