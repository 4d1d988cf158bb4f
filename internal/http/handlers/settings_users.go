package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v5"
	"github.com/stackspend/stackspend/internal/auth"
	"github.com/stackspend/stackspend/internal/http/authn"
	"github.com/stackspend/stackspend/internal/http/viewmodels"
	"github.com/stackspend/stackspend/internal/http/views"
	"github.com/stackspend/stackspend/internal/spend"
	"github.com/stackspend/stackspend/internal/store"
)

const usersPath = "/settings/users"

// usersDialog says which dialog the users page opens and what it is pre-filled with.
type usersDialog struct {
	open    string // "add", "edit" or "delete"
	add     viewmodels.SettingsUsersForm
	userID  int64
	role    string
	problem *viewmodels.Alert
	status  int
}

func problem(title, message string) *viewmodels.Alert {
	return &viewmodels.Alert{Title: title, Message: message, Destructive: true}
}

// guard answers whether actor may change target's role or delete target. It returns the
// refusal reason, "" when allowed.
type guard struct {
	actorID    int64
	adminCount int64
}

func (g guard) lastAdmin(u spend.AuthUser) bool {
	return u.IsActive && u.Role == auth.RoleAdmin && g.adminCount <= 1
}

func (g guard) roleChange(u spend.AuthUser, newRole string) string {
	switch {
	case g.actorID == u.ID:
		return "You cannot change your own role."
	case g.lastAdmin(u) && newRole != auth.RoleAdmin:
		return "You cannot downgrade the last active admin."
	}
	return ""
}

func (g guard) deletion(u spend.AuthUser) string {
	switch {
	case g.actorID == u.ID:
		return "You cannot delete your own user."
	case g.lastAdmin(u):
		return "You cannot delete the last active admin."
	}
	return ""
}

func (h *Handlers) guardFor(ctx context.Context, c *echo.Context) (guard, error) {
	p, _ := authn.PrincipalFromContext(c)
	n, err := h.Store.Users().CountActiveAdmins(ctx)
	return guard{actorID: p.UserID, adminCount: n}, err
}

// passwordProblem validates a password pair. Blank pairs pass unless required.
func passwordProblem(password, confirm string, required bool) *viewmodels.Alert {
	blank := strings.TrimSpace(password) == ""
	switch {
	case blank && !required && strings.TrimSpace(confirm) == "":
		return nil
	case blank:
		return problem("Password required", "Provide a password, or leave both fields blank when editing.")
	case password != confirm:
		return problem("Passwords do not match", "Confirm the password to continue.")
	}
	if err := auth.ValidatePassword(password); errors.Is(err, auth.ErrPasswordTooLong) {
		return problem("Password too long", "Use a shorter password.")
	} else if err != nil {
		return problem("Password too short", "Use at least "+strconv.Itoa(auth.MinPasswordLength)+" characters.")
	}
	return nil
}

func (h *Handlers) HandleSettingsUsers(c *echo.Context) error {
	id, _ := parseInt64(c.QueryParam("id"))
	return h.renderUsers(c, usersDialog{open: strings.ToLower(strings.TrimSpace(c.QueryParam("open"))), userID: id})
}

func (h *Handlers) HandleSettingsUsersCreate(c *echo.Context) error {
	form := viewmodels.SettingsUsersForm{
		Email: auth.NormalizeEmail(c.FormValue("email")),
		Role:  strings.ToLower(strings.TrimSpace(c.FormValue("role"))),
	}
	password := c.FormValue("password")
	reject := func(a *viewmodels.Alert) error {
		return h.renderUsers(c, usersDialog{open: "add", add: form, problem: a, status: formErrorStatus(c)})
	}

	switch {
	case form.Email == "":
		return reject(problem("Email required", "Provide an email address for the user."))
	case !spend.ValidEmail(form.Email):
		return reject(problem("Invalid email", "Enter a valid email address."))
	case !auth.ValidRole(form.Role):
		return reject(problem("Invalid role", "Role must be admin or viewer."))
	}
	if a := passwordProblem(password, c.FormValue("confirm_password"), true); a != nil {
		return reject(a)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return h.RenderError(c, err)
	}
	_, err = h.Store.Users().Create(c.Request().Context(), store.CreateUserParams{
		Email: form.Email, PasswordHash: hash, Role: form.Role, IsActive: true,
	})
	if errors.Is(err, store.ErrConflict) {
		return reject(problem("User already exists", "A user with that email address already exists."))
	}
	if err != nil {
		return h.RenderError(c, err)
	}
	return h.successAndRedirect(c, "User created", form.Email, usersPath)
}

// HandleSettingsUserUpdate changes the role, the password or both. A same-role submit with
// blank passwords is reported as no change.
func (h *Handlers) HandleSettingsUserUpdate(c *echo.Context) error {
	id, ok := parseInt64(c.Param("id"))
	if !ok || id <= 0 {
		return RenderNotFound(c)
	}
	if _, ok := authn.PrincipalFromContext(c); !ok {
		return c.NoContent(http.StatusForbidden)
	}
	ctx := c.Request().Context()
	users := h.Store.Users()
	user, err := users.Get(ctx, id)
	if err != nil {
		return h.renderStoreError(c, err)
	}

	role := strings.ToLower(strings.TrimSpace(c.FormValue("role")))
	password := c.FormValue("password")
	reject := func(a *viewmodels.Alert) error {
		return h.renderUsers(c, usersDialog{open: "edit", userID: id, role: role, problem: a, status: formErrorStatus(c)})
	}
	if role != "" && !auth.ValidRole(role) {
		return reject(problem("Invalid role", "Role must be admin or viewer."))
	}

	newRole := role != "" && role != user.Role
	if newRole {
		g, err := h.guardFor(ctx, c)
		if err != nil {
			return h.RenderError(c, err)
		}
		if reason := g.roleChange(user, role); reason != "" {
			return reject(problem("Role change not allowed", reason))
		}
	}
	if a := passwordProblem(password, c.FormValue("confirm_password"), false); a != nil {
		return reject(a)
	}
	newPassword := strings.TrimSpace(password) != ""

	var title string
	switch {
	case newRole && newPassword:
		title = "User updated"
	case newRole:
		title = "Role updated"
	case newPassword:
		title = "Password updated"
	default:
		h.flash(c, "info", "No changes", "")
		return c.Redirect(http.StatusSeeOther, usersPath)
	}

	if newRole {
		if err := users.UpdateRole(ctx, id, role); err != nil {
			return h.RenderError(c, err)
		}
	}
	if newPassword {
		hash, err := auth.HashPassword(password)
		if err != nil {
			return h.RenderError(c, err)
		}
		if err := users.UpdatePasswordHash(ctx, id, hash); err != nil {
			return h.RenderError(c, err)
		}
	}
	return h.successAndRedirect(c, title, user.Email, usersPath)
}

func (h *Handlers) HandleSettingsUserDelete(c *echo.Context) error {
	id, ok := parseInt64(c.Param("id"))
	if !ok || id <= 0 {
		return RenderNotFound(c)
	}
	if _, ok := authn.PrincipalFromContext(c); !ok {
		return c.NoContent(http.StatusForbidden)
	}
	ctx := c.Request().Context()
	user, err := h.Store.Users().Get(ctx, id)
	if err != nil {
		return h.renderStoreError(c, err)
	}
	g, err := h.guardFor(ctx, c)
	if err != nil {
		return h.RenderError(c, err)
	}
	if reason := g.deletion(user); reason != "" {
		h.flash(c, "error", "Delete not allowed", reason)
		return c.Redirect(http.StatusSeeOther, usersPath)
	}
	if err := h.Store.Users().Delete(ctx, id); err != nil {
		return h.renderStoreError(c, err)
	}
	return h.successAndRedirect(c, "User deleted", user.Email, usersPath)
}

func (h *Handlers) renderUsers(c *echo.Context, d usersDialog) error {
	data, err := h.usersPage(c.Request().Context(), c, d)
	if err != nil {
		return h.RenderError(c, err)
	}
	status := d.status
	if status == 0 {
		status = http.StatusOK
	}
	return h.RenderComponentStatus(c, status, views.SettingsUsersPage(data))
}

func (h *Handlers) usersPage(ctx context.Context, c *echo.Context, d usersDialog) (viewmodels.SettingsUsersViewData, error) {
	var data viewmodels.SettingsUsersViewData
	layout, err := h.LayoutData(ctx, c, "Users")
	if err != nil {
		return data, err
	}
	g, err := h.guardFor(ctx, c)
	if err != nil {
		return data, err
	}
	rows, err := h.Store.Users().List(ctx)
	if err != nil {
		return data, err
	}

	if d.add.Role == "" {
		d.add.Role = auth.RoleViewer
	}
	data = viewmodels.SettingsUsersViewData{
		Layout:  layout,
		Users:   make([]viewmodels.SettingsUsersUserItem, 0, len(rows)),
		OpenAdd: d.open == "add",
		Form:    d.add,
		Alert:   d.problem,
	}
	for _, u := range rows {
		locked := g.deletion(u) != ""
		data.Users = append(data.Users, viewmodels.SettingsUsersUserItem{
			ID:          u.ID,
			Email:       u.Email,
			Role:        u.Role,
			IsActive:    u.IsActive,
			LastLogin:   formatTime(u.LastLoginAt),
			LastLoginIP: u.LastLoginIP,
			IsSelf:      u.ID == g.actorID,
			IsLastAdmin: g.lastAdmin(u),
			CanEditRole: !locked,
			CanDelete:   !locked,
		})
	}

	if d.open != "edit" && d.open != "delete" {
		return data, nil
	}
	note := func(title, message string) {
		if data.Alert == nil {
			data.Alert = problem(title, message)
		}
	}
	if d.userID <= 0 {
		note("Invalid user", "Select a valid user.")
		return data, nil
	}
	user, err := h.Store.Users().Get(ctx, d.userID)
	if errors.Is(err, store.ErrNotFound) {
		note("User not found", "That user no longer exists.")
		return data, nil
	}
	if err != nil {
		return viewmodels.SettingsUsersViewData{}, err
	}

	if d.open == "edit" {
		role := user.Role
		if d.role != "" {
			role = d.role
		}
		data.OpenEdit = true
		data.EditForm = viewmodels.SettingsUsersEditForm{ID: user.ID, Email: user.Email, Role: role}
		// Demotion is the only role change that can be refused.
		if reason := g.roleChange(user, auth.RoleViewer); reason != "" {
			data.EditForm.RoleDisabled = true
			data.EditForm.RoleDisabledReason = reason
		}
		return data, nil
	}
	if reason := g.deletion(user); reason != "" {
		note("Delete not allowed", reason)
		return data, nil
	}
	data.OpenDelete = true
	data.DeleteID = user.ID
	data.DeleteMail = user.Email
	return data, nil
}
