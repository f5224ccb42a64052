package settings

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/fixline-ai/fixline/internal/backend"
	"github.com/fixline-ai/fixline/internal/shared"
	"github.com/fixline-ai/fixline/internal/state"
)

// MaxImageBytes bounds profile image uploads.
const MaxImageBytes = 5 << 20

// ProfileForm is the profile tab.
type ProfileForm struct {
	FirstName     string `validate:"required"`
	LastName      string
	Email         string
	StateLocation string
	Image         string
}

// PasswordForm is the change password tab.
type PasswordForm struct {
	OldPassword     string `validate:"required"`
	NewPassword     string `validate:"required,min=6"`
	ConfirmPassword string `validate:"required,eqfield=NewPassword"`
}

var profileMessages = map[string]string{
	"FirstName.required": "First name is required",
}

var passwordMessages = map[string]string{
	"OldPassword.required":     "Current password is required",
	"NewPassword.required":     "New password is required",
	"NewPassword.min":          "Password must be at least 6 characters",
	"ConfirmPassword.required": "Confirm your new password",
	"ConfirmPassword.eqfield":  "Passwords do not match",
}

type accountPageData struct {
	Tab     string
	Profile ProfileForm
	Errors  formErrors
}

func profileOf(u *state.User) ProfileForm {
	if u == nil {
		return ProfileForm{}
	}
	return ProfileForm{FirstName: u.FirstName, LastName: u.LastName, Email: u.Email, StateLocation: u.StateLocation, Image: u.ProfileImage}
}

func (h *Handler) showProfile(w http.ResponseWriter, r *http.Request) {
	p := state.FromContext(r.Context())
	h.responder.Render(w, r, "pages/settings_account.html", "Settings", accountPageData{Tab: "profile", Profile: profileOf(p.User())}, http.StatusOK)
}

func (h *Handler) showPassword(w http.ResponseWriter, r *http.Request) {
	p := state.FromContext(r.Context())
	h.responder.Render(w, r, "pages/settings_account.html", "Settings", accountPageData{Tab: "password", Profile: profileOf(p.User())}, http.StatusOK)
}

func (h *Handler) saveProfile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(MaxImageBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	p := state.FromContext(ctx)
	current := profileOf(p.User())
	form := ProfileForm{
		FirstName:     strings.TrimSpace(r.PostFormValue("first_name")),
		LastName:      strings.TrimSpace(r.PostFormValue("last_name")),
		StateLocation: strings.TrimSpace(r.PostFormValue("state_location")),
		Email:         current.Email,
		Image:         current.Image,
	}
	errs := h.check(form, profileMessages)
	upload, err := readImage(r)
	if err != nil {
		errs["Image"] = err.Error()
	}
	if len(errs) > 0 {
		h.responder.Render(w, r, "pages/settings_account.html", "Settings", accountPageData{Tab: "profile", Profile: form, Errors: errs}, http.StatusBadRequest)
		return
	}

	err = h.connect(p).UpdateProfile(ctx, backend.ProfileUpdate{
		FirstName:     form.FirstName,
		LastName:      form.LastName,
		StateLocation: form.StateLocation,
		Image:         upload,
	})
	if err != nil {
		h.responder.Fail(w, r, shared.NewSafeError("Failed to update profile", err), "/settings/profile")
		return
	}
	if h.profiles != nil {
		if err := p.RefreshProfile(ctx, h.profiles); err != nil {
			if errors.Is(err, backend.ErrAuthExpired) {
				h.responder.Expire(w, r)
				return
			}
			h.logger.Warn("refresh profile", slog.Any("error", err))
		}
	}
	h.responder.Redirect(w, r, "/settings/profile", shared.FlashSuccess, "Profile updated successfully")
}

var (
	errImageTooLarge = errors.New("Image must be 5 MB or smaller")
	errNotImage      = errors.New("Upload a PNG, JPEG, GIF or WebP image")
)

// readImage returns the optional profile image upload.
func readImage(r *http.Request) (*backend.Upload, error) {
	file, header, err := r.FormFile("profile_image")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, errNotImage
	}
	defer file.Close()
	if header.Size > MaxImageBytes {
		return nil, errImageTooLarge
	}
	data, err := io.ReadAll(io.LimitReader(file, MaxImageBytes+1))
	if err != nil {
		return nil, errNotImage
	}
	if len(data) > MaxImageBytes {
		return nil, errImageTooLarge
	}
	if len(data) == 0 {
		return nil, nil
	}
	contentType := http.DetectContentType(data)
	switch contentType {
	case "image/png", "image/jpeg", "image/gif", "image/webp":
	default:
		return nil, errNotImage
	}
	return &backend.Upload{Filename: header.Filename, ContentType: contentType, Data: data}, nil
}

func (h *Handler) savePassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	p := state.FromContext(ctx)
	form := PasswordForm{
		OldPassword:     r.PostFormValue("old_password"),
		NewPassword:     r.PostFormValue("new_password"),
		ConfirmPassword: r.PostFormValue("confirm_password"),
	}
	if errs := h.check(form, passwordMessages); len(errs) > 0 {
		h.responder.Render(w, r, "pages/settings_account.html", "Settings", accountPageData{Tab: "password", Profile: profileOf(p.User()), Errors: errs}, http.StatusBadRequest)
		return
	}
	err := h.connect(p).ChangePassword(ctx, backend.PasswordChange{
		OldPassword:     form.OldPassword,
		NewPassword:     form.NewPassword,
		ConfirmPassword: form.ConfirmPassword,
	})
	if err != nil {
		h.responder.Fail(w, r, shared.NewSafeError("Failed to change password", err), "/settings/password")
		return
	}
	h.responder.Redirect(w, r, "/settings/password", shared.FlashSuccess, "Password changed successfully")
}
