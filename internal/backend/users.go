package backend

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
)

// Users lists the accounts attached to a store.
func (c *Conn) Users(ctx context.Context, storeID int64) ([]StoreUser, error) {
	q := url.Values{"store": {formatID(storeID)}}
	var wire []wireUser
	if err := c.do(ctx, request{name: "auth.users", method: http.MethodGet, path: "/auth/users/", query: q}, &wire); err != nil {
		return nil, err
	}
	out := make([]StoreUser, 0, len(wire))
	for _, u := range wire {
		out = append(out, StoreUser{
			ID:           u.ID,
			FirstName:    u.FirstName,
			LastName:     u.LastName,
			Email:        u.Email,
			Role:         u.Role,
			LastActive:   u.LastActive,
			ProfileImage: u.ProfileImage,
		})
	}
	return out, nil
}

// CreateUser adds an account.
func (c *Conn) CreateUser(ctx context.Context, user NewUser) error {
	return c.do(ctx, request{name: "auth.user_create", method: http.MethodPost, path: "/auth/users/", body: user}, nil)
}

// UpdateUser patches an account.
func (c *Conn) UpdateUser(ctx context.Context, id int64, patch UserPatch) error {
	return c.do(ctx, request{name: "auth.user_update", method: http.MethodPatch, path: idPath("/auth/users/%d/", id), body: patch}, nil)
}

// DeleteUser removes an account.
func (c *Conn) DeleteUser(ctx context.Context, id int64) error {
	return c.do(ctx, request{name: "auth.user_delete", method: http.MethodDelete, path: idPath("/auth/users/%d/", id)}, nil)
}

// UpdateProfile sends the profile form as multipart data.
func (c *Conn) UpdateProfile(ctx context.Context, update ProfileUpdate) error {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	fields := [][2]string{
		{"first_name", update.FirstName},
		{"last_name", update.LastName},
		{"state_location", update.StateLocation},
	}
	for _, field := range fields {
		if err := form.WriteField(field[0], field[1]); err != nil {
			return err
		}
	}
	if update.Image != nil && len(update.Image.Data) > 0 {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="profile_image"; filename=%q`, update.Image.Filename))
		contentType := update.Image.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)
		part, err := form.CreatePart(header)
		if err != nil {
			return err
		}
		if _, err := part.Write(update.Image.Data); err != nil {
			return err
		}
	}
	if err := form.Close(); err != nil {
		return err
	}
	return c.do(ctx, request{
		name:        "auth.profile_update",
		method:      http.MethodPatch,
		path:        "/auth/profile/",
		raw:         &buf,
		contentType: form.FormDataContentType(),
	}, nil)
}

// ChangePassword updates the signed in user's password.
func (c *Conn) ChangePassword(ctx context.Context, change PasswordChange) error {
	return c.do(ctx, request{name: "auth.change_password", method: http.MethodPost, path: "/auth/change-password/", body: change}, nil)
}

