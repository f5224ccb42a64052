package backend

import (
	"context"
	"net/http"
	"net/url"
)

// Notifications lists the notifications of a store.
func (c *Conn) Notifications(ctx context.Context, storeID int64, filter NotificationFilter) ([]Notification, error) {
	status := filter.Status
	if status == "" {
		status = "all"
	}
	q := url.Values{"store": {formatID(storeID)}, "status": {status}}
	setIf(q, "category", filter.Category)
	var out []Notification
	err := c.do(ctx, request{name: "notifications.list", method: http.MethodGet, path: "/api/v1/notifications/", query: q}, &out)
	return out, err
}

// MarkNotificationRead flags one notification as read.
func (c *Conn) MarkNotificationRead(ctx context.Context, id int64) error {
	return c.do(ctx, request{name: "notifications.read", method: http.MethodPatch, path: idPath("/api/v1/notifications/%d/read/", id)}, nil)
}

// MarkAllNotificationsRead flags every notification of a store as read.
func (c *Conn) MarkAllNotificationsRead(ctx context.Context, storeID int64) error {
	return c.do(ctx, request{
		name:   "notifications.read_all",
		method: http.MethodPatch,
		path:   "/api/v1/notifications/mark-all-read/",
		body:   map[string]int64{"store": storeID},
	}, nil)
}

// DeleteNotification removes one notification.
func (c *Conn) DeleteNotification(ctx context.Context, id int64) error {
	return c.do(ctx, request{name: "notifications.delete", method: http.MethodDelete, path: idPath("/api/v1/notifications/%d/delete/", id)}, nil)
}
