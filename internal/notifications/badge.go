package notifications

import (
	"context"
	"log/slog"

	"github.com/fixline-ai/fixline/internal/backend"
	"github.com/fixline-ai/fixline/internal/screen"
	"github.com/fixline-ai/fixline/internal/state"
	"github.com/fixline-ai/fixline/internal/view"
)

// UnreadBadge returns a shell hook that fills the top bar unread count for
// the Active Store. Failures leave the badge empty.
func UnreadBadge(logger *slog.Logger, connect Connector) view.ShellHook {
	return func(ctx context.Context, p *state.Provider, shell *view.Shell) {
		if !shell.HasStore {
			return
		}
		be := connect(p)
		snap, err := screen.Open(ctx, "notifications.unread", screen.Key{StoreID: shell.StoreID}, func(ctx context.Context, key screen.Key) (int, error) {
			list, err := be.Notifications(ctx, key.StoreID, backend.NotificationFilter{Status: "unread"})
			if err != nil {
				return 0, err
			}
			n := 0
			for _, item := range list {
				if !item.IsRead {
					n++
				}
			}
			return n, nil
		})
		if err == nil && snap.Err != nil {
			err = snap.Err
		}
		if err != nil && logger != nil {
			logger.Debug("unread badge", slog.Any("error", err))
		}
		if snap.HasData {
			shell.UnreadCount = snap.Data
		}
	}
}
