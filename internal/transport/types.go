// Package transport defines the outbound message boundary. Notification
// producers depend on this interface only; the Telegram adapter lives in
// a subpackage.
package transport

import "context"

// Outbound delivers plain-text messages to a user's private chat or to a
// group chat. Implementations must be safe for concurrent use.
type Outbound interface {
	SendToUser(ctx context.Context, userID int64, text string) error
	SendToGroup(ctx context.Context, groupID int64, text string) error
}
