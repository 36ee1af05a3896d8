package chat

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"omnichat-platform/internal/channel"
)

// Registry resolves platform identities to user rows. Identity is the
// (platform_user_id, channel_type) pair; registration is idempotent under
// concurrent webhook delivery.
type Registry struct {
	db    *sql.DB
	clock func() time.Time
}

func NewRegistry(db *sql.DB) *Registry {
	return &Registry{db: db, clock: time.Now}
}

// IsNewUser reports whether the sender has never been seen on this channel.
// Checked before registration so first-contact side effects (welcome reply)
// fire exactly for the first message.
func (r *Registry) IsNewUser(ctx context.Context, platformUserID string, ct channel.Type) (bool, error) {
	if platformUserID == "" || !ct.Valid() {
		return false, fmt.Errorf("%w: platform user id and channel type required", ErrInvalidArgument)
	}
	_, found, err := findUserByPlatformID(ctx, r.db, platformUserID, ct)
	if err != nil {
		return false, err
	}
	return !found, nil
}

// RegisterOrGet returns the user row for the message sender, creating it on
// first contact. Two racing webhooks for the same new sender both land on
// the same row: the loser of the insert re-selects the winner's row.
func (r *Registry) RegisterOrGet(ctx context.Context, msg *channel.CanonicalMessage) (User, error) {
	if msg == nil || msg.PlatformUserID == "" || !msg.Channel.Valid() {
		return User{}, fmt.Errorf("%w: message with platform user id required", ErrInvalidArgument)
	}

	candidate := User{
		PlatformUserID: msg.PlatformUserID,
		ChannelType:    msg.Channel,
		Username:       msg.Username,
		FirstName:      msg.FirstName,
		LastName:       msg.LastName,
		PhoneNumber:    msg.Phone,
		FirstContactAt: r.clock().UTC(),
	}
	u, inserted, err := insertUserIfAbsent(ctx, r.db, candidate)
	if err != nil {
		return User{}, err
	}
	if inserted {
		return u, nil
	}

	u, found, err := findUserByPlatformID(ctx, r.db, msg.PlatformUserID, msg.Channel)
	if err != nil {
		return User{}, err
	}
	if !found {
		return User{}, fmt.Errorf("user vanished after conflicting insert: %s/%s", msg.Channel, msg.PlatformUserID)
	}
	return u, nil
}

// Get loads a user by internal id.
func (r *Registry) Get(ctx context.Context, id int64) (User, error) {
	return getUser(ctx, r.db, id)
}
