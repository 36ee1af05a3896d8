package call

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// RoomConfig points at the conference server rooms are created on. The
// server reads room behavior from URL fragment parameters, so lobby and
// display settings ride along on every generated link.
type RoomConfig struct {
	BaseURL    string
	RoomPrefix string

	// PrejoinEnabled keeps the pre-join lobby page in front of the room.
	PrejoinEnabled bool
	// DisplayName pre-fills the participant name shown in the room.
	DisplayName string
}

// newRoomID builds a room name unique enough for a public conference
// server: prefix, conversation id, and a short random suffix. The suffix
// keeps rooms unguessable; the UNIQUE constraint on calls.room_id is the
// collision backstop.
func newRoomID(prefix string, conversationID int64) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s-%d-%s", prefix, conversationID, suffix)
}

// roomURL joins the conference base URL, the room id, and the room's
// fragment configuration. Bare hosts get an https scheme so the stored URL
// is always clickable. Display names are quoted per the fragment grammar.
func (c RoomConfig) roomURL(roomID string) string {
	base := strings.TrimSuffix(c.BaseURL, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}

	frag := fmt.Sprintf("config.prejoinPageEnabled=%t", c.PrejoinEnabled)
	if c.DisplayName != "" {
		frag += "&userInfo.displayName=%22" + url.QueryEscape(c.DisplayName) + "%22"
	}
	return base + "/" + roomID + "#" + frag
}
