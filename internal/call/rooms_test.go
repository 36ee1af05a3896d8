package call

import (
	"strings"
	"testing"
)

func TestNewRoomID_Shape(t *testing.T) {
	id := newRoomID("support-call", 42)
	if !strings.HasPrefix(id, "support-call-42-") {
		t.Fatalf("unexpected room id %q", id)
	}
	suffix := strings.TrimPrefix(id, "support-call-42-")
	if len(suffix) != 8 {
		t.Fatalf("expected 8-char suffix, got %q", suffix)
	}
}

func TestNewRoomID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := newRoomID("support-call", 1)
		if seen[id] {
			t.Fatalf("duplicate room id %q", id)
		}
		seen[id] = true
	}
}

func TestRoomURL(t *testing.T) {
	cases := []struct {
		cfg  RoomConfig
		want string
	}{
		{
			RoomConfig{BaseURL: "https://meet.jit.si"},
			"https://meet.jit.si/room-1#config.prejoinPageEnabled=false",
		},
		{
			RoomConfig{BaseURL: "https://meet.jit.si/"},
			"https://meet.jit.si/room-1#config.prejoinPageEnabled=false",
		},
		{
			RoomConfig{BaseURL: "meet.example.com"},
			"https://meet.example.com/room-1#config.prejoinPageEnabled=false",
		},
		{
			RoomConfig{BaseURL: "http://localhost:8443", PrejoinEnabled: true},
			"http://localhost:8443/room-1#config.prejoinPageEnabled=true",
		},
		{
			RoomConfig{BaseURL: "https://meet.jit.si", DisplayName: "Support Team"},
			"https://meet.jit.si/room-1#config.prejoinPageEnabled=false&userInfo.displayName=%22Support+Team%22",
		},
	}
	for _, tc := range cases {
		if got := tc.cfg.roomURL("room-1"); got != tc.want {
			t.Fatalf("roomURL(%q) = %q, want %q", tc.cfg.BaseURL, got, tc.want)
		}
	}
}
