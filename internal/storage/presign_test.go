package storage

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"
)

func fixedSigner(t *testing.T, at time.Time) *Signer {
	t.Helper()
	s := NewSigner("test-secret", "https://chat.example.com")
	s.clock = func() time.Time { return at }
	return s
}

func parseSignedURL(t *testing.T, raw string) (key string, exp int64, sig string) {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	key = strings.TrimPrefix(u.Path, "/media/")
	exp, err = strconv.ParseInt(u.Query().Get("exp"), 10, 64)
	if err != nil {
		t.Fatalf("parse exp: %v", err)
	}
	return key, exp, u.Query().Get("sig")
}

func TestSigner_RoundTrip(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s := fixedSigner(t, now)

	raw := s.SignedURL("conversations/7/messages/9/abc-photo.jpg", 15*time.Minute)
	key, exp, sig := parseSignedURL(t, raw)
	if key != "conversations/7/messages/9/abc-photo.jpg" {
		t.Fatalf("unexpected key %q", key)
	}
	if exp != now.Add(15*time.Minute).Unix() {
		t.Fatalf("unexpected exp %d", exp)
	}
	if err := s.Verify(key, exp, sig); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestSigner_RejectsTamperedKey(t *testing.T) {
	s := fixedSigner(t, time.Now())

	raw := s.SignedURL("conversations/7/messages/9/a.jpg", time.Minute)
	_, exp, sig := parseSignedURL(t, raw)
	err := s.Verify("conversations/7/messages/10/b.jpg", exp, sig)
	if !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestSigner_RejectsExtendedExpiry(t *testing.T) {
	s := fixedSigner(t, time.Now())

	raw := s.SignedURL("k", time.Minute)
	key, exp, sig := parseSignedURL(t, raw)
	if err := s.Verify(key, exp+3600, sig); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestSigner_RejectsExpiredLink(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s := fixedSigner(t, now)

	raw := s.SignedURL("k", time.Minute)
	key, exp, sig := parseSignedURL(t, raw)

	s.clock = func() time.Time { return now.Add(2 * time.Minute) }
	if err := s.Verify(key, exp, sig); !errors.Is(err, ErrLinkExpired) {
		t.Fatalf("expected ErrLinkExpired, got %v", err)
	}
}

func TestSigner_DifferentSecretsDisagree(t *testing.T) {
	a := NewSigner("secret-a", "https://x")
	b := NewSigner("secret-b", "https://x")

	raw := a.SignedURL("k", time.Minute)
	key, exp, sig := parseSignedURL(t, raw)
	if err := b.Verify(key, exp, sig); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}
