package syncqueue_test

import (
	"errors"
	"testing"

	"articlesync/internal/syncqueue"
)

func TestParseStatusKey(t *testing.T) {
	cases := []struct {
		input string
		want  syncqueue.StatusKey
		ok    bool
	}{
		{"read", syncqueue.StatusRead, true},
		{" STARRED ", syncqueue.StatusStarred, true},
		{"Read", syncqueue.StatusRead, true},
		{"pinned", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := syncqueue.ParseStatusKey(tc.input)
		if tc.ok {
			if err != nil || got != tc.want {
				t.Fatalf("ParseStatusKey(%q) = %q, %v; want %q", tc.input, got, err, tc.want)
			}
			continue
		}
		if !errors.Is(err, syncqueue.ErrInvalidStatusKey) {
			t.Fatalf("ParseStatusKey(%q) expected ErrInvalidStatusKey, got %v", tc.input, err)
		}
	}
}

func TestParseState(t *testing.T) {
	if state, err := syncqueue.ParseState("Claimed"); err != nil || state != syncqueue.StateClaimed {
		t.Fatalf("unexpected parse result %q err=%v", state, err)
	}
	if _, err := syncqueue.ParseState("done"); err == nil {
		t.Fatal("expected error for unknown state")
	}
}

func TestErrorKindUnknown(t *testing.T) {
	if kind := syncqueue.ErrorKind(errors.New("boom")); kind != "" {
		t.Fatalf("expected empty kind, got %q", kind)
	}
	if kind := syncqueue.ErrorKind(nil); kind != "" {
		t.Fatalf("expected empty kind for nil, got %q", kind)
	}
}
