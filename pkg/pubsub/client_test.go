package pubsub

import (
	"context"
	"testing"
)

func TestResourceName(t *testing.T) {
	cases := []struct {
		project, kind, name, want string
	}{
		{"proj", "topics", "tour-seats-changed", "projects/proj/topics/tour-seats-changed"},
		{"proj", "subscriptions", " worker ", "projects/proj/subscriptions/worker"},
		{"proj", "topics", "projects/other/topics/x", "projects/other/topics/x"},
		{"", "topics", "x", ""},
		{"proj", "topics", "", ""},
	}
	for _, tc := range cases {
		if got := resourceName(tc.project, tc.kind, tc.name); got != tc.want {
			t.Fatalf("resourceName(%q,%q,%q) = %q, want %q", tc.project, tc.kind, tc.name, got, tc.want)
		}
	}
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	if _, err := c.Publish(context.Background(), "t", nil, nil); err == nil {
		t.Fatal("expected error from nil client publish")
	}
	if err := c.Receive(context.Background(), "s", nil); err == nil {
		t.Fatal("expected error from nil client receive")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close on nil client should be a no-op: %v", err)
	}
}
