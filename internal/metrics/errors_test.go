package metrics

import (
	"errors"
	"net"
	"testing"
)

func TestFriendlyErrorName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "Unknown error"},
		{"*url.Error", "Request URL error"},
		{"*context.deadlineExceededError", "Context deadline exceeded"},
		{"*solr.RemoteError", "Remote Error (solr)"},
		{"*github.com/acme/pkg.HTTPStatusError", "HTTP Status Error (pkg)"},
		{"main.customErr", "Custom Err"},
	}
	for _, tt := range tests {
		if got := FriendlyErrorName(tt.in); got != tt.want {
			t.Errorf("FriendlyErrorName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestErrorKindConnection(t *testing.T) {
	err := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	if got := ErrorKind(err); got != "Connection error" {
		t.Errorf("ErrorKind() = %q, want Connection error", got)
	}
	if got := ErrorKind(nil); got != "Unknown error" {
		t.Errorf("ErrorKind(nil) = %q", got)
	}
}
