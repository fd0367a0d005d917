package apierror

import (
	"fmt"
	"strings"
	"testing"
)

func TestError_Message(t *testing.T) {
	err := New("wechat", "upload media", 40004, "invalid media type")
	if got, want := err.Error(), "wechat upload media: [40004] invalid media type"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestFromResponse(t *testing.T) {
	err := FromResponse("groupme", "post message", 401, []byte("  unauthorized token \n"))
	if err.Code != 401 || err.Message != "Unauthorized" || err.Detail != "unauthorized token" {
		t.Errorf("unexpected error %+v", err)
	}

	long := FromResponse("groupme", "get groups", 500, []byte(strings.Repeat("x", 2000)))
	if len(long.Detail) != 512 {
		t.Errorf("detail not truncated: %d", len(long.Detail))
	}
}

func TestIsCode(t *testing.T) {
	wrapped := fmt.Errorf("send: %w", New("wechat", "send", 42001, "access_token expired"))
	if !IsCode(wrapped, 42001) {
		t.Error("expected wrapped code to match")
	}
	if IsCode(wrapped, 40001) {
		t.Error("unexpected match")
	}
	if IsCode(fmt.Errorf("plain"), 42001) {
		t.Error("plain error must not match")
	}
}
