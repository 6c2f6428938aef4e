package tutor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/felixgeelhaar/lingua/internal/llm"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, KindGeneric},
		{"deadline", fmt.Errorf("send: %w", context.DeadlineExceeded), KindTimeout},
		{"net timeout", timeoutErr{}, KindTimeout},
		{"tutor 503", &StatusError{Path: "/api/chat", StatusCode: 503}, KindServer},
		{"tutor 500 wrapped", fmt.Errorf("x: %w", &StatusError{StatusCode: 500}), KindServer},
		{"tutor 404", &StatusError{StatusCode: 404}, KindGeneric},
		{"llm 502", &llm.StatusError{Provider: "claude", StatusCode: 502}, KindServer},
		{"dial refused", &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}, KindNetwork},
		{"dns", &net.DNSError{Err: "no such host", Name: "tutor.invalid"}, KindNetwork},
		{"reset", fmt.Errorf("read: %w", syscall.ECONNRESET), KindNetwork},
		{"throttled", ErrThrottled, KindGeneric},
		{"other", errors.New("boom"), KindGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %s; want %s", got, tt.want)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	if UserMessage(KindNetwork) != MsgCannotConnect {
		t.Error("network should map to the cannot-connect message")
	}
	if UserMessage(KindServer) != MsgServerError {
		t.Error("server should map to the server-error message")
	}
	if UserMessage(KindTimeout) != MsgConnectivity || UserMessage(KindGeneric) != MsgConnectivity {
		t.Error("timeout and generic should map to the connectivity message")
	}
}
