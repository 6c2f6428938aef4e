package tutor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"

	"github.com/felixgeelhaar/lingua/internal/llm"
)

// ErrThrottled is returned when the local rate limit rejects a call
var ErrThrottled = errors.New("tutor rate limit exceeded")

// StatusError is a non-2xx answer from the tutor backend
type StatusError struct {
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tutor %s: status %d: %s", e.Path, e.StatusCode, e.Body)
}

// ErrorKind is the user-facing category of a remote failure
type ErrorKind int

const (
	KindGeneric ErrorKind = iota
	KindNetwork
	KindServer
	KindTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindServer:
		return "server"
	case KindTimeout:
		return "timeout"
	default:
		return "generic"
	}
}

// Messages shown to the learner, one per failure category.
const (
	MsgCannotConnect = "Cannot connect to the tutor. Check your internet connection and try again."
	MsgServerError   = "The tutor server ran into a problem. Please try again later."
	MsgConnectivity  = "Something went wrong while reaching the tutor. Please try again."
	MsgNoSpeech      = "No speech detected. Tap the microphone and speak clearly."
)

// Classify maps an error from any collaborator to its failure category.
// Timeouts are checked first since a timed-out dial is also a net.OpError.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindGeneric
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}

	if code := statusCode(err); code != 0 {
		if code >= 500 {
			return KindServer
		}
		return KindGeneric
	}

	var opErr *net.OpError
	var dnsErr *net.DNSError
	switch {
	case errors.As(err, &opErr), errors.As(err, &dnsErr):
		return KindNetwork
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET):
		return KindNetwork
	}
	return KindGeneric
}

// UserMessage returns the message shown for a failure category
func UserMessage(k ErrorKind) string {
	switch k {
	case KindNetwork:
		return MsgCannotConnect
	case KindServer:
		return MsgServerError
	default:
		return MsgConnectivity
	}
}

func statusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	var le *llm.StatusError
	if errors.As(err, &le) {
		return le.StatusCode
	}
	return 0
}
