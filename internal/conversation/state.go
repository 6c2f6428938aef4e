package conversation

import "errors"

var (
	ErrTutorTyping        = errors.New("tutor is still responding")
	ErrNotReady           = errors.New("session is not ready for input")
	ErrSessionEnded       = errors.New("session has ended")
	ErrRecordingBusy      = errors.New("recording already in progress")
	ErrRecordingNotActive = errors.New("recording is not active")
	ErrNoPendingLeave     = errors.New("no leave request to confirm")
	ErrLeavePending       = errors.New("leave request awaiting confirmation")
	ErrVoiceUnavailable   = errors.New("voice input is not configured")
)

// State is the lifecycle state of a conversation session
type State int

const (
	StateInitializing State = iota
	StateAwaitingGreeting
	StateIdle
	StateUserComposing
	StateRemoteComposing
	StateRecording
	StateCompleted
	StateAbandoned
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateAwaitingGreeting:
		return "awaiting_greeting"
	case StateIdle:
		return "idle"
	case StateUserComposing:
		return "user_composing"
	case StateRemoteComposing:
		return "remote_composing"
	case StateRecording:
		return "recording"
	case StateCompleted:
		return "completed"
	case StateAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// Terminal reports whether the session has been torn down
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateAbandoned
}

// RecordingState is the sub-state of voice capture
type RecordingState int

const (
	RecordingIdle RecordingState = iota
	RecordingStarting
	RecordingActive
)

func (r RecordingState) String() string {
	switch r {
	case RecordingStarting:
		return "starting"
	case RecordingActive:
		return "active"
	default:
		return "idle"
	}
}

// LeaveDecision is the answer to a leave request
type LeaveDecision int

const (
	// LeaveAllowed means the lesson is complete and leaving keeps its XP.
	LeaveAllowed LeaveDecision = iota
	// LeaveNeedsConfirmation means leaving now discards the session's XP.
	LeaveNeedsConfirmation
)

func (d LeaveDecision) String() string {
	if d == LeaveAllowed {
		return "allowed"
	}
	return "needs_confirmation"
}
