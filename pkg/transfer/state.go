package transfer

import "sync/atomic"

// State is the lifecycle state shared by every transfer kind.
type State int32

const (
	// StateWaiting indicates the transfer is queued or waiting for a retry delay to elapse
	StateWaiting State = iota
	// StateDownloadingTorrent indicates torrent metadata is being fetched before the payload
	StateDownloadingTorrent
	// StateDownloading indicates payload bytes are being received
	StateDownloading
	// StateUploading indicates payload bytes are being served to a peer
	StateUploading
	// StateDemuxing indicates separate media streams are being combined or extracted
	StateDemuxing
	// StateUncompressing indicates a downloaded archive is being extracted
	StateUncompressing
	// StateVerifying indicates the received file is being checked against its checksum
	StateVerifying
	// StateComplete indicates the transfer finished successfully
	StateComplete
	// StateError indicates the transfer failed permanently
	StateError
	// StateCanceled indicates the transfer was canceled by the user
	StateCanceled
	// StatePaused indicates the user stopped a delegate transfer that can be resumed
	StatePaused
)

// String returns a human-readable string representation of the state
func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateDownloadingTorrent:
		return "downloading_torrent"
	case StateDownloading:
		return "downloading"
	case StateUploading:
		return "uploading"
	case StateDemuxing:
		return "demuxing"
	case StateUncompressing:
		return "uncompressing"
	case StateVerifying:
		return "verifying"
	case StateComplete:
		return "complete"
	case StateError:
		return "error"
	case StateCanceled:
		return "canceled"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if the state is final (complete, error, or canceled)
func (s State) IsTerminal() bool {
	return s == StateComplete || s == StateError || s == StateCanceled
}

// IsPostProcessing returns true for the stages that run after the payload has arrived
func (s State) IsPostProcessing() bool {
	return s == StateDemuxing || s == StateUncompressing || s == StateVerifying
}

// CanTransitionTo checks if a state transition is valid
func (s State) CanTransitionTo(next State) bool {
	switch s {
	case StateWaiting:
		return next == StateDownloading || next == StateUploading || next == StateDownloadingTorrent ||
			next == StateError || next == StateCanceled
	case StateDownloadingTorrent:
		return next == StateDownloading || next == StateError || next == StateCanceled
	case StateDownloading:
		return next == StateDownloading || next == StateWaiting || next.IsPostProcessing() ||
			next == StatePaused || next == StateComplete || next == StateError || next == StateCanceled
	case StatePaused:
		return next == StateDownloading || next == StateError || next == StateCanceled
	case StateDemuxing, StateUncompressing, StateVerifying:
		return next == StateComplete || next == StateError || next == StateCanceled
	case StateUploading:
		return next == StateUploading || next == StateComplete || next == StateCanceled
	case StateError:
		// removing a failed transfer records the cancellation
		return next == StateCanceled
	default:
		return false
	}
}

// StateMachine holds a State and applies only legal transitions to it.
// It is safe for concurrent use.
type StateMachine struct {
	v atomic.Int32
}

// NewStateMachine returns a machine positioned at initial.
func NewStateMachine(initial State) *StateMachine {
	sm := &StateMachine{}
	sm.v.Store(int32(initial))
	return sm
}

// Current returns the current state
func (sm *StateMachine) Current() State {
	return State(sm.v.Load())
}

// Transition moves to next if the move is legal from the current state.
// A move into StateError after cancellation is ignored.
func (sm *StateMachine) Transition(next State) (prev State, ok bool) {
	for {
		cur := State(sm.v.Load())
		if cur == StateCanceled && next == StateError {
			return cur, false
		}
		if !cur.CanTransitionTo(next) {
			return cur, false
		}
		if sm.v.CompareAndSwap(int32(cur), int32(next)) {
			return cur, true
		}
	}
}
