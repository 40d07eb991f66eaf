package common

import "errors"

// ProtocolStatus is the coarse operating mode imposed by governance.
type ProtocolStatus uint8

const (
	// StatusActive permits every operation.
	StatusActive ProtocolStatus = iota
	// StatusPaused rejects all user operations.
	StatusPaused
	// StatusWithdrawOnly permits only withdrawals and repayments so users can
	// unwind positions during an orderly shutdown.
	StatusWithdrawOnly
)

var (
	// ErrProtocolPaused is returned when the protocol rejects all activity.
	ErrProtocolPaused = errors.New("protocol is paused")
	// ErrProtocolNotActive is returned when an operation requires the fully
	// active mode but the protocol is paused or winding down.
	ErrProtocolNotActive = errors.New("protocol is not active")
)

// String renders the status for logs and API payloads.
func (s ProtocolStatus) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusPaused:
		return "paused"
	case StatusWithdrawOnly:
		return "withdraw-only"
	default:
		return "unknown"
	}
}

// GuardActive rejects any status other than fully active.
func GuardActive(status ProtocolStatus) error {
	switch status {
	case StatusActive:
		return nil
	case StatusPaused:
		return ErrProtocolPaused
	default:
		return ErrProtocolNotActive
	}
}

// GuardWithdraw permits position-reducing operations while the protocol is
// active or in withdraw-only mode.
func GuardWithdraw(status ProtocolStatus) error {
	switch status {
	case StatusActive, StatusWithdrawOnly:
		return nil
	default:
		return ErrProtocolPaused
	}
}
