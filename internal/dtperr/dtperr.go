// Package dtperr defines the error kinds the data transfer engine
// surfaces (spec §7), following the teacher's habit of one named
// error type per failure category (see krd/enclave_client.go's
// SendQueued/SendError/ProtoError) instead of bare sentinel values,
// so callers can type-switch on what happened to a PDU.
package dtperr

import "fmt"

// BackPressure means the caller should retry sdu_write later; the
// buffer it tried to send was NOT consumed.
type BackPressure struct {
	Flow string
}

func (e *BackPressure) Error() string {
	return fmt.Sprintf("backpressure: flow %s window/queue full", e.Flow)
}

// OutOfMemory is fatal for the PDU in flight; the caller's buffer has
// already been freed by the time this is returned.
type OutOfMemory struct {
	Reason string
}

func (e *OutOfMemory) Error() string {
	return "out of memory: " + e.Reason
}

// NoRoute means the PDUFT had no entry for the destination address
// and the address was not our own; the buffer was silently dropped.
type NoRoute struct {
	Addr uint64
}

func (e *NoRoute) Error() string {
	return fmt.Sprintf("no route to address %d", e.Addr)
}

// MalformedMessage is returned by the name/message codec when a
// serialised buffer doesn't decode cleanly.
type MalformedMessage struct {
	Reason string
}

func (e *MalformedMessage) Error() string {
	return "malformed message: " + e.Reason
}

// InvalidArgument covers bad config keys/values and similar caller
// mistakes that can't be retried without change.
type InvalidArgument struct {
	Arg    string
	Reason string
}

func (e *InvalidArgument) Error() string {
	return fmt.Sprintf("invalid argument %q: %s", e.Arg, e.Reason)
}

// BrokenPeer records that a peer violated a window-monotonicity
// invariant (e.g. announced a new_rwe smaller than our current
// snd_rwe). It is logged, never returned to an upper-layer caller;
// it exists as a typed value so tests can assert on it.
type BrokenPeer struct {
	Reason string
}

func (e *BrokenPeer) Error() string {
	return "broken peer: " + e.Reason
}

// TransportError wraps a failure from the medium underneath a shim N-1
// flow (a socket write, a queue-service call) — a link problem, not a
// DTCP protocol violation. Callers that only care about retryability
// can unwrap it; it exists as a typed value so it is never confused
// with BrokenPeer's distinct, spec-defined meaning.
type TransportError struct {
	Reason string
	Err    error
}

func (e *TransportError) Error() string {
	return "transport error: " + e.Reason
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
