// Package flowid mints correlation ids for flows,
// the same role github.com/satori/go.uuid played in the teacher's
// common/protocol/pair.go (PairingSecret.DeriveUUID) for tagging a
// pairing session across transports — here it tags log lines across
// the transmit/receive/router paths for a single flow.
package flowid

import uuid "github.com/satori/go.uuid"

// ID is an opaque correlation id, printable for log lines.
type ID string

// New mints a fresh random id.
func New() ID {
	return ID(uuid.NewV4().String())
}

func (id ID) String() string {
	return string(id)
}
