// Package names implements the RINA application-name wire codec
// (spec.md §4.H): four variable-length byte strings per name, and a
// fixed-prefix-plus-N-names framing for the control messages
// exchanged between the kernel-side engine and its user-space Host
// (spec §6's "Wire Codec contract").
package names

import (
	"github.com/blang/semver"

	"github.com/rlite-go/normal/internal/corelog"
	"github.com/rlite-go/normal/internal/dtperr"
	"github.com/rlite-go/normal/internal/wireversion"
)

// MaxComponentLen is the largest a single name component (apn, api,
// aen or aei) may be; its wire length prefix is one byte.
const MaxComponentLen = 255

// Name is the four-component RINA application name.
type Name struct {
	APN []byte
	API []byte
	AEN []byte
	AEI []byte
}

func encodeString(out []byte, s []byte) ([]byte, error) {
	if len(s) > MaxComponentLen {
		return nil, &dtperr.MalformedMessage{Reason: "name component exceeds 255 bytes"}
	}
	out = append(out, byte(len(s)))
	out = append(out, s...)
	return out, nil
}

func decodeString(buf []byte) (s []byte, rest []byte, err error) {
	if len(buf) < 1 {
		return nil, nil, &dtperr.MalformedMessage{Reason: "truncated string length"}
	}
	n := int(buf[0])
	buf = buf[1:]
	if len(buf) < n {
		return nil, nil, &dtperr.MalformedMessage{Reason: "truncated string body"}
	}
	s = make([]byte, n)
	copy(s, buf[:n])
	return s, buf[n:], nil
}

// EncodeName serialises a Name as four length-prefixed strings,
// appended to out.
func EncodeName(out []byte, n Name) ([]byte, error) {
	var err error
	for _, comp := range [][]byte{n.APN, n.API, n.AEN, n.AEI} {
		out, err = encodeString(out, comp)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// DecodeName consumes one Name's worth of length-prefixed strings
// off the front of buf and returns what's left.
func DecodeName(buf []byte) (n Name, rest []byte, err error) {
	rest = buf
	if n.APN, rest, err = decodeString(rest); err != nil {
		return Name{}, nil, err
	}
	if n.API, rest, err = decodeString(rest); err != nil {
		return Name{}, nil, err
	}
	if n.AEN, rest, err = decodeString(rest); err != nil {
		return Name{}, nil, err
	}
	if n.AEI, rest, err = decodeString(rest); err != nil {
		return Name{}, nil, err
	}
	return n, rest, nil
}

// MessageType identifies a control message exchanged with the Host.
type MessageType byte

const (
	MsgFlowAllocateRequest  MessageType = 1
	MsgFlowAllocateResponse MessageType = 2
	MsgFlowDeallocate       MessageType = 3
	MsgRegisterApplication  MessageType = 4
	MsgUnregisterApplication MessageType = 5
)

// layout describes, for one message type, how many bytes of opaque
// fixed-length prefix precede the serialised names, and how many
// names follow it. This is the table spec §6 requires implementers
// to tabulate ("a table keyed on message-type, value {copylen,
// names}").
type layout struct {
	copyLen int
	names   int
}

var layouts = map[MessageType]layout{
	// port-id (4) + cep-id (4) + qos blob length (1), then source
	// and destination application names.
	MsgFlowAllocateRequest: {copyLen: 9, names: 2},
	// result code (1) + port-id (4), no names.
	MsgFlowAllocateResponse: {copyLen: 5, names: 0},
	// port-id (4), no names.
	MsgFlowDeallocate: {copyLen: 4, names: 0},
	// no fixed prefix, one name to register.
	MsgRegisterApplication: {copyLen: 0, names: 1},
	MsgUnregisterApplication: {copyLen: 0, names: 1},
}

// EncodeMessage builds the wire form of a control message: a leading
// wire-version byte (wireversion.CURRENT_VERSION's major, so a peer
// on an incompatible revision can say so instead of misparsing),
// then the opaque fixed prefix (caller-serialised, length must match
// the type's tabulated copyLen), then len(ns) names (must match the
// type's tabulated name count).
func EncodeMessage(typ MessageType, prefix []byte, ns []Name) ([]byte, error) {
	lay, ok := layouts[typ]
	if !ok {
		return nil, &dtperr.InvalidArgument{Arg: "message type", Reason: "unknown message type"}
	}
	if len(prefix) != lay.copyLen {
		return nil, &dtperr.MalformedMessage{Reason: "fixed prefix length mismatch"}
	}
	if len(ns) != lay.names {
		return nil, &dtperr.MalformedMessage{Reason: "name count mismatch"}
	}
	out := make([]byte, 0, 1+lay.copyLen+16*len(ns))
	out = append(out, byte(wireversion.CURRENT_VERSION.Major))
	out = append(out, prefix...)
	var err error
	for _, n := range ns {
		out, err = EncodeName(out, n)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// DecodeMessage strips the leading wire-version byte (logging, not
// failing, on a major-version mismatch — the PCI/name-codec layouts
// this package implements are pinned by spec and don't vary with
// it), then splits the rest of serbuf into its fixed prefix and its
// names per the type's tabulated layout. It MUST consume exactly
// len(serbuf) after the version byte; leftover or missing bytes are
// MalformedMessage.
func DecodeMessage(typ MessageType, serbuf []byte) (prefix []byte, ns []Name, err error) {
	lay, ok := layouts[typ]
	if !ok {
		return nil, nil, &dtperr.InvalidArgument{Arg: "message type", Reason: "unknown message type"}
	}
	if len(serbuf) < 1 {
		return nil, nil, &dtperr.MalformedMessage{Reason: "missing wire-version byte"}
	}
	peerVersion := semver.Version{Major: uint64(serbuf[0])}
	if !wireversion.Compatible(peerVersion) {
		corelog.Log.Warningf("names: peer wire version %d incompatible with %s, attempting to decode anyway",
			serbuf[0], wireversion.CURRENT_VERSION)
	}
	rest := serbuf[1:]

	if len(rest) < lay.copyLen {
		return nil, nil, &dtperr.MalformedMessage{Reason: "buffer shorter than fixed prefix"}
	}
	prefix = make([]byte, lay.copyLen)
	copy(prefix, rest[:lay.copyLen])
	rest = rest[lay.copyLen:]

	ns = make([]Name, 0, lay.names)
	for i := 0; i < lay.names; i++ {
		var n Name
		n, rest, err = DecodeName(rest)
		if err != nil {
			return nil, nil, err
		}
		ns = append(ns, n)
	}
	if len(rest) != 0 {
		return nil, nil, &dtperr.MalformedMessage{Reason: "trailing bytes after names"}
	}
	return prefix, ns, nil
}
