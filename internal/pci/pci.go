// Package pci implements the PDU Control Information codec (spec.md
// §3, §4.B): it reads and writes the wire header in place at the
// front of a buffer.Buffer and distinguishes data from control PCI.
//
// Wire layout, little-endian, natural alignment (spec §6):
//
//	offset  size  field
//	0       8     dst_addr
//	8       8     src_addr
//	16      4     conn_id.qos_id
//	20      4     conn_id.dst_cep
//	24      4     conn_id.src_cep
//	28      1     pdu_type
//	29      1     pdu_flags
//	30      2     reserved (alignment pad)
//	32      8     seqnum
//
// That 40-byte prefix is shared by every PDU. A control PDU carries
// 48 more bytes immediately after it:
//
//	offset  size  field
//	40      8     last_ctrl_seq_num_rcvd
//	48      8     ack_nack_seq_num
//	56      8     new_rwe
//	64      8     new_lwe
//	72      8     my_rwe
//	80      8     my_lwe
package pci

import (
	"encoding/binary"

	"github.com/rlite-go/normal/internal/buffer"
)

const (
	DataPCILen    = 40
	ControlExtLen = 48
)

// pdu_type values and masks.
const (
	TypeDT   byte = 0x00
	TypeMGMT byte = 0x01

	CtrlMask  byte = 0x80
	CtrlACK   byte = 0x01
	CtrlNACK  byte = 0x02
	CtrlSACK  byte = 0x04
	CtrlSNACK byte = 0x08
	CtrlFC    byte = 0x10
)

// FlagDRF is bit 0 of pdu_flags: Data Run Flag, marks the first PDU
// of a run (or a run restarted after a reset).
const FlagDRF byte = 1 << 0

// IsControl reports whether pduType carries the control mask.
func IsControl(pduType byte) bool {
	return pduType&CtrlMask == CtrlMask
}

// ConnID identifies a connection endpoint pair.
type ConnID struct {
	QosID  uint32
	DstCEP uint32
	SrcCEP uint32
}

// PCI is the data-PDU header.
type PCI struct {
	DstAddr  uint64
	SrcAddr  uint64
	Conn     ConnID
	PDUType  byte
	PDUFlags byte
	SeqNum   uint64
}

func (p PCI) DRF() bool {
	return p.PDUFlags&FlagDRF != 0
}

// ControlExt carries the fields a control PDU adds on top of PCI.
type ControlExt struct {
	LastCtrlSeqNumRcvd uint64
	AckNackSeqNum      uint64
	NewRWE             uint64
	NewLWE             uint64
	MyRWE              uint64
	MyLWE              uint64
}

// ControlPCI is a full control PDU header.
type ControlPCI struct {
	PCI
	ControlExt
}

// EncodeDataPCI pushes a DT/MGMT header in front of b's current
// data.
func EncodeDataPCI(b *buffer.Buffer, p PCI) {
	hdr := b.PushPCI(DataPCILen)
	putPCI(hdr, p)
}

// PeekDataPCI reads the common 40-byte prefix without consuming it,
// for the engine's transit-forwarding check (spec §4.F step 1): a PDU
// not addressed to us is relayed with its header untouched.
func PeekDataPCI(b *buffer.Buffer) PCI {
	return getPCI(b.Data()[:DataPCILen])
}

// DecodeDataPCI pops the common 40-byte prefix off b and returns it.
// Callers must check IsControl(result.PDUType) and call
// DecodeControlExt if more header remains.
func DecodeDataPCI(b *buffer.Buffer) PCI {
	return getPCI(b.PopPCI(DataPCILen))
}

// EncodeControlPCI pushes a full control header (PCI prefix plus
// extension) in front of b's current data. The extension is pushed
// first so the final byte layout is [PCI][ControlExt][payload].
func EncodeControlPCI(b *buffer.Buffer, cp ControlPCI) {
	ext := b.PushPCI(ControlExtLen)
	putControlExt(ext, cp.ControlExt)
	hdr := b.PushPCI(DataPCILen)
	putPCI(hdr, cp.PCI)
}

// DecodeControlExt pops the 48-byte control extension off b (call
// only after DecodeDataPCI has already popped the common prefix and
// IsControl was true).
func DecodeControlExt(b *buffer.Buffer) ControlExt {
	return getControlExt(b.PopPCI(ControlExtLen))
}

func putPCI(hdr []byte, p PCI) {
	le := binary.LittleEndian
	le.PutUint64(hdr[0:8], p.DstAddr)
	le.PutUint64(hdr[8:16], p.SrcAddr)
	le.PutUint32(hdr[16:20], p.Conn.QosID)
	le.PutUint32(hdr[20:24], p.Conn.DstCEP)
	le.PutUint32(hdr[24:28], p.Conn.SrcCEP)
	hdr[28] = p.PDUType
	hdr[29] = p.PDUFlags
	hdr[30] = 0
	hdr[31] = 0
	le.PutUint64(hdr[32:40], p.SeqNum)
}

func getPCI(hdr []byte) PCI {
	le := binary.LittleEndian
	return PCI{
		DstAddr: le.Uint64(hdr[0:8]),
		SrcAddr: le.Uint64(hdr[8:16]),
		Conn: ConnID{
			QosID:  le.Uint32(hdr[16:20]),
			DstCEP: le.Uint32(hdr[20:24]),
			SrcCEP: le.Uint32(hdr[24:28]),
		},
		PDUType:  hdr[28],
		PDUFlags: hdr[29],
		SeqNum:   le.Uint64(hdr[32:40]),
	}
}

func putControlExt(ext []byte, c ControlExt) {
	le := binary.LittleEndian
	le.PutUint64(ext[0:8], c.LastCtrlSeqNumRcvd)
	le.PutUint64(ext[8:16], c.AckNackSeqNum)
	le.PutUint64(ext[16:24], c.NewRWE)
	le.PutUint64(ext[24:32], c.NewLWE)
	le.PutUint64(ext[32:40], c.MyRWE)
	le.PutUint64(ext[40:48], c.MyLWE)
}

func getControlExt(ext []byte) ControlExt {
	le := binary.LittleEndian
	return ControlExt{
		LastCtrlSeqNumRcvd: le.Uint64(ext[0:8]),
		AckNackSeqNum:      le.Uint64(ext[8:16]),
		NewRWE:             le.Uint64(ext[16:24]),
		NewLWE:             le.Uint64(ext[24:32]),
		MyRWE:              le.Uint64(ext[32:40]),
		MyLWE:              le.Uint64(ext[40:48]),
	}
}
