package dtp

import (
	"github.com/rlite-go/normal/internal/buffer"
	"github.com/rlite-go/normal/internal/pci"
)

// ReceiveData runs the data-PDU receive path (spec §4.F) against a
// buffer whose PCI prefix has already been decoded and popped by the
// caller (the engine's sdu_rx). hdr.SeqNum is the PDU's sequence
// number.
func (f *Flow) ReceiveData(hdr pci.PCI, b *buffer.Buffer) error {
	f.mu.Lock()

	if f.Cfg.DTCPPresent {
		f.rcvInactTmr.Arm(rcvInactPeriod, f.onRcvInactivity)
	}

	s := hdr.SeqNum
	var ctrl *buffer.Buffer
	var toDeliver []*buffer.Buffer

	switch {
	case hdr.DRF():
		f.flushSeqq()
		f.rcvLWE = s + 1
		f.maxSeqNumRcvd = int64(s)
		ctrl = f.svUpdate()
		f.mu.Unlock()
		f.deliver(b)
		return f.forwardCtrl(ctrl)

	case s < f.rcvLWE:
		b.Free()
		if f.Cfg.DTCP.FlowControl && f.rcvLWE > f.lastSndDataAck {
			ctrl = f.buildAckFC(f.rcvLWE)
			f.lastSndDataAck = f.rcvLWE
		}
		f.mu.Unlock()
		return f.forwardCtrl(ctrl)

	default:
		if s > uint64(f.maxSeqNumRcvd) {
			f.maxSeqNumRcvd = int64(s)
		}
		gap := s - f.rcvLWE

		// The engine carries no separate ack-delay ("A") policy, so
		// A_timer==0 always holds: a gap beyond max_sdu_gap is a
		// hard drop whenever in-order delivery or DTCP is in play
		// and retransmission control isn't there to recover it.
		drop := (f.Cfg.InOrderDelivery || f.Cfg.DTCPPresent) &&
			!f.Cfg.DTCP.RtxControl &&
			gap > f.Cfg.MaxSDUGap

		switch {
		case !drop && gap <= f.Cfg.MaxSDUGap:
			f.rcvLWE = s + 1
			for e := f.seqq.Front(); e != nil; {
				se := e.Value.(*seqEntry)
				if se.seq < f.rcvLWE {
					next := e.Next()
					se.buf.Free()
					f.seqq.Remove(e)
					e = next
					continue
				}
				if se.seq != f.rcvLWE && se.seq-f.rcvLWE > f.Cfg.MaxSDUGap {
					break
				}
				toDeliver = append(toDeliver, se.buf)
				f.rcvLWE = se.seq + 1
				next := e.Next()
				f.seqq.Remove(e)
				e = next
			}
			ctrl = f.svUpdate()
			f.mu.Unlock()
			f.deliver(b)
			for _, db := range toDeliver {
				f.deliver(db)
			}
			return f.forwardCtrl(ctrl)

		case drop:
			b.Free()
			ctrl = f.svUpdate()
			f.mu.Unlock()
			return f.forwardCtrl(ctrl)

		default: // within tolerance but out of order: resequence
			if f.seqqContains(s) {
				b.Free()
			} else {
				f.seqqInsertSorted(s, b)
			}
			ctrl = f.svUpdate()
			f.mu.Unlock()
			return f.forwardCtrl(ctrl)
		}
	}
}

func (f *Flow) deliver(b *buffer.Buffer) {
	if err := f.Upper.Deliver(b); err != nil && f.log != nil {
		f.log.Warningf("flow %s: delivery failed: %v", f.ID, err)
	}
}

func (f *Flow) onRcvInactivity() {
	if f.log != nil {
		f.log.Infof("flow %s: receiver inactivity timer fired", f.ID)
	}
}

// svUpdate assumes f.mu is held. It advances the announced receive
// window and, if this flow's DTCP config calls for one, builds the
// outbound ACK/FC control PDU. Returns nil if no control PDU is due.
func (f *Flow) svUpdate() *buffer.Buffer {
	if f.Cfg.DTCP.FlowControl && f.Cfg.DTCP.FC.Type == FCWindow {
		f.rcvRWE = f.rcvLWE + f.Cfg.DTCP.FC.InitialCredit
	}

	var pduType byte
	switch {
	case f.Cfg.DTCP.RtxControl && f.Cfg.DTCP.FlowControl:
		pduType = pci.CtrlMask | pci.CtrlACK | pci.CtrlFC
	case f.Cfg.DTCP.RtxControl:
		pduType = pci.CtrlMask | pci.CtrlACK
	case f.Cfg.DTCP.FlowControl:
		pduType = pci.CtrlMask | pci.CtrlFC
	default:
		return nil
	}
	return f.buildControl(pduType, f.rcvLWE-1)
}

func (f *Flow) buildAckFC(ack uint64) *buffer.Buffer {
	return f.buildControl(pci.CtrlMask|pci.CtrlACK|pci.CtrlFC, ack)
}

// buildControl assumes f.mu is held.
func (f *Flow) buildControl(pduType byte, ackSeq uint64) *buffer.Buffer {
	seq := f.nextSndCtlSeq
	f.nextSndCtlSeq++

	b := buffer.NewEmpty()
	pci.EncodeControlPCI(b, pci.ControlPCI{
		PCI: pci.PCI{
			DstAddr: f.RemoteAddr,
			SrcAddr: f.Addr,
			Conn: pci.ConnID{
				DstCEP: f.RemotePortNum,
				SrcCEP: f.LocalPortNum,
			},
			PDUType:  pduType,
			PDUFlags: 0,
			SeqNum:   seq,
		},
		ControlExt: pci.ControlExt{
			LastCtrlSeqNumRcvd: f.lastCtrlSeqNumRcvd,
			AckNackSeqNum:      ackSeq,
			NewRWE:             f.rcvRWE,
			NewLWE:             f.rcvLWE,
			MyRWE:              f.sndRWE,
			MyLWE:              f.sndLWE,
		},
	})
	return b
}

func (f *Flow) forwardCtrl(b *buffer.Buffer) error {
	if b == nil {
		return nil
	}
	return f.router.RmtTx(f.RemoteAddr, b, false)
}
