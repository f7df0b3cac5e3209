package dtp

import (
	"fmt"

	"github.com/rlite-go/normal/internal/buffer"
	"github.com/rlite-go/normal/internal/dtperr"
	"github.com/rlite-go/normal/internal/pci"
)

// ReceiveControl runs the control-PDU handler (spec §4.F
// sdu_rx_ctrl). cp's PCI prefix and control extension have already
// been popped off b by the caller; b carries no payload of its own
// and is always freed here.
func (f *Flow) ReceiveControl(cp pci.ControlPCI, b *buffer.Buffer) error {
	defer b.Free()

	if !pci.IsControl(cp.PDUType) {
		return nil
	}

	f.mu.Lock()

	if f.lastCtrlSeqNumRcvd != 0 && cp.SeqNum <= f.lastCtrlSeqNumRcvd {
		f.mu.Unlock()
		return nil // duplicate or stale control PDU
	}
	if cp.SeqNum > f.lastCtrlSeqNumRcvd+1 && f.log != nil {
		f.log.Warningf("flow %s: lost control PDU(s), expected %d got %d",
			f.ID, f.lastCtrlSeqNumRcvd+1, cp.SeqNum)
	}
	f.lastCtrlSeqNumRcvd = cp.SeqNum

	var drained []*rtxEntry

	if cp.PDUType&pci.CtrlFC != 0 {
		if cp.NewRWE < f.sndRWE {
			broken := &dtperr.BrokenPeer{Reason: fmt.Sprintf(
				"new_rwe %d below current snd_rwe %d", cp.NewRWE, f.sndRWE)}
			if f.log != nil {
				f.log.Warningf("flow %s: %s, ignoring", f.ID, broken)
			}
		} else {
			f.sndRWE = cp.NewRWE
			for f.cwq.Len() > 0 && f.sndLWE < f.sndRWE {
				e := f.cwq.Front()
				buf := e.Value.(*buffer.Buffer)
				f.cwq.Remove(e)
				f.cwqLen--

				seq := f.sndLWE
				f.lastSeqNumSent = int64(seq)
				f.sndLWE++

				if f.Cfg.DTCP.RtxControl {
					f.rtxq.PushBack(&rtxEntry{seq: seq, buf: buf.Clone(false)})
				}
				drained = append(drained, &rtxEntry{seq: seq, buf: buf})
			}
		}
	}

	if cp.PDUType&pci.CtrlACK != 0 {
		for e := f.rtxq.Front(); e != nil; {
			re := e.Value.(*rtxEntry)
			if re.seq > cp.AckNackSeqNum {
				break
			}
			re.buf.Free()
			next := e.Next()
			f.rtxq.Remove(e)
			e = next
		}
	}

	if cp.PDUType&(pci.CtrlNACK|pci.CtrlSACK|pci.CtrlSNACK) != 0 && f.log != nil {
		f.log.Warningf("flow %s: NACK/SACK/SNACK control PDU (type %#x) unsupported, ignoring",
			f.ID, cp.PDUType)
	}

	f.mu.Unlock()

	for _, d := range drained {
		f.router.RmtTx(f.RemoteAddr, d.buf, false)
	}
	f.wakeWriters()
	f.drainRMTQ()
	return nil
}
