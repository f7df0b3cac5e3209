package dtp

import (
	"github.com/rlite-go/normal/internal/buffer"
	"github.com/rlite-go/normal/internal/dtperr"
	"github.com/rlite-go/normal/internal/pci"
)

// Write builds a Buffer around payload and submits it (spec §4.E
// sdu_write, called from the application side).
func (f *Flow) Write(payload []byte, maySleep bool) error {
	return f.SduWrite(buffer.New(payload), maySleep)
}

// SduWrite runs the transmit path (spec §4.E) against an
// already-built buffer. It is also the entry point the router calls
// when this flow serves as a lower (N-1) flow, and the one EnqueueRMT
// retries use once the window may have reopened.
//
// On BackPressure the buffer is not consumed; on every other
// outcome — success, enqueued into cwq, or an error past the window
// check — ownership has passed out of the caller's hands.
func (f *Flow) SduWrite(b *buffer.Buffer, maySleep bool) error {
	f.mu.Lock()

	if f.Cfg.DTCPPresent {
		f.sndInactTmr.TryCancel()
	}

	if f.Cfg.DTCP.FC.Type == FCWindow &&
		f.nextSeqNumToSend > f.sndRWE &&
		f.cwqLen >= f.maxCwqLen {
		f.mu.Unlock()
		return &dtperr.BackPressure{Flow: f.ID.String()}
	}

	seq := f.nextSeqNumToSend
	f.nextSeqNumToSend++

	flags := byte(0)
	if f.setDRF {
		flags = pci.FlagDRF
	}
	f.setDRF = false

	pci.EncodeDataPCI(b, pci.PCI{
		DstAddr: f.RemoteAddr,
		SrcAddr: f.Addr,
		Conn: pci.ConnID{
			DstCEP: f.RemotePortNum,
			SrcCEP: f.LocalPortNum,
		},
		PDUType:  pci.TypeDT,
		PDUFlags: flags,
		SeqNum:   seq,
	})

	forward := true
	if !f.Cfg.DTCPPresent {
		f.sndLWE = f.nextSeqNumToSend
		f.lastSeqNumSent = int64(seq)
	} else {
		if f.Cfg.DTCP.FC.Type == FCWindow && seq > f.sndRWE {
			f.cwq.PushBack(b)
			f.cwqLen++
			forward = false
		} else {
			f.sndLWE = f.nextSeqNumToSend
			f.lastSeqNumSent = int64(seq)
		}

		// Cloning into rtxq only happens for PDUs actually leaving
		// now: a PDU parked in cwq hasn't been sent yet, so an rtxq
		// entry for it would have seqnum > last_seq_num_sent,
		// breaking the rtxq ordering invariant. It gets its rtxq
		// clone later, when the control handler drains it out of
		// cwq and it is actually forwarded.
		if forward && f.Cfg.DTCP.RtxControl {
			f.rtxq.PushBack(&rtxEntry{seq: seq, buf: b.Clone(false)})
		}

		f.sndInactTmr.Arm(sndInactPeriod, f.onSndInactivity)
	}

	f.mu.Unlock()

	if !forward {
		return nil
	}
	return f.router.RmtTx(f.RemoteAddr, b, maySleep)
}

func (f *Flow) onSndInactivity() {
	f.mu.Lock()
	f.setDRF = true
	f.nextSeqNumToSend = 0
	f.mu.Unlock()
	if f.log != nil {
		f.log.Infof("flow %s: sender inactivity timer fired, DRF reset", f.ID)
	}
}
