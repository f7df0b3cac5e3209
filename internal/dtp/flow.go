// Package dtp implements the per-flow Data Transfer Protocol state
// machine (spec.md §3, §4.D-§4.F): sliding-window send/receive,
// optional DTCP reliability/flow-control overlay, the closed-window,
// retransmission and resequencing queues, and the inactivity timers
// that reset a flow's run state.
//
// A Flow is deliberately also a valid rmt "lower flow": its SduWrite
// is the one entry point used both when an upper caller submits an
// SDU and when the router descends through it as an N-1 provider,
// mirroring RINA's recursive layering (spec §9).
package dtp

import (
	"container/list"
	"context"
	"sync"

	"github.com/op/go-logging"

	"github.com/rlite-go/normal/internal/buffer"
	"github.com/rlite-go/normal/internal/dtperr"
	"github.com/rlite-go/normal/internal/flowid"
	"github.com/rlite-go/normal/internal/pduft"
)

// Upper is whatever sits above this flow: the application that owns
// it, or (for a nested IPCP) the next layer's engine.
type Upper interface {
	Deliver(b *buffer.Buffer) error
}

// Router is the minimal surface a Flow needs from the forwarding
// layer. Defined here (not imported from internal/rmt) so this
// package never depends on rmt; internal/rmt's *Router satisfies this
// interface structurally.
type Router interface {
	RmtTx(destAddr uint64, b *buffer.Buffer, maySleep bool) error
}

type rtxEntry struct {
	seq uint64
	buf *buffer.Buffer
}

type seqEntry struct {
	seq uint64
	buf *buffer.Buffer
}

// Flow holds one connection endpoint's complete DTP/DTCP state.
type Flow struct {
	ID            flowid.ID
	LocalPortNum  uint32
	RemotePortNum uint32
	RemoteAddr    uint64
	Addr          uint64 // this IPCP's own address, stamped as src_addr
	Cfg           Config

	Upper  Upper
	router Router
	log    *logging.Logger

	// PduftList is the reverse index of PDUFT entries that route to
	// this flow when it is used as a lower (N-1) flow.
	PduftList pduft.List

	mu sync.Mutex

	// sender state
	nextSeqNumToSend uint64
	sndLWE           uint64
	sndRWE           uint64
	lastSeqNumSent   int64 // -1 == none sent yet
	setDRF           bool
	cwq              *list.List
	cwqLen           int
	maxCwqLen        int
	rtxq             *list.List

	// receiver state
	rcvLWE         uint64
	rcvRWE         uint64
	maxSeqNumRcvd  int64 // -1 == none received yet
	lastSndDataAck uint64
	seqq           *list.List

	// control
	nextSndCtlSeq      uint64
	lastCtrlSeqNumRcvd uint64

	sndInactTmr Timer
	rcvInactTmr Timer

	rmtqMu sync.Mutex
	rmtq   *list.List
	rmtqLen int

	txWakeMu sync.Mutex
	txWake   chan struct{}
}

// NewFlow constructs and initialises a flow's DTP state (spec §4.D
// flow_init).
func NewFlow(cfg Config, ownAddr, remoteAddr uint64, localPort, remotePort uint32, upper Upper, router Router, log *logging.Logger) *Flow {
	f := &Flow{
		ID:             flowid.New(),
		LocalPortNum:   localPort,
		RemotePortNum:  remotePort,
		RemoteAddr:     remoteAddr,
		Addr:           ownAddr,
		Cfg:            cfg,
		Upper:          upper,
		router:         router,
		log:            log,
		setDRF:         true,
		lastSeqNumSent: -1,
		maxSeqNumRcvd:  -1,
		cwq:            list.New(),
		rtxq:           list.New(),
		seqq:           list.New(),
		rmtq:           list.New(),
		txWake:         make(chan struct{}),
	}
	if cfg.DTCP.FC.Type == FCWindow {
		f.maxCwqLen = cfg.DTCP.FC.MaxCwqLen
		f.sndRWE = cfg.DTCP.FC.InitialCredit
		f.rcvRWE = cfg.DTCP.FC.InitialCredit
	}
	return f
}

// LocalPort implements pduft.FlowHandle.
func (f *Flow) LocalPort() uint32 {
	return f.LocalPortNum
}

// WaitForTxRoom blocks until the flow's send window or rtxq budget
// may have changed (a control PDU advanced sndRWE, or the rtxq
// drained), or ctx is done. Used by the router's blocking retry path.
func (f *Flow) WaitForTxRoom(ctx context.Context) error {
	f.txWakeMu.Lock()
	ch := f.txWake
	f.txWakeMu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Flow) wakeWriters() {
	f.txWakeMu.Lock()
	close(f.txWake)
	f.txWake = make(chan struct{})
	f.txWakeMu.Unlock()
}

// EnqueueRMT appends b to the flow's RMT queue: buffers a
// non-blocking caller handed to the router while this flow was
// backpressured, to be retried once the window reopens.
func (f *Flow) EnqueueRMT(b *buffer.Buffer) {
	f.rmtqMu.Lock()
	f.rmtq.PushBack(b)
	f.rmtqLen++
	f.rmtqMu.Unlock()
}

// drainRMTQ retries queued RMT buffers in order, stopping at the
// first one that's still backpressured.
func (f *Flow) drainRMTQ() {
	for {
		f.rmtqMu.Lock()
		e := f.rmtq.Front()
		if e == nil {
			f.rmtqMu.Unlock()
			return
		}
		buf := e.Value.(*buffer.Buffer)
		f.rmtqMu.Unlock()

		err := f.SduWrite(buf, false)
		if err != nil {
			if _, backpressure := err.(*dtperr.BackPressure); backpressure {
				return
			}
		}

		f.rmtqMu.Lock()
		f.rmtq.Remove(e)
		f.rmtqLen--
		f.rmtqMu.Unlock()
	}
}

// CwqLen, RtxqLen, SeqqLen, RmtqLen, SndLWE, SndRWE, RcvLWE and RcvRWE
// implement internal/metrics.FlowSampler.
func (f *Flow) CwqLen() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cwqLen
}

func (f *Flow) RtxqLen() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rtxq.Len()
}

func (f *Flow) SeqqLen() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seqq.Len()
}

func (f *Flow) RmtqLen() int {
	f.rmtqMu.Lock()
	defer f.rmtqMu.Unlock()
	return f.rmtqLen
}

// SndLWE reports the sender's left window edge.
func (f *Flow) SndLWE() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sndLWE
}

// SndRWE reports the sender's right window edge (the peer's last
// announced credit).
func (f *Flow) SndRWE() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sndRWE
}

// RcvLWE reports the receiver's left window edge.
func (f *Flow) RcvLWE() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rcvLWE
}

// RcvRWE reports the receiver's right window edge (the credit this
// flow has announced to its peer).
func (f *Flow) RcvRWE() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rcvRWE
}

func (f *Flow) flushSeqq() {
	for e := f.seqq.Front(); e != nil; e = e.Next() {
		e.Value.(*seqEntry).buf.Free()
	}
	f.seqq.Init()
}

func (f *Flow) seqqContains(seq uint64) bool {
	for e := f.seqq.Front(); e != nil; e = e.Next() {
		if e.Value.(*seqEntry).seq == seq {
			return true
		}
	}
	return false
}

func (f *Flow) seqqInsertSorted(seq uint64, b *buffer.Buffer) {
	for e := f.seqq.Front(); e != nil; e = e.Next() {
		if e.Value.(*seqEntry).seq > seq {
			f.seqq.InsertBefore(&seqEntry{seq: seq, buf: b}, e)
			return
		}
	}
	f.seqq.PushBack(&seqEntry{seq: seq, buf: b})
}
