package dtp

import (
	"sync"
	"testing"
	"time"

	"github.com/rlite-go/normal/internal/buffer"
	"github.com/rlite-go/normal/internal/dtperr"
	"github.com/rlite-go/normal/internal/pci"
)

type recordingUpper struct {
	mu        sync.Mutex
	delivered [][]byte
}

func (u *recordingUpper) Deliver(b *buffer.Buffer) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	data := make([]byte, len(b.Data()))
	copy(data, b.Data())
	u.delivered = append(u.delivered, data)
	b.Free()
	return nil
}

func (u *recordingUpper) seqs() [][]byte {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.delivered
}

type recordingRouter struct {
	mu  sync.Mutex
	sdu []*buffer.Buffer
}

func (r *recordingRouter) RmtTx(destAddr uint64, b *buffer.Buffer, maySleep bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sdu = append(r.sdu, b)
	return nil
}

func (r *recordingRouter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sdu)
}

func simplePeerFlow(cfg Config) (*Flow, *recordingUpper, *recordingRouter) {
	upper := &recordingUpper{}
	router := &recordingRouter{}
	f := NewFlow(cfg, 1, 2, 10, 20, upper, router, nil)
	return f, upper, router
}

// S1: best-effort flow (no DTCP) delivers everything in order without
// any control traffic.
func TestBestEffortSendAndReceive(t *testing.T) {
	cfg := Config{}
	f, _, router := simplePeerFlow(cfg)

	if err := f.Write([]byte("hello"), false); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if router.count() != 1 {
		t.Fatalf("router got %d PDUs, want 1", router.count())
	}

	sent := router.sdu[0]
	hdr := pci.DecodeDataPCI(sent)
	if !hdr.DRF() {
		t.Fatal("first PDU should carry DRF")
	}
	if hdr.SeqNum != 0 {
		t.Fatalf("SeqNum = %d, want 0", hdr.SeqNum)
	}

	rf, rupper, _ := simplePeerFlow(cfg)
	if err := rf.ReceiveData(hdr, sent); err != nil {
		t.Fatalf("ReceiveData: %v", err)
	}
	if got := rupper.seqs(); len(got) != 1 || string(got[0]) != "hello" {
		t.Fatalf("delivered = %v", got)
	}
}

// Duplicate data below rcv_lwe is dropped, not redelivered.
func TestReceiveDuplicateDropped(t *testing.T) {
	cfg := Config{}
	rf, rupper, _ := simplePeerFlow(cfg)

	b1 := buffer.New([]byte("first"))
	pci.EncodeDataPCI(b1, pci.PCI{SeqNum: 0, PDUFlags: pci.FlagDRF})
	hdr1 := pci.DecodeDataPCI(b1)
	if err := rf.ReceiveData(hdr1, b1); err != nil {
		t.Fatalf("ReceiveData: %v", err)
	}

	b2 := buffer.New([]byte("dup"))
	pci.EncodeDataPCI(b2, pci.PCI{SeqNum: 0})
	hdr2 := pci.DecodeDataPCI(b2)
	if err := rf.ReceiveData(hdr2, b2); err != nil {
		t.Fatalf("ReceiveData (dup): %v", err)
	}

	got := rupper.seqs()
	if len(got) != 1 {
		t.Fatalf("delivered %d SDUs, want 1 (duplicate must be dropped)", len(got))
	}
}

// Out-of-order PDUs within max_sdu_gap resequence and deliver in
// seqnum order once the gap closes.
func TestReceiveResequencing(t *testing.T) {
	cfg := Config{MaxSDUGap: 5}
	rf, rupper, _ := simplePeerFlow(cfg)

	mk := func(seq uint64, drf bool, payload string) (pci.PCI, *buffer.Buffer) {
		b := buffer.New([]byte(payload))
		flags := byte(0)
		if drf {
			flags = pci.FlagDRF
		}
		pci.EncodeDataPCI(b, pci.PCI{SeqNum: seq, PDUFlags: flags})
		return pci.DecodeDataPCI(b), b
	}

	h0, b0 := mk(0, true, "zero")
	h2, b2 := mk(2, false, "two")
	h1, b1 := mk(1, false, "one")

	if err := rf.ReceiveData(h0, b0); err != nil {
		t.Fatalf("seq0: %v", err)
	}
	if err := rf.ReceiveData(h2, b2); err != nil {
		t.Fatalf("seq2: %v", err)
	}
	if got := rupper.seqs(); len(got) != 1 {
		t.Fatalf("seq2 arrived early should be parked, delivered = %v", got)
	}
	if err := rf.ReceiveData(h1, b1); err != nil {
		t.Fatalf("seq1: %v", err)
	}

	got := rupper.seqs()
	if len(got) != 3 {
		t.Fatalf("delivered %d SDUs after gap closed, want 3: %v", len(got), got)
	}
	if string(got[0]) != "zero" || string(got[1]) != "one" || string(got[2]) != "two" {
		t.Fatalf("delivery order = %v, want zero,one,two", got)
	}
}

// A gap beyond max_sdu_gap with no retransmission control is a hard
// drop.
func TestReceiveDropsBeyondMaxGap(t *testing.T) {
	cfg := Config{InOrderDelivery: true, MaxSDUGap: 1}
	rf, rupper, _ := simplePeerFlow(cfg)

	b := buffer.New([]byte("zero"))
	pci.EncodeDataPCI(b, pci.PCI{SeqNum: 0, PDUFlags: pci.FlagDRF})
	h0 := pci.DecodeDataPCI(b)
	if err := rf.ReceiveData(h0, b); err != nil {
		t.Fatalf("seq0: %v", err)
	}

	far := buffer.New([]byte("far"))
	pci.EncodeDataPCI(far, pci.PCI{SeqNum: 10})
	hFar := pci.DecodeDataPCI(far)
	if err := rf.ReceiveData(hFar, far); err != nil {
		t.Fatalf("far seq: %v", err)
	}

	if got := rupper.seqs(); len(got) != 1 {
		t.Fatalf("delivered %d SDUs, want 1 (far PDU must be dropped)", len(got))
	}
}

// Window flow control backpressures the sender once credit is
// exhausted, without consuming the offending buffer.
func TestWindowFlowControlBackpressure(t *testing.T) {
	cfg := Config{
		DTCPPresent: true,
		DTCP: DTCPConfig{
			FlowControl: true,
			FC:          FCConfig{Type: FCWindow, MaxCwqLen: 0, InitialCredit: 1},
		},
	}
	f, _, router := simplePeerFlow(cfg)

	if err := f.Write([]byte("a"), false); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := f.Write([]byte("b"), false); err != nil {
		t.Fatalf("second write: %v", err)
	}

	err := f.Write([]byte("c"), false)
	if err == nil {
		t.Fatal("expected BackPressure once window and cwq are exhausted")
	}
	if _, ok := err.(*dtperr.BackPressure); !ok {
		t.Fatalf("error type = %T, want *dtperr.BackPressure", err)
	}
	if router.count() != 2 {
		t.Fatalf("router saw %d PDUs, want 2 forwarded before backpressure", router.count())
	}
}

// An ACK draining the control path clears rtxq entries at or below
// the acked sequence number.
func TestControlAckDrainsRtxq(t *testing.T) {
	cfg := Config{
		DTCPPresent: true,
		DTCP:        DTCPConfig{RtxControl: true},
	}
	f, _, router := simplePeerFlow(cfg)

	for _, payload := range []string{"a", "b", "c"} {
		if err := f.Write([]byte(payload), false); err != nil {
			t.Fatalf("write %q: %v", payload, err)
		}
	}
	if f.RtxqLen() != 3 {
		t.Fatalf("RtxqLen() = %d, want 3", f.RtxqLen())
	}

	ack := buffer.NewEmpty()
	pci.EncodeControlPCI(ack, pci.ControlPCI{
		PCI: pci.PCI{PDUType: pci.CtrlMask | pci.CtrlACK, SeqNum: 0},
		ControlExt: pci.ControlExt{
			AckNackSeqNum: 1,
		},
	})
	hdr := pci.DecodeDataPCI(ack)
	ext := pci.DecodeControlExt(ack)
	if err := f.ReceiveControl(pci.ControlPCI{PCI: hdr, ControlExt: ext}, ack); err != nil {
		t.Fatalf("ReceiveControl: %v", err)
	}

	if f.RtxqLen() != 1 {
		t.Fatalf("RtxqLen() after ack(1) = %d, want 1 (only seq 2 should remain)", f.RtxqLen())
	}
	_ = router
}

// Timer exercises Arm/TryCancel's non-blocking outcomes.
func TestTimerTryCancelOutcomes(t *testing.T) {
	var tm Timer
	if got := tm.TryCancel(); got != Idle {
		t.Fatalf("TryCancel on unarmed timer = %v, want Idle", got)
	}

	tm.Arm(time.Hour, func() {})
	if got := tm.TryCancel(); got != WasActive {
		t.Fatalf("TryCancel on pending timer = %v, want WasActive", got)
	}
	if got := tm.TryCancel(); got != Idle {
		t.Fatalf("TryCancel after cancel = %v, want Idle", got)
	}

	done := make(chan struct{})
	tm.Arm(0, func() { <-done })
	// give the callback a moment to start running.
	for i := 0; i < 1000 && tm.TryCancel() != WasRunning; i++ {
		time.Sleep(time.Millisecond)
	}
	close(done)
}
