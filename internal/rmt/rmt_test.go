package rmt

import (
	"context"
	"testing"

	"github.com/rlite-go/normal/internal/buffer"
	"github.com/rlite-go/normal/internal/dtperr"
	"github.com/rlite-go/normal/internal/pduft"
)

type fakeLowerFlow struct {
	port        uint32
	PduftList   pduft.List
	sent        [][]byte
	backpressOn int // fail with BackPressure this many calls, then succeed
	enqueued    []*buffer.Buffer
}

func (f *fakeLowerFlow) LocalPort() uint32 { return f.port }

func (f *fakeLowerFlow) SduWrite(b *buffer.Buffer, maySleep bool) error {
	if f.backpressOn > 0 {
		f.backpressOn--
		return &dtperr.BackPressure{Flow: "fake"}
	}
	f.sent = append(f.sent, b.Data())
	return nil
}

func (f *fakeLowerFlow) EnqueueRMT(b *buffer.Buffer) {
	f.enqueued = append(f.enqueued, b)
}

func (f *fakeLowerFlow) WaitForTxRoom(ctx context.Context) error {
	f.backpressOn = 0
	return nil
}

type fakeSelf struct {
	addr     uint64
	received [][]byte
}

func (s *fakeSelf) Addr() uint64 { return s.addr }

func (s *fakeSelf) SduRx(b *buffer.Buffer) error {
	s.received = append(s.received, b.Data())
	return nil
}

func TestRmtTxLoopbackToSelf(t *testing.T) {
	table := pduft.New()
	self := &fakeSelf{addr: 42}
	r := New(table, self, nil)

	if err := r.RmtTx(42, buffer.New([]byte("hi")), false); err != nil {
		t.Fatalf("RmtTx: %v", err)
	}
	if len(self.received) != 1 || string(self.received[0]) != "hi" {
		t.Fatalf("self.received = %v", self.received)
	}
}

func TestRmtTxNoRouteDropsSilently(t *testing.T) {
	table := pduft.New()
	self := &fakeSelf{addr: 42}
	r := New(table, self, nil)

	if err := r.RmtTx(99, buffer.New([]byte("lost")), false); err != nil {
		t.Fatalf("RmtTx returned error for no-route case: %v", err)
	}
}

func TestRmtTxForwardsThroughLowerFlow(t *testing.T) {
	table := pduft.New()
	self := &fakeSelf{addr: 42}
	lf := &fakeLowerFlow{port: 1}
	table.Set(7, lf, &lf.PduftList)
	r := New(table, self, nil)

	if err := r.RmtTx(7, buffer.New([]byte("out")), false); err != nil {
		t.Fatalf("RmtTx: %v", err)
	}
	if len(lf.sent) != 1 || string(lf.sent[0]) != "out" {
		t.Fatalf("lf.sent = %v", lf.sent)
	}
}

func TestRmtTxNonBlockingBackpressureEnqueues(t *testing.T) {
	table := pduft.New()
	self := &fakeSelf{addr: 42}
	lf := &fakeLowerFlow{port: 1, backpressOn: 1}
	table.Set(7, lf, &lf.PduftList)
	r := New(table, self, nil)

	b := buffer.New([]byte("queued"))
	if err := r.RmtTx(7, b, false); err != nil {
		t.Fatalf("RmtTx: %v", err)
	}
	if len(lf.enqueued) != 1 {
		t.Fatalf("enqueued = %d PDUs, want 1", len(lf.enqueued))
	}
	if len(lf.sent) != 0 {
		t.Fatalf("sent = %d PDUs, want 0 (should have been enqueued, not sent)", len(lf.sent))
	}
}

func TestRmtTxBlockingBackpressureRetries(t *testing.T) {
	table := pduft.New()
	self := &fakeSelf{addr: 42}
	lf := &fakeLowerFlow{port: 1, backpressOn: 1}
	table.Set(7, lf, &lf.PduftList)
	r := New(table, self, nil)

	b := buffer.New([]byte("retried"))
	if err := r.RmtTx(7, b, true); err != nil {
		t.Fatalf("RmtTx: %v", err)
	}
	if len(lf.sent) != 1 || string(lf.sent[0]) != "retried" {
		t.Fatalf("lf.sent = %v, want one retried PDU to have gone through", lf.sent)
	}
}
