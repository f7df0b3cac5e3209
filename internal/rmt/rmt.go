// Package rmt implements the Relaying and Multiplexing forwarding
// step (spec.md §4.G rmt_tx): it resolves a destination address
// through the PDU Forwarding Table, delivers to self on loopback, and
// otherwise pushes the buffer into the resolved lower flow, retrying
// under backpressure either by blocking (maySleep) or by queueing
// onto the lower flow's own RMT queue.
//
// Modeled on the teacher's krd/enclave_client.go retry/dedup loop
// (tryRequest backed by an LRU of already-seen request ids): here the
// LRU instead suppresses repeated "no route" log spam for the same
// address, the way enclave_client suppressed repeat callbacks for an
// already-acked request.
package rmt

import (
	"context"

	lru "github.com/hashicorp/golang-lru"
	"github.com/op/go-logging"

	"github.com/rlite-go/normal/internal/buffer"
	"github.com/rlite-go/normal/internal/dtperr"
	"github.com/rlite-go/normal/internal/pduft"
)

// noRouteCacheSize bounds the no-route suppression cache; an address
// that keeps producing PDUs with no route logs once per this many
// distinct addresses' worth of churn, not once per PDU.
const noRouteCacheSize = 256

// LowerFlow is what the router needs from a PDUFT entry's owner to
// push a PDU through it.
type LowerFlow interface {
	pduft.FlowHandle
	SduWrite(b *buffer.Buffer, maySleep bool) error
	EnqueueRMT(b *buffer.Buffer)
	WaitForTxRoom(ctx context.Context) error
}

// SelfDeliverer lets the router detect and perform loopback delivery
// without importing the ipcp package.
type SelfDeliverer interface {
	Addr() uint64
	SduRx(b *buffer.Buffer) error
}

// Router is rmt_tx's receiver.
type Router struct {
	table *pduft.Table
	self  SelfDeliverer
	log   *logging.Logger

	noRouteSeen *lru.Cache
}

// New builds a Router over table, delivering loopback PDUs to self.
func New(table *pduft.Table, self SelfDeliverer, log *logging.Logger) *Router {
	c, _ := lru.New(noRouteCacheSize)
	return &Router{table: table, self: self, log: log, noRouteSeen: c}
}

// RmtTx implements spec §4.G: look up destAddr in the PDUFT; if
// absent and destAddr is our own address, deliver to self; if absent
// otherwise, free the buffer and return nil (the first miss per
// address is logged); if present, push through the lower flow,
// retrying under backpressure per maySleep.
func (r *Router) RmtTx(destAddr uint64, b *buffer.Buffer, maySleep bool) error {
	owner, ok := r.table.Lookup(destAddr)
	if !ok {
		if destAddr == r.self.Addr() {
			return r.self.SduRx(b)
		}
		if r.log != nil && r.noRouteSeen != nil {
			if _, seen := r.noRouteSeen.Get(destAddr); !seen {
				r.noRouteSeen.Add(destAddr, struct{}{})
				r.log.Warningf("no route to address %d, dropping PDU", destAddr)
			}
		}
		b.Free()
		return nil
	}

	lf, ok := owner.(LowerFlow)
	if !ok {
		b.Free()
		return &dtperr.InvalidArgument{Arg: "pduft entry", Reason: "owner does not implement LowerFlow"}
	}

	for {
		err := lf.SduWrite(b, maySleep)
		if err == nil {
			return nil
		}
		bp, isBackpressure := err.(*dtperr.BackPressure)
		if !isBackpressure {
			return err
		}
		if !maySleep {
			lf.EnqueueRMT(b)
			return nil
		}
		if werr := lf.WaitForTxRoom(context.Background()); werr != nil {
			return werr
		}
		_ = bp
	}
}
