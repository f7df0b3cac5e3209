// Package ipcp wires together the data transfer engine (internal/dtp),
// the forwarding layer (internal/rmt) and the PDU forwarding table
// (internal/pduft) into the external interface spec.md §6 describes:
// create/destroy, flow_init, sdu_write/sdu_rx, mgmt_sdu_write,
// config, and pduft_set/pduft_del.
package ipcp

import (
	"strconv"
	"sync"

	"github.com/op/go-logging"

	"github.com/rlite-go/normal/internal/buffer"
	"github.com/rlite-go/normal/internal/dtp"
	"github.com/rlite-go/normal/internal/dtperr"
	"github.com/rlite-go/normal/internal/metrics"
	"github.com/rlite-go/normal/internal/pci"
	"github.com/rlite-go/normal/internal/pduft"
	"github.com/rlite-go/normal/internal/rmt"
)

// Engine is one IPC process instance: an address, a PDU forwarding
// table, a router over it, and the set of locally terminated flows
// keyed by local port (= dst_cep on inbound PDUs).
type Engine struct {
	name string
	log  *logging.Logger

	mu   sync.RWMutex
	addr uint64

	table   *pduft.Table
	router  *rmt.Router
	metrics *metrics.Collector

	flowsMu sync.RWMutex
	flows   map[uint32]*dtp.Flow
}

// New creates an IPCP instance (spec §6 create). addr starts at 0;
// set it with Config("address", ...) before allocating flows.
func New(name string, log *logging.Logger) *Engine {
	e := &Engine{
		name:  name,
		log:   log,
		table: pduft.New(),
		flows: make(map[uint32]*dtp.Flow),
	}
	e.router = rmt.New(e.table, e, log)
	e.metrics = metrics.New("rina_ipcp", e.table.Len)
	if log != nil {
		log.Infof("ipcp %s: created", name)
	}
	return e
}

// Addr implements rmt.SelfDeliverer.
func (e *Engine) Addr() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.addr
}

// Metrics exposes the instance's prometheus.Collector for
// registration with a registry.
func (e *Engine) Metrics() *metrics.Collector {
	return e.metrics
}

// Destroy tears down every flow and route owned by this instance
// (spec §6 destroy).
func (e *Engine) Destroy() {
	e.flowsMu.Lock()
	defer e.flowsMu.Unlock()
	for port, f := range e.flows {
		e.table.Drain(&f.PduftList)
		e.metrics.Remove(f.ID.String())
		delete(e.flows, port)
		if e.log != nil {
			e.log.Infof("ipcp %s: flow %s (port %d) destroyed", e.name, f.ID, port)
		}
	}
	if e.log != nil {
		e.log.Infof("ipcp %s: destroyed", e.name)
	}
}

// Config applies a named configuration change (spec §6 config). The
// only recognised key is "address".
func (e *Engine) Config(name, value string) error {
	switch name {
	case "address":
		addr, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return &dtperr.InvalidArgument{Arg: "address", Reason: "not a decimal u64"}
		}
		if addr == 0 {
			return &dtperr.InvalidArgument{Arg: "address", Reason: "address 0 means unset"}
		}
		e.mu.Lock()
		e.addr = addr
		e.mu.Unlock()
		return nil
	default:
		return &dtperr.InvalidArgument{Arg: name, Reason: "unrecognised config key"}
	}
}

// FlowInit allocates and initialises a new locally terminated flow
// (spec §4.D / §6 flow_init). upper receives everything the flow
// delivers upward.
func (e *Engine) FlowInit(cfg dtp.Config, remoteAddr uint64, localPort, remotePort uint32, upper dtp.Upper) *dtp.Flow {
	f := dtp.NewFlow(cfg, e.Addr(), remoteAddr, localPort, remotePort, upper, e.router, e.log)

	e.flowsMu.Lock()
	e.flows[localPort] = f
	e.flowsMu.Unlock()

	e.metrics.Add(f.ID.String(), f)
	if e.log != nil {
		e.log.Infof("ipcp %s: flow %s created, local port %d remote port %d remote addr %d",
			e.name, f.ID, localPort, remotePort, remoteAddr)
	}
	return f
}

// FlowDeallocate removes a flow from the local table and drains any
// PDUFT entries routed through it.
func (e *Engine) FlowDeallocate(localPort uint32) {
	e.flowsMu.Lock()
	f, ok := e.flows[localPort]
	if ok {
		delete(e.flows, localPort)
	}
	e.flowsMu.Unlock()
	if !ok {
		return
	}
	e.table.Drain(&f.PduftList)
	e.metrics.Remove(f.ID.String())
	if e.log != nil {
		e.log.Infof("ipcp %s: flow %s (port %d) deallocated", e.name, f.ID, localPort)
	}
}

// PduftSet installs or re-targets the route to addr through owner,
// whose PDUFT back-reference list is list (spec §6 pduft_set). Any
// lower-flow kind can be an owner — a locally terminated dtp.Flow or
// a shim transport — as long as it satisfies pduft.FlowHandle and
// carries its own pduft.List.
func (e *Engine) PduftSet(addr uint64, owner pduft.FlowHandle, list *pduft.List) *pduft.Entry {
	return e.table.Set(addr, owner, list)
}

// PduftSetFlow is the common case of PduftSet for a locally
// terminated flow.
func (e *Engine) PduftSetFlow(addr uint64, flow *dtp.Flow) *pduft.Entry {
	return e.table.Set(addr, flow, &flow.PduftList)
}

// PduftDel removes a PDUFT entry (spec §6 pduft_del).
func (e *Engine) PduftDel(entry *pduft.Entry) {
	e.table.Del(entry)
}

// SduRx implements spec §4.F steps 1-3 and rmt.SelfDeliverer: decode
// the PCI, transit-forward if it's not addressed to us, look up the
// terminating flow by dst_cep, and dispatch to its data or control
// handler.
func (e *Engine) SduRx(b *buffer.Buffer) error {
	peek := pci.PeekDataPCI(b)
	if peek.DstAddr != e.Addr() {
		return e.router.RmtTx(peek.DstAddr, b, false)
	}

	hdr := pci.DecodeDataPCI(b)

	e.flowsMu.RLock()
	flow, ok := e.flows[hdr.Conn.DstCEP]
	e.flowsMu.RUnlock()
	if !ok {
		b.Free()
		return nil
	}

	if pci.IsControl(hdr.PDUType) {
		ext := pci.DecodeControlExt(b)
		return flow.ReceiveControl(pci.ControlPCI{PCI: hdr, ControlExt: ext}, b)
	}
	return flow.ReceiveData(hdr, b)
}
