package ipcp

import (
	"github.com/rlite-go/normal/internal/buffer"
	"github.com/rlite-go/normal/internal/dtperr"
	"github.com/rlite-go/normal/internal/pci"
)

// MgmtAddrMode selects how a management SDU is addressed (grounded on
// original_source/kernel/rina-normal.c's RINA_MGMT_HDR_T_OUT_DST_ADDR
// / RINA_MGMT_HDR_T_OUT_LOCAL_PORT distinction).
type MgmtAddrMode int

const (
	// MgmtByDstAddr routes via the PDUFT toward DstAddr.
	MgmtByDstAddr MgmtAddrMode = iota
	// MgmtByLocalPort forwards directly out a specific local flow,
	// bypassing the PDUFT.
	MgmtByLocalPort
)

// MgmtHeader selects the addressing mode and target for
// MgmtSduWrite.
type MgmtHeader struct {
	Mode      MgmtAddrMode
	DstAddr   uint64
	LocalPort uint32
}

// MgmtSduWrite implements spec §6 mgmt_sdu_write: stamp buf as an
// MGMT PDU (seqnum and qos are meaningless for it) and forward it
// either by address (PDUFT lookup) or out a named local flow.
func (e *Engine) MgmtSduWrite(hdr MgmtHeader, payload []byte) error {
	b := buffer.New(payload)

	switch hdr.Mode {
	case MgmtByDstAddr:
		pci.EncodeDataPCI(b, pci.PCI{
			DstAddr:  hdr.DstAddr,
			SrcAddr:  e.Addr(),
			PDUType:  pci.TypeMGMT,
			PDUFlags: 0,
		})
		return e.router.RmtTx(hdr.DstAddr, b, false)

	case MgmtByLocalPort:
		e.flowsMu.RLock()
		flow, ok := e.flows[hdr.LocalPort]
		e.flowsMu.RUnlock()
		if !ok {
			b.Free()
			return &dtperr.InvalidArgument{Arg: "local_port", Reason: "no such flow"}
		}
		pci.EncodeDataPCI(b, pci.PCI{
			DstAddr:  flow.RemoteAddr,
			SrcAddr:  e.Addr(),
			PDUType:  pci.TypeMGMT,
			PDUFlags: 0,
		})
		return flow.SduWrite(b, false)

	default:
		b.Free()
		return &dtperr.InvalidArgument{Arg: "mgmt_hdr.mode", Reason: "unknown addressing mode"}
	}
}
