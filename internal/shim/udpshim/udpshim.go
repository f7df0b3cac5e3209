// Package udpshim implements a shim N-1 flow (spec.md §9) over a
// connected UDP socket: the simplest possible unreliable medium, used
// where no domain-specific transport library from the pack applies
// and standard library networking is the idiomatic choice (DESIGN.md
// documents this as the one component deliberately left on net/net).
package udpshim

import (
	"context"
	"net"
	"sync"

	"github.com/op/go-logging"

	"github.com/rlite-go/normal/internal/buffer"
	"github.com/rlite-go/normal/internal/dtp"
	"github.com/rlite-go/normal/internal/dtperr"
	"github.com/rlite-go/normal/internal/pduft"
)

const maxDatagram = 65507

// Flow is a shim lower flow backed by a connected UDP socket.
type Flow struct {
	localPort uint32
	conn      *net.UDPConn
	upper     dtp.Upper
	log       *logging.Logger

	// PduftList is the reverse index of PDUFT entries routed through
	// this shim flow, same role as dtp.Flow.PduftList.
	PduftList pduft.List

	stop chan struct{}
	wg   sync.WaitGroup
}

// New dials remoteAddr over UDP and starts a receive loop delivering
// datagrams to upper.
func New(localPort uint32, localAddr, remoteAddr *net.UDPAddr, upper dtp.Upper, log *logging.Logger) (*Flow, error) {
	conn, err := net.DialUDP("udp", localAddr, remoteAddr)
	if err != nil {
		return nil, err
	}
	f := &Flow{
		localPort: localPort,
		conn:      conn,
		upper:     upper,
		log:       log,
		stop:      make(chan struct{}),
	}
	f.wg.Add(1)
	go f.receiveLoop()
	return f, nil
}

func (f *Flow) Close() error {
	close(f.stop)
	err := f.conn.Close()
	f.wg.Wait()
	return err
}

// LocalPort implements pduft.FlowHandle / rmt.LowerFlow.
func (f *Flow) LocalPort() uint32 {
	return f.localPort
}

// SduWrite sends b's bytes as one datagram and frees b.
func (f *Flow) SduWrite(b *buffer.Buffer, maySleep bool) error {
	data := b.Data()
	_, err := f.conn.Write(data)
	b.Free()
	if err != nil {
		return &dtperr.TransportError{Reason: "udp write failed", Err: err}
	}
	return nil
}

// EnqueueRMT and WaitForTxRoom exist to satisfy rmt.LowerFlow; UDP
// writes never backpressure in this implementation so they're dead
// weight on the happy path, kept only for interface uniformity.
func (f *Flow) EnqueueRMT(b *buffer.Buffer) {
	b.Free()
	if f.log != nil {
		f.log.Warning("udpshim: dropping enqueued PDU, shim has no retry queue")
	}
}

func (f *Flow) WaitForTxRoom(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (f *Flow) receiveLoop() {
	defer f.wg.Done()
	buf := make([]byte, maxDatagram)
	for {
		n, err := f.conn.Read(buf)
		select {
		case <-f.stop:
			return
		default:
		}
		if err != nil {
			if f.log != nil {
				f.log.Warningf("udpshim: read failed: %v", err)
			}
			return
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])
		f.upper.Deliver(buffer.New(payload))
	}
}
