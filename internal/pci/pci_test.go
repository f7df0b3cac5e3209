package pci

import (
	"testing"

	"github.com/rlite-go/normal/internal/buffer"
)

func TestDataPCIRoundTrip(t *testing.T) {
	b := buffer.New([]byte("payload"))
	want := PCI{
		DstAddr:  100,
		SrcAddr:  200,
		Conn:     ConnID{QosID: 1, DstCEP: 2, SrcCEP: 3},
		PDUType:  TypeDT,
		PDUFlags: FlagDRF,
		SeqNum:   42,
	}
	EncodeDataPCI(b, want)

	peeked := PeekDataPCI(b)
	if peeked != want {
		t.Fatalf("PeekDataPCI = %+v, want %+v", peeked, want)
	}
	if b.Len() != DataPCILen+len("payload") {
		t.Fatalf("peek consumed header, Len() = %d", b.Len())
	}

	got := DecodeDataPCI(b)
	if got != want {
		t.Fatalf("DecodeDataPCI = %+v, want %+v", got, want)
	}
	if string(b.Data()) != "payload" {
		t.Fatalf("Data() after decode = %q", b.Data())
	}
	if !got.DRF() {
		t.Fatal("DRF() = false, want true")
	}
}

func TestControlPCIRoundTrip(t *testing.T) {
	b := buffer.New(nil)
	want := ControlPCI{
		PCI: PCI{
			DstAddr: 1, SrcAddr: 2,
			PDUType: CtrlMask | CtrlACK,
			SeqNum:  7,
		},
		ControlExt: ControlExt{
			LastCtrlSeqNumRcvd: 5,
			AckNackSeqNum:      6,
			NewRWE:             100,
			NewLWE:             50,
			MyRWE:              200,
			MyLWE:              10,
		},
	}
	EncodeControlPCI(b, want)

	gotPCI := DecodeDataPCI(b)
	if !IsControl(gotPCI.PDUType) {
		t.Fatal("IsControl = false for encoded control PDU")
	}
	gotExt := DecodeControlExt(b)
	if gotPCI != want.PCI {
		t.Fatalf("decoded PCI = %+v, want %+v", gotPCI, want.PCI)
	}
	if gotExt != want.ControlExt {
		t.Fatalf("decoded ControlExt = %+v, want %+v", gotExt, want.ControlExt)
	}
}

func TestIsControl(t *testing.T) {
	if IsControl(TypeDT) {
		t.Fatal("IsControl(TypeDT) = true")
	}
	if !IsControl(CtrlMask | CtrlFC) {
		t.Fatal("IsControl(CtrlMask|CtrlFC) = false")
	}
}
