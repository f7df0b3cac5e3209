package names

import (
	"bytes"
	"testing"

	"github.com/rlite-go/normal/internal/dtperr"
)

func TestNameRoundTrip(t *testing.T) {
	n := Name{APN: []byte("app"), API: []byte("1"), AEN: []byte("ent"), AEI: []byte("2")}
	buf, err := EncodeName(nil, n)
	if err != nil {
		t.Fatalf("EncodeName: %v", err)
	}
	got, rest, err := DecodeName(buf)
	if err != nil {
		t.Fatalf("DecodeName: %v", err)
	}
	if len(rest) != 0 {
		t.Fatalf("rest = %v, want empty", rest)
	}
	if !bytes.Equal(got.APN, n.APN) || !bytes.Equal(got.API, n.API) ||
		!bytes.Equal(got.AEN, n.AEN) || !bytes.Equal(got.AEI, n.AEI) {
		t.Fatalf("decoded %+v, want %+v", got, n)
	}
}

func TestEncodeNameComponentTooLong(t *testing.T) {
	n := Name{APN: make([]byte, 256)}
	if _, err := EncodeName(nil, n); err == nil {
		t.Fatal("expected error for oversized component")
	} else if _, ok := err.(*dtperr.MalformedMessage); !ok {
		t.Fatalf("error type = %T, want *dtperr.MalformedMessage", err)
	}
}

func TestMessageRoundTripFlowAllocateRequest(t *testing.T) {
	prefix := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9}
	src := Name{APN: []byte("src")}
	dst := Name{APN: []byte("dst")}

	buf, err := EncodeMessage(MsgFlowAllocateRequest, prefix, []Name{src, dst})
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}
	gotPrefix, gotNames, err := DecodeMessage(MsgFlowAllocateRequest, buf)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if !bytes.Equal(gotPrefix, prefix) {
		t.Fatalf("prefix = %v, want %v", gotPrefix, prefix)
	}
	if len(gotNames) != 2 || string(gotNames[0].APN) != "src" || string(gotNames[1].APN) != "dst" {
		t.Fatalf("names = %+v", gotNames)
	}
}

func TestEncodeMessageWrongPrefixLen(t *testing.T) {
	_, err := EncodeMessage(MsgFlowDeallocate, []byte{1, 2, 3}, nil)
	if err == nil {
		t.Fatal("expected error for wrong prefix length")
	}
}

func TestEncodeMessageWrongNameCount(t *testing.T) {
	_, err := EncodeMessage(MsgRegisterApplication, nil, nil)
	if err == nil {
		t.Fatal("expected error for wrong name count")
	}
}

func TestDecodeMessageTrailingBytes(t *testing.T) {
	buf, _ := EncodeMessage(MsgFlowDeallocate, []byte{1, 2, 3, 4}, nil)
	buf = append(buf, 0xff)
	if _, _, err := DecodeMessage(MsgFlowDeallocate, buf); err == nil {
		t.Fatal("expected error for trailing bytes")
	}
}

func TestDecodeMessageUnknownType(t *testing.T) {
	if _, _, err := DecodeMessage(MessageType(99), nil); err == nil {
		t.Fatal("expected error for unknown message type")
	}
}
