package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

type fakeSampler struct {
	cwq, rtxq, seqq, rmtq              int
	sndLWE, sndRWE, rcvLWE, rcvRWE uint64
}

func (s fakeSampler) CwqLen() int      { return s.cwq }
func (s fakeSampler) RtxqLen() int     { return s.rtxq }
func (s fakeSampler) SeqqLen() int     { return s.seqq }
func (s fakeSampler) RmtqLen() int     { return s.rmtq }
func (s fakeSampler) SndLWE() uint64   { return s.sndLWE }
func (s fakeSampler) SndRWE() uint64   { return s.sndRWE }
func (s fakeSampler) RcvLWE() uint64   { return s.rcvLWE }
func (s fakeSampler) RcvRWE() uint64   { return s.rcvRWE }

func collect(c *Collector) []prometheus.Metric {
	ch := make(chan prometheus.Metric, 256)
	go func() {
		c.Collect(ch)
		close(ch)
	}()
	var out []prometheus.Metric
	for m := range ch {
		out = append(out, m)
	}
	return out
}

func TestCollectEmitsOneMetricPerFlowPerSample(t *testing.T) {
	c := New("rina_test", func() int { return 3 })
	c.Add("flow-1", fakeSampler{cwq: 1, rtxq: 2, seqq: 3, rmtq: 4})
	c.Add("flow-2", fakeSampler{})

	out := collect(c)
	// 1 pduft gauge + 2 flows * 8 samples each.
	if want := 1 + 2*8; len(out) != want {
		t.Fatalf("emitted %d metrics, want %d", len(out), want)
	}
}

func TestRemoveStopsReporting(t *testing.T) {
	c := New("rina_test2", func() int { return 0 })
	c.Add("flow-1", fakeSampler{})
	c.Remove("flow-1")

	out := collect(c)
	if len(out) != 1 {
		t.Fatalf("emitted %d metrics after Remove, want 1 (pduft only)", len(out))
	}
}

func TestDescribeEmitsAllDescriptors(t *testing.T) {
	c := New("rina_test3", func() int { return 0 })
	ch := make(chan *prometheus.Desc, 16)
	go func() {
		c.Describe(ch)
		close(ch)
	}()
	n := 0
	for range ch {
		n++
	}
	if n != 9 {
		t.Fatalf("Describe emitted %d descriptors, want 9 (pduft + 8 per-flow)", n)
	}
}
