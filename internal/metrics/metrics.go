// Package metrics exports engine-wide gauges through a
// prometheus.Collector, following the {description, supplier} table
// plus mutex-guarded Add/Remove registry shape of the teacher pack's
// exporter.TCPInfoCollector (runZeroInc-conniver/pkg/exporter). Here
// the "connections" being tracked are flows, and the sampled state is
// DTP/PDUFT counters instead of TCP_INFO.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// FlowSampler is read under the collector's lock on every scrape;
// implementations must not block.
type FlowSampler interface {
	CwqLen() int
	RtxqLen() int
	SeqqLen() int
	RmtqLen() int
	SndLWE() uint64
	SndRWE() uint64
	RcvLWE() uint64
	RcvRWE() uint64
}

type sample struct {
	description *prometheus.Desc
	supplier    func(FlowSampler, []string) prometheus.Metric
}

// Collector reports per-flow queue depths and the PDUFT's size.
type Collector struct {
	mu    sync.Mutex
	flows map[string]flowEntry
	pduft func() int

	samples  []sample
	pduftDesc *prometheus.Desc
}

type flowEntry struct {
	sampler FlowSampler
	labels  []string
}

// New builds a Collector. pduftLen is polled on every scrape to
// report the PDUFT's current entry count.
func New(namespace string, pduftLen func() int) *Collector {
	variableLabels := []string{"flow_id"}
	c := &Collector{
		flows: make(map[string]flowEntry),
		pduft: pduftLen,
		pduftDesc: prometheus.NewDesc(
			namespace+"_pduft_entries", "Number of routes installed in the PDU forwarding table.", nil, nil),
	}
	c.samples = []sample{
		{
			description: prometheus.NewDesc(namespace+"_flow_cwq_len", "Closed-window queue length.", variableLabels, nil),
			supplier: func(s FlowSampler, labels []string) prometheus.Metric {
				return prometheus.MustNewConstMetric(c.samples[0].description, prometheus.GaugeValue, float64(s.CwqLen()), labels...)
			},
		},
		{
			description: prometheus.NewDesc(namespace+"_flow_rtxq_len", "Retransmission queue length.", variableLabels, nil),
			supplier: func(s FlowSampler, labels []string) prometheus.Metric {
				return prometheus.MustNewConstMetric(c.samples[1].description, prometheus.GaugeValue, float64(s.RtxqLen()), labels...)
			},
		},
		{
			description: prometheus.NewDesc(namespace+"_flow_seqq_len", "Resequencing queue length.", variableLabels, nil),
			supplier: func(s FlowSampler, labels []string) prometheus.Metric {
				return prometheus.MustNewConstMetric(c.samples[2].description, prometheus.GaugeValue, float64(s.SeqqLen()), labels...)
			},
		},
		{
			description: prometheus.NewDesc(namespace+"_flow_rmtq_len", "RMT retry queue length.", variableLabels, nil),
			supplier: func(s FlowSampler, labels []string) prometheus.Metric {
				return prometheus.MustNewConstMetric(c.samples[3].description, prometheus.GaugeValue, float64(s.RmtqLen()), labels...)
			},
		},
		{
			description: prometheus.NewDesc(namespace+"_flow_snd_lwe", "Sender left window edge.", variableLabels, nil),
			supplier: func(s FlowSampler, labels []string) prometheus.Metric {
				return prometheus.MustNewConstMetric(c.samples[4].description, prometheus.GaugeValue, float64(s.SndLWE()), labels...)
			},
		},
		{
			description: prometheus.NewDesc(namespace+"_flow_snd_rwe", "Sender right window edge.", variableLabels, nil),
			supplier: func(s FlowSampler, labels []string) prometheus.Metric {
				return prometheus.MustNewConstMetric(c.samples[5].description, prometheus.GaugeValue, float64(s.SndRWE()), labels...)
			},
		},
		{
			description: prometheus.NewDesc(namespace+"_flow_rcv_lwe", "Receiver left window edge.", variableLabels, nil),
			supplier: func(s FlowSampler, labels []string) prometheus.Metric {
				return prometheus.MustNewConstMetric(c.samples[6].description, prometheus.GaugeValue, float64(s.RcvLWE()), labels...)
			},
		},
		{
			description: prometheus.NewDesc(namespace+"_flow_rcv_rwe", "Receiver right window edge.", variableLabels, nil),
			supplier: func(s FlowSampler, labels []string) prometheus.Metric {
				return prometheus.MustNewConstMetric(c.samples[7].description, prometheus.GaugeValue, float64(s.RcvRWE()), labels...)
			},
		},
	}
	return c
}

func (c *Collector) Describe(descs chan<- *prometheus.Desc) {
	descs <- c.pduftDesc
	for _, s := range c.samples {
		descs <- s.description
	}
}

func (c *Collector) Collect(out chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pduft != nil {
		out <- prometheus.MustNewConstMetric(c.pduftDesc, prometheus.GaugeValue, float64(c.pduft()))
	}
	for _, entry := range c.flows {
		for _, s := range c.samples {
			out <- s.supplier(entry.sampler, entry.labels)
		}
	}
}

// Add registers a flow (keyed by its id) for scraping.
func (c *Collector) Add(flowID string, sampler FlowSampler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flows[flowID] = flowEntry{sampler: sampler, labels: []string{flowID}}
}

// Remove drops a flow from the scrape set, called on teardown.
func (c *Collector) Remove(flowID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.flows, flowID)
}
