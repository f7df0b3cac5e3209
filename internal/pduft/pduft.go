// Package pduft implements the PDU Forwarding Table (spec.md §4.C):
// a hash map from destination address to a lower (N-1) flow, plus a
// reverse index of every entry pointing at a given flow so the flow
// can be torn down in O(#entries) without scanning the whole table.
//
// The cyclic-ownership shape spec.md §9 calls out (PDUFT entries
// reference flows, flows reference their PDUFT entries) is modeled
// as an intrusive doubly-linked List owned by each flow: the hash
// map is the sole authoritative owner, the flow's List holds raw
// back-pointers that pduft_del invalidates atomically.
package pduft

import "sync"

// FlowHandle is the minimal surface pduft needs from whatever a
// lower flow is, kept deliberately small so this package never needs
// to import the flow/dtp package (that package, in turn, embeds a
// pduft.List in its Flow type — importing pduft the other way would
// cycle).
type FlowHandle interface {
	LocalPort() uint32
}

// Entry is one address -> flow mapping. The fields below next/prev
// are the intrusive list linkage within the owning flow's List.
type Entry struct {
	Addr  uint64
	Owner FlowHandle

	list       *List
	next, prev *Entry
}

// List is the per-flow list of PDUFT entries pointing at it. Flow
// embeds one by value.
type List struct {
	head, tail *Entry
}

func (l *List) attach(e *Entry) {
	e.list = l
	e.prev = l.tail
	e.next = nil
	if l.tail != nil {
		l.tail.next = e
	} else {
		l.head = e
	}
	l.tail = e
}

func (l *List) detach(e *Entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		l.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		l.tail = e.prev
	}
	e.next, e.prev, e.list = nil, nil, nil
}

// Entries returns a snapshot slice of the list's entries, in
// attach order.
func (l *List) Entries() []*Entry {
	var out []*Entry
	for e := l.head; e != nil; e = e.next {
		out = append(out, e)
	}
	return out
}

// Table is the address -> entry hash map.
type Table struct {
	mu     sync.Mutex
	byAddr map[uint64]*Entry
}

// New returns an empty table.
func New() *Table {
	return &Table{byAddr: make(map[uint64]*Entry)}
}

// Set installs (or re-targets) the route to addr through owner,
// whose back-reference list is ownerList. If an entry for addr
// already exists it is detached from its current owner's list and
// reattached to ownerList — the table stays injective on addr
// (invariant 5) and every entry remains in exactly one flow's list
// (invariant 6). Idempotent: setting the same (addr, owner) again is
// a no-op beyond the reattach.
func (t *Table) Set(addr uint64, owner FlowHandle, ownerList *List) *Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.byAddr[addr]; ok {
		if e.list != nil {
			e.list.detach(e)
		}
		e.Owner = owner
		ownerList.attach(e)
		return e
	}

	e := &Entry{Addr: addr, Owner: owner}
	t.byAddr[addr] = e
	ownerList.attach(e)
	return e
}

// Del removes an entry from both the hash map and its owner's list.
func (t *Table) Del(e *Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.del(e)
}

func (t *Table) del(e *Entry) {
	if cur, ok := t.byAddr[e.Addr]; ok && cur == e {
		delete(t.byAddr, e.Addr)
	}
	if e.list != nil {
		e.list.detach(e)
	}
}

// Lookup resolves addr to its current owner, if any.
func (t *Table) Lookup(addr uint64) (FlowHandle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.byAddr[addr]
	if !ok {
		return nil, false
	}
	return e.Owner, true
}

// Drain removes every entry in a flow's list from the table, used
// on flow teardown.
func (t *Table) Drain(flowList *List) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range flowList.Entries() {
		t.del(e)
	}
}

// Len reports the number of routes currently installed, for metrics.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byAddr)
}
