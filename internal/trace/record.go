// Package trace loads the binary packet-record file described in
// spec.md §6 and applies the deterministic flow-key shuffle used to seed
// detectors under a controlled input distribution.
package trace

import "github.com/jitterbench/jitterbench/internal/flowkey"

// RecordSize is the on-disk length of one record, in bytes.
const RecordSize = 22

// Record is one packet observation: a flow key, a microsecond timestamp,
// and a one-byte flag carried through from the trace file.
//
// Record is produced only at load time; it is never mutated afterward
// except via replaceFlowKey during the loader's synthetic shuffle.
type Record struct {
	Key         flowkey.FlowKey
	TimestampUs uint64
	Flag        uint8
}

// replaceFlowKey overwrites r's flow key in place. Unexported: the only
// caller is the loader's shuffle step; application code never mutates a
// Record after Load returns.
func (r *Record) replaceFlowKey(k flowkey.FlowKey) {
	r.Key = k
}
