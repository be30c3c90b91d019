package trace

import (
	"encoding/binary"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"sort"

	"golang.org/x/sys/unix"

	"github.com/jitterbench/jitterbench/internal/flowkey"
)

// shuffleSeed fixes the PRNG used by the three-way flow-key shuffle so
// that loading the same trace file always produces the same scrambled
// flow ordering.
const shuffleSeed = 0x5A17E8ED

// Load reads a binary packet-record file and returns its records in file
// order, with flow keys overwritten by the deterministic three-way
// shuffle described in spec.md §6.
//
// A truncated final record is silently dropped (the read loop simply
// stops); an unreadable file yields an empty, non-error record set,
// matching spec.md §7.4 -- the run completes with zero events rather
// than failing.
func Load(path string) ([]Record, error) {
	f, err := os.Open(path) //nolint:gosec
	if err != nil {
		return nil, nil //nolint:nilerr // unreadable trace is non-fatal by design
	}
	defer func() { _ = f.Close() }()

	data, release, err := mapOrRead(f)
	if err != nil {
		return nil, nil //nolint:nilerr
	}
	defer release()

	records := decodeRecords(data)
	shuffleFlowKeys(records)

	return records, nil
}

// mapOrRead mmaps the file read-only when it is a regular file (mirroring
// the teacher's LoadBinaryCache mmap-then-validate approach in
// cache_binary.go, repurposed here for the 22-byte trace record layout),
// falling back to a buffered read for non-regular inputs such as pipes,
// which cannot be mmapped.
func mapOrRead(f *os.File) (data []byte, release func(), err error) {
	info, statErr := f.Stat()
	if statErr == nil && info.Mode().IsRegular() && info.Size() > 0 {
		mapped, mmapErr := unix.Mmap(int(f.Fd()), 0, int(info.Size()), unix.PROT_READ, unix.MAP_SHARED)
		if mmapErr == nil {
			return mapped, func() { _ = unix.Munmap(mapped) }, nil
		}
	}

	buf, readErr := io.ReadAll(f)
	if readErr != nil {
		return nil, func() {}, readErr
	}
	return buf, func() {}, nil
}

func decodeRecords(data []byte) []Record {
	n := len(data) / RecordSize
	records := make([]Record, 0, n)

	for off := 0; off+RecordSize <= len(data); off += RecordSize {
		chunk := data[off : off+RecordSize]

		srcIP := binary.LittleEndian.Uint32(chunk[0:4])
		dstIP := binary.LittleEndian.Uint32(chunk[4:8])
		srcPort := binary.LittleEndian.Uint16(chunk[8:10])
		dstPort := binary.LittleEndian.Uint16(chunk[10:12])
		protocol := chunk[12]
		tsSecondsBits := binary.LittleEndian.Uint64(chunk[13:21])
		flag := chunk[21]

		tsSeconds := math.Float64frombits(tsSecondsBits)
		tsUs := uint64(tsSeconds * 1e6)

		records = append(records, Record{
			Key:         flowkey.New(srcIP, dstIP, srcPort, dstPort, protocol),
			TimestampUs: tsUs,
			Flag:        flag,
		})
	}

	return records
}

// shuffleFlowKeys implements spec.md §6's loader shuffle: collect every
// record's flow key into an auxiliary vector, sort it, permute it in
// three equal contiguous thirds with a fixed-seed shuffle, then write
// each permuted value back at its original index.
func shuffleFlowKeys(records []Record) {
	n := len(records)
	if n == 0 {
		return
	}

	aux := make([]flowkey.FlowKey, n)
	for i, r := range records {
		aux[i] = r.Key
	}

	sort.Slice(aux, func(i, j int) bool {
		return aux[i].Less(aux[j])
	})

	third := n / 3
	bounds := [4]int{0, third, 2 * third, n}

	rng := rand.New(rand.NewPCG(shuffleSeed, shuffleSeed))
	for part := 0; part < 3; part++ {
		lo, hi := bounds[part], bounds[part+1]
		shuffleRange(aux[lo:hi], rng)
	}

	for i := range records {
		records[i].replaceFlowKey(aux[i])
	}
}

func shuffleRange(s []flowkey.FlowKey, rng *rand.Rand) {
	for i := len(s) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		s[i], s[j] = s[j], s[i]
	}
}
