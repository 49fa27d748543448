package container

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/behrlich/tracesplit/internal/constants"
	"github.com/behrlich/tracesplit/internal/interfaces"
	"github.com/behrlich/tracesplit/internal/wire"
)

// CommandLineProvider is an optional InputTrace extension. A Reader
// implements it so Writer.CopyHeaderFrom can copy the option block
// verbatim (spec.md §6, "copy options/metadata ... never interpreted
// by the core").
type CommandLineProvider interface {
	CommandLine() []byte
}

// Reader is a file-backed InputTrace, decoding the container format of
// format.go into per-CPU record slices up front and then serving reads
// through an in-memory Memory fixture — the same cursor/seek logic the
// test suite's fixtures use, layered under a real file descriptor
// opened with golang.org/x/sys/unix (in the register of the teacher's
// direct syscall use for queue I/O).
type Reader struct {
	fd      int
	path    string
	mem     *Memory
	cmdLine []byte
}

// Open reads path's header and every per-CPU page stream it indexes,
// decoding them into records via wire.DecodeRecordStream.
func Open(path string) (*Reader, error) {
	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("container: open %s: %w", path, err)
	}

	r, err := newReader(fd, path)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	return r, nil
}

func newReader(fd int, path string) (*Reader, error) {
	fixed := make([]byte, 20)
	if err := preadFull(fd, fixed, 0); err != nil {
		return nil, fmt.Errorf("container: %s: read header: %w", path, err)
	}
	if !bytes.Equal(fixed[0:8], magic[:]) {
		return nil, fmt.Errorf("container: %s: bad magic", path)
	}

	bigEndian := fixed[12] != 0
	longSize := int(fixed[13])
	fileState := interfaces.FileState(fixed[14])
	order := wire.NewOrder(bigEndian)
	pageSize := int(order.U32(fixed[16:20]))

	rest := make([]byte, clockNameField+8)
	if err := preadFull(fd, rest, 20); err != nil {
		return nil, fmt.Errorf("container: %s: read header: %w", path, err)
	}
	clockName := strings.TrimRight(string(rest[0:clockNameField]), "\x00")
	cpuCount := int(order.U32(rest[clockNameField : clockNameField+4]))
	cmdLineLen := int(order.U32(rest[clockNameField+4 : clockNameField+8]))

	var cmdLine []byte
	if cmdLineLen > 0 {
		cmdLine = make([]byte, cmdLineLen)
		if err := preadFull(fd, cmdLine, int64(headerFixedSize)); err != nil {
			return nil, fmt.Errorf("container: %s: read command line: %w", path, err)
		}
	}

	sectionIdxOffset := int64(headerFixedSize + cmdLineLen)
	sectionRaw := make([]byte, cpuCount*sectionEntrySize)
	if cpuCount > 0 {
		if err := preadFull(fd, sectionRaw, sectionIdxOffset); err != nil {
			return nil, fmt.Errorf("container: %s: read section index: %w", path, err)
		}
	}

	perCPU := make([][]Record, cpuCount)
	for c := 0; c < cpuCount; c++ {
		entry := sectionRaw[c*sectionEntrySize : (c+1)*sectionEntrySize]
		sectionOffset := order.U64(entry[0:8])
		sectionLength := order.U64(entry[8:16])

		raw := make([]byte, sectionLength)
		if sectionLength > 0 {
			if err := preadFull(fd, raw, int64(sectionOffset)); err != nil {
				return nil, fmt.Errorf("container: %s: cpu %d: read page stream: %w", path, c, err)
			}
		}

		recs, err := decodeCPUPages(order, longSize, pageSize, raw)
		if err != nil {
			return nil, fmt.Errorf("container: %s: cpu %d: %w", path, c, err)
		}
		perCPU[c] = recs
	}

	mem := NewMemory(pageSize, longSize, bigEndian, clockName, perCPU)
	mem.SetFileState(fileState)

	return &Reader{fd: fd, path: path, mem: mem, cmdLine: cmdLine}, nil
}

// decodeCPUPages decodes a CPU's raw page stream into records,
// inverting the Per-CPU Page Builder's on-disk layout (spec.md §6):
// each page's base timestamp and commit field bound a TLV record
// stream, decoded via wire.DecodeRecordStream, with any
// MISSING_STORED count attached to the page's first record.
func decodeCPUPages(order wire.Order, longSize, pageSize int, raw []byte) ([]Record, error) {
	headerBytes := constants.HeaderBytes(longSize)
	var out []Record

	for pageStart := 0; pageStart+pageSize <= len(raw); pageStart += pageSize {
		baseTS := order.U64(raw[pageStart : pageStart+8])

		var commit uint64
		commitOffset := pageStart + 8
		if longSize == 8 {
			commit = order.U64(raw[commitOffset : commitOffset+8])
		} else {
			commit = uint64(order.U32(raw[commitOffset : commitOffset+4]))
		}

		missingEvents := commit&constants.MissingEvents != 0
		missingStored := commit&constants.MissingStored != 0
		payloadBytes := int(commit &^ (constants.MissingEvents | constants.MissingStored))

		streamStart := pageStart + headerBytes
		streamEnd := streamStart + payloadBytes
		if streamEnd > len(raw) {
			return nil, fmt.Errorf("container: page at %d: commit length %d exceeds page bounds", pageStart, payloadBytes)
		}

		decoded, err := wire.DecodeRecordStream(order, raw[streamStart:pageStart+pageSize], baseTS, payloadBytes)
		if err != nil {
			return nil, fmt.Errorf("page at %d: %w", pageStart, err)
		}

		var missedEvents uint64
		if missingStored {
			missedEvents = order.U64(raw[streamEnd : streamEnd+8])
		}

		for i, d := range decoded {
			rec := Record{
				Timestamp:  d.Timestamp,
				Payload:    d.Payload,
				PayloadLen: uint16(d.PayloadLen),
				RecordSize: uint16(d.RecordSize),
				Offset:     uint64(len(out)),
			}
			if i == 0 && missingEvents {
				rec.MissedEvents = missedEvents
			}
			out = append(out, rec)
		}
	}

	return out, nil
}

func preadFull(fd int, buf []byte, offset int64) error {
	total := 0
	for total < len(buf) {
		n, err := unix.Pread(fd, buf[total:], offset+int64(total))
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("short read: got %d of %d bytes", total, len(buf))
		}
		total += n
	}
	return nil
}

func (r *Reader) CPUCount() int                   { return r.mem.CPUCount() }
func (r *Reader) PageSize() int                   { return r.mem.PageSize() }
func (r *Reader) LongSize() int                   { return r.mem.LongSize() }
func (r *Reader) BigEndian() bool                 { return r.mem.BigEndian() }
func (r *Reader) ClockName() string               { return r.mem.ClockName() }
func (r *Reader) FileState() interfaces.FileState { return r.mem.FileState() }
func (r *Reader) CommandLine() []byte             { return r.cmdLine }

func (r *Reader) SeekCPUToTimestamp(cpu int, ts uint64) error {
	return r.mem.SeekCPUToTimestamp(cpu, ts)
}

func (r *Reader) ReadNextRecord() (Record, int, bool, error) {
	return r.mem.ReadNextRecord()
}

func (r *Reader) ReadCPURecord(cpu int) (Record, bool, error) {
	return r.mem.ReadCPURecord(cpu)
}

func (r *Reader) ReadAtOffset(cpu int, offset uint64) (Record, bool, error) {
	return r.mem.ReadAtOffset(cpu, offset)
}

// Close releases the underlying file descriptor.
func (r *Reader) Close() error {
	return unix.Close(r.fd)
}

var (
	_ interfaces.InputTrace = (*Reader)(nil)
	_ CommandLineProvider   = (*Reader)(nil)
)
