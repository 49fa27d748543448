package container

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/behrlich/tracesplit/internal/interfaces"
	"github.com/behrlich/tracesplit/internal/wire"
)

type sectionEntry struct {
	offset uint64
	length uint64
}

// Writer is a file-backed OutputTrace: it reserves the header region
// up front (its size depends on the cpu count and command-line block
// CopyHeaderFrom learns from the input), appends each chunk's per-CPU
// temp files via positional unix.Pread/Pwrite, and finalizes the
// header — including the section index — on Close, once every
// section's real offset and length is known.
type Writer struct {
	fd   int
	path string

	order     wire.Order
	bigEndian bool
	longSize  int
	pageSize  int
	clockName string
	cpuCount  int
	cmdLine   []byte

	sections   []sectionEntry
	dataOffset int64
}

// Create opens path for writing, truncating any existing file.
func Create(path string) (*Writer, error) {
	fd, err := unix.Open(path, unix.O_WRONLY|unix.O_CREAT|unix.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("container: create %s: %w", path, err)
	}
	return &Writer{fd: fd, path: path}, nil
}

// CopyHeaderFrom reads in's metadata (endianness, word size, page
// size, clock, CPU count, and — if in implements CommandLineProvider
// — its raw command-line option block) and reserves the header region
// for it, per spec.md §6's "copy_header_from(input, path,
// mode=CMD_LINES)": the option block is copied verbatim, never
// interpreted.
func (w *Writer) CopyHeaderFrom(in interfaces.InputTrace) error {
	w.bigEndian = in.BigEndian()
	w.longSize = in.LongSize()
	w.pageSize = in.PageSize()
	w.clockName = in.ClockName()
	w.cpuCount = in.CPUCount()
	w.order = wire.NewOrder(w.bigEndian)

	if cp, ok := in.(CommandLineProvider); ok {
		w.cmdLine = cp.CommandLine()
	}

	w.sections = make([]sectionEntry, w.cpuCount)
	headerSize := headerFixedSize + len(w.cmdLine) + w.cpuCount*sectionEntrySize
	w.dataOffset = int64(headerSize)

	reserved := make([]byte, headerSize)
	if _, err := unix.Pwrite(w.fd, reserved, 0); err != nil {
		return fmt.Errorf("container: %s: reserve header: %w", w.path, err)
	}
	return nil
}

// SetOutClock overrides the clock name written at Close, per spec.md
// §6's set_out_clock.
func (w *Writer) SetOutClock(name string) error {
	w.clockName = name
	return nil
}

// AppendCPUData copies each CPU's temp file (in CPU-index order, one
// entry per CPU even if a given chunk never routed a record there) to
// the end of the output's data region, recording its section offset
// and length. An empty path means that CPU contributed no pages this
// chunk; its section is zero-length (spec.md §6's append_cpu_data).
func (w *Writer) AppendCPUData(cpuFiles []string) error {
	if len(cpuFiles) != w.cpuCount {
		return fmt.Errorf("container: %s: append cpu data: got %d files, want %d", w.path, len(cpuFiles), w.cpuCount)
	}

	offset := w.dataOffset
	for c, path := range cpuFiles {
		var length int64
		if path != "" {
			n, err := copyFileInto(w.fd, offset, path)
			if err != nil {
				return fmt.Errorf("container: %s: cpu %d: %w", w.path, c, err)
			}
			length = n
		}
		w.sections[c] = sectionEntry{offset: uint64(offset), length: uint64(length)}
		offset += length
	}
	w.dataOffset = offset
	return nil
}

// copyFileInto copies src's full contents to fd at offset, reading and
// writing at fixed positions so it never disturbs either file's shared
// cursor (there isn't one — both ends use Pread/Pwrite throughout).
func copyFileInto(fd int, offset int64, src string) (int64, error) {
	sfd, err := unix.Open(src, unix.O_RDONLY, 0)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", src, err)
	}
	defer unix.Close(sfd)

	var stat unix.Stat_t
	if err := unix.Fstat(sfd, &stat); err != nil {
		return 0, fmt.Errorf("stat %s: %w", src, err)
	}

	buf := make([]byte, 1<<20)
	var total int64
	for total < stat.Size {
		n, err := unix.Pread(sfd, buf, total)
		if err != nil {
			return total, fmt.Errorf("read %s at %d: %w", src, total, err)
		}
		if n == 0 {
			break
		}
		if _, err := unix.Pwrite(fd, buf[:n], offset+total); err != nil {
			return total, fmt.Errorf("write at %d: %w", offset+total, err)
		}
		total += int64(n)
	}
	return total, nil
}

// Close finalizes the header — magic, flags, geometry, clock name,
// command line, and the now-complete section index — then closes the
// file descriptor.
func (w *Writer) Close() error {
	headerSize := headerFixedSize + len(w.cmdLine) + w.cpuCount*sectionEntrySize
	header := make([]byte, headerSize)

	copy(header[0:8], magic[:])
	w.order.PutU32(header[8:12], formatVersion)
	if w.bigEndian {
		header[12] = 1
	}
	header[13] = byte(w.longSize)
	header[14] = byte(interfaces.FileStateNormal)

	w.order.PutU32(header[16:20], uint32(w.pageSize))
	copy(header[20:20+clockNameField], []byte(w.clockName))
	w.order.PutU32(header[52:56], uint32(w.cpuCount))
	w.order.PutU32(header[56:60], uint32(len(w.cmdLine)))
	copy(header[60:60+len(w.cmdLine)], w.cmdLine)

	idxStart := headerFixedSize + len(w.cmdLine)
	for c, sec := range w.sections {
		off := idxStart + c*sectionEntrySize
		w.order.PutU64(header[off:off+8], sec.offset)
		w.order.PutU64(header[off+8:off+16], sec.length)
	}

	if _, err := unix.Pwrite(w.fd, header, 0); err != nil {
		return fmt.Errorf("container: %s: write header: %w", w.path, err)
	}
	return unix.Close(w.fd)
}

var _ interfaces.OutputTrace = (*Writer)(nil)
