package container

// On-disk container layout, a simplified stand-in for the real
// trace-cmd file format referenced in
// original_source/tracecmd/trace-split.c: a fixed header, a copied
// command-line option block, a per-CPU section index, then the
// per-CPU page streams the core re-encoder produces (spec.md §6).
//
//	offset 0   : magic [8]byte
//	offset 8   : version   uint32
//	offset 12  : bigEndian byte (0 or 1)
//	offset 13  : longSize  byte (4 or 8)
//	offset 14  : fileState byte
//	offset 15  : reserved  byte
//	offset 16  : pageSize  uint32
//	offset 20  : clockName [32]byte, NUL-padded
//	offset 52  : cpuCount  uint32
//	offset 56  : cmdLineLen uint32
//	offset 60  : cmdLine   [cmdLineLen]byte
//	            : section index: cpuCount * {offset uint64, length uint64}
//	            : per-CPU page streams
//
// Only the bigEndian/longSize/fileState bytes are read before the
// codec's byte order is known, so they are single bytes rather than
// multi-byte fields; everything after them is decoded with
// wire.NewOrder(bigEndian).
const (
	formatVersion = 1

	headerFixedSize  = 60
	clockNameField   = 32
	sectionEntrySize = 16 // offset uint64 + length uint64
)

var magic = [8]byte{'T', 'R', 'C', 'S', 'P', 'L', 'T', '1'}
