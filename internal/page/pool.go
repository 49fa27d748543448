// Package page implements the Per-CPU Page Builder (spec.md §4.3): it
// assembles wire-encoded records into fixed-size ring-buffer pages,
// tracking the commit field and the MISSING_EVENTS/MISSING_STORED
// flags.
package page

import "sync"

// pool caches page-sized buffers for one page size, avoiding a fresh
// allocation per page. Captures only ever use one page size (read from
// their header), so a single bucket is enough; callers don't juggle
// multiple buckets the way a generic allocator would.
type pool struct {
	size int
	sp   sync.Pool
}

// newPool returns a pool of buffers sized exactly to pageSize.
func newPool(pageSize int) *pool {
	p := &pool{size: pageSize}
	p.sp.New = func() any {
		b := make([]byte, p.size)
		return &b
	}
	return p
}

// get returns a zeroed buffer of the pool's page size.
func (p *pool) get() []byte {
	buf := *(p.sp.Get().(*[]byte))
	for i := range buf {
		buf[i] = 0
	}
	return buf
}

// put returns buf to the pool. Buffers whose capacity doesn't match
// this pool's page size (e.g. from a since-resized capture) are
// dropped rather than pooled.
func (p *pool) put(buf []byte) {
	if cap(buf) != p.size {
		return
	}
	buf = buf[:cap(buf)]
	p.sp.Put(&buf)
}

// pagePools maps a page size to its buffer pool, created lazily since
// page size is a per-capture runtime value, not a compile-time one.
var (
	pagePoolsMu sync.Mutex
	pagePools   = map[int]*pool{}
)

// GetPageBuffer returns a zeroed, pooled buffer of exactly pageSize
// bytes. Callers must return it with PutPageBuffer when done.
func GetPageBuffer(pageSize int) []byte {
	pagePoolsMu.Lock()
	p, ok := pagePools[pageSize]
	if !ok {
		p = newPool(pageSize)
		pagePools[pageSize] = p
	}
	pagePoolsMu.Unlock()
	return p.get()
}

// PutPageBuffer returns buf to its size's pool.
func PutPageBuffer(buf []byte) {
	pagePoolsMu.Lock()
	p, ok := pagePools[cap(buf)]
	pagePoolsMu.Unlock()
	if !ok {
		return
	}
	p.put(buf)
}
