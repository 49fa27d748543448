package split

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPredicateSecondsFires(t *testing.T) {
	p := Predicate{Kind: PredicateSeconds, N: 1}
	start := uint64(1_000_000_000)

	assert.False(t, p.fires(start, 0, 0, start+1_000_000_000, true), "peek exactly at the boundary must not fire")
	assert.True(t, p.fires(start, 0, 0, start+1_000_000_000+1, true), "peek one ns past the boundary must fire")
}

func TestPredicateEventsFires(t *testing.T) {
	p := Predicate{Kind: PredicateEvents, N: 5}
	assert.False(t, p.fires(0, 4, 0, 0, true), "4 events appended must not satisfy a threshold of 5")
	assert.True(t, p.fires(0, 5, 0, 0, true), "5 events appended must satisfy a threshold of 5")
}

func TestPredicatePagesFires(t *testing.T) {
	p := Predicate{Kind: PredicatePages, N: 2}
	assert.False(t, p.fires(0, 0, 2, 0, true), "pagesFlushed == N must not fire (strictly greater required)")
	assert.True(t, p.fires(0, 0, 3, 0, true), "pagesFlushed > N must fire")
}

func TestPredicateNoneNeverFires(t *testing.T) {
	p := Predicate{Kind: PredicateNone}
	assert.False(t, p.fires(0, 1_000_000, 1_000, 1_000_000_000, true))
}

func TestPredicateRequiresPerCPU(t *testing.T) {
	assert.True(t, (Predicate{Kind: PredicatePages}).RequiresPerCPU())
	assert.False(t, (Predicate{Kind: PredicateEvents}).RequiresPerCPU())
}
