package cp

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestDomainBasics(t *testing.T) {
	assert := assert.New(t)

	d := domain{lo: 0, hi: 9}
	assert.Equal(int64(10), d.size())
	assert.False(d.fixed())
	assert.True(d.contains(5))

	assert.True(d.removeValue(5))
	assert.False(d.removeValue(5))
	assert.False(d.contains(5))
	assert.Equal(int64(9), d.size())

	// endpoint removal moves the bound over existing holes
	assert.True(d.removeValue(4))
	assert.True(d.removeValue(3))
	d2 := d.clone()
	assert.True(d.tightenLo(3))
	assert.Equal(int64(6), d.lo)

	// the clone is independent
	assert.True(d2.contains(6))
	assert.Equal(int64(0), d2.lo)

	assert.True(d.tightenHi(6))
	assert.True(d.fixed())
	assert.Equal(int64(6), d.value())

	assert.True(d.removeValue(6))
	assert.True(d.empty())
}

func TestDomainNext(t *testing.T) {
	assert := assert.New(t)

	d := domain{lo: 0, hi: 5}
	d.removeValue(1)
	d.removeValue(2)

	assert.Equal(int64(0), d.next(0))
	assert.Equal(int64(3), d.next(1))
	assert.Equal(int64(3), d.next(3))
	assert.Equal(int64(6), d.next(6)) // exhausted
}

func TestLitState(t *testing.T) {
	assert := assert.New(t)

	m := NewModel()
	b := m.NewBoolVar("b")
	doms := newDomainStore(m)

	assert.Equal(-1, doms.litState(b.Index()))
	assert.True(doms.setLit(b.Index(), true))
	assert.Equal(1, doms.litState(b.Index()))
	assert.Equal(0, doms.litState(b.Not().Index()))
}

func TestFloorCeilDiv(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(int64(2), floorDiv(7, 3))
	assert.Equal(int64(-3), floorDiv(-7, 3))
	assert.Equal(int64(3), ceilDiv(7, 3))
	assert.Equal(int64(-2), ceilDiv(-7, 3))
	assert.Equal(int64(2), floorDiv(6, 3))
	assert.Equal(int64(2), ceilDiv(6, 3))
}
