package page_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gocorefs/corefs/internal/mmu"
	"github.com/gocorefs/corefs/internal/vm/page"
)

func TestTable_GetOrInsert_ReturnsSameEntryOnSecondCall(t *testing.T) {
	tab := page.NewTable()

	e1 := tab.GetOrInsert(0x1000)
	e2 := tab.GetOrInsert(0x1000)
	assert.Same(t, e1, e2)
	assert.Equal(t, page.LocationZero, e1.Location())
}

func TestTable_Get_ReturnsNilForMissingAddr(t *testing.T) {
	tab := page.NewTable()
	assert.Nil(t, tab.Get(0x2000))
}

func TestTable_InsertThenRemove(t *testing.T) {
	tab := page.NewTable()
	e := page.NewZeroFill(0x3000, false)

	tab.Insert(e)
	assert.Same(t, e, tab.Get(0x3000))

	removed := tab.Remove(0x3000)
	assert.Same(t, e, removed)
	assert.Nil(t, tab.Get(0x3000))
	assert.Nil(t, tab.Remove(0x3000))
}

func TestTable_All_ReturnsEveryTrackedEntry(t *testing.T) {
	tab := page.NewTable()
	tab.GetOrInsert(mmu.Addr(0x1000))
	tab.GetOrInsert(mmu.Addr(0x2000))

	all := tab.All()
	assert.Len(t, all, 2)
}
