package containers_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/spaghettifunk/aurora/engine/containers"
)

func TestFreeListLIFO(t *testing.T) {
	c := qt.New(t)
	fl := containers.NewFreeList()

	_, ok := fl.Pop()
	c.Assert(ok, qt.IsFalse)

	fl.Push(3)
	fl.Push(7)
	fl.Push(1)
	c.Assert(fl.Len(), qt.Equals, 3)

	for _, want := range []uint32{1, 7, 3} {
		got, ok := fl.Pop()
		c.Assert(ok, qt.IsTrue)
		c.Assert(got, qt.Equals, want)
	}
	c.Assert(fl.Len(), qt.Equals, 0)
}
