package metadata_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/spaghettifunk/aurora/engine/renderer/metadata"
)

func TestHandleNil(t *testing.T) {
	c := qt.New(t)

	c.Assert(metadata.NilHandle.IsNil(), qt.IsTrue)
	c.Assert(metadata.Handle{}.IsNil(), qt.IsFalse)
	c.Assert(metadata.Handle{Index: metadata.InvalidIndex, Generation: 3}.IsNil(), qt.IsTrue)
}

func TestHandleString(t *testing.T) {
	c := qt.New(t)

	c.Assert(metadata.Handle{Index: 3, Generation: 2}.String(), qt.Equals, "handle(3.2)")
	c.Assert(metadata.NilHandle.String(), qt.Equals, "handle(nil)")
}
