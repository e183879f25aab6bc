package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMakeSortedPair(t *testing.T) {
	assert.Equal(t, Pair[NodeId, NodeId]{"a", "b"}, MakeSortedPair[NodeId]("b", "a"))
	assert.Equal(t, Pair[NodeId, NodeId]{"a", "b"}, MakeSortedPair[NodeId]("a", "b"))
	assert.Equal(t, Pair[int, int]{1, 1}, MakeSortedPair(1, 1))
}
