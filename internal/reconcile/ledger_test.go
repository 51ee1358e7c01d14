package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Skotchmaster/shopfront/internal/remote"
)

func TestLedger_AbortKeepsOtherPendingEntries(t *testing.T) {
	l := NewLedger(10)
	add := func(n int) func(int) int { return func(v int) int { return v + n } }

	first := l.Begin(add(1))
	second := l.Begin(add(100))
	assert.Equal(t, 111, l.View())

	assert.True(t, l.Abort(first))
	assert.Equal(t, 110, l.View())
	assert.Equal(t, 10, l.Confirmed())

	assert.True(t, l.Commit(second))
	assert.Equal(t, 110, l.Confirmed())
	assert.Zero(t, l.Pending())
	assert.False(t, l.Commit(second))
}

func TestLedger_ResetKeepsPendingDiscardDoesNot(t *testing.T) {
	l := NewLedger(0)
	l.Begin(func(v int) int { return v + 1 })

	l.Reset(5)
	assert.Equal(t, 6, l.View())

	l.Discard(7)
	assert.Equal(t, 7, l.View())
	assert.Zero(t, l.Pending())
}

func TestNotices_BoundedAndDismissable(t *testing.T) {
	n := NewNotices(2)
	n.Push(remote.KindNetwork, "one")
	second := n.Push(remote.KindNetwork, "two")
	n.Push(remote.KindUnauthorized, "three")

	list := n.List()
	assert.Len(t, list, 2)
	assert.Equal(t, "two", list[0].Message)
	assert.Equal(t, "unauthorized", list[1].Kind)

	assert.True(t, n.Dismiss(second.ID))
	assert.False(t, n.Dismiss(second.ID))
	assert.Len(t, n.List(), 1)
}
