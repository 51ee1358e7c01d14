package reconcile

// Ledger tracks optimistic mutations on top of the last confirmed value.
// View folds every pending mutation, in order, over the confirmed value;
// aborting one therefore re-derives the view from the last-known-good state
// while other in-flight mutations stay visible. Not safe for concurrent use.
type Ledger[T any] struct {
	confirmed T
	pending   []ledgerEntry[T]
	next      uint64
}

type ledgerEntry[T any] struct {
	id    uint64
	apply func(T) T
}

func NewLedger[T any](confirmed T) *Ledger[T] {
	return &Ledger[T]{confirmed: confirmed}
}

// Reset replaces the confirmed value. Pending mutations are kept; they have
// not been acknowledged and are still expected to land.
func (l *Ledger[T]) Reset(confirmed T) {
	l.confirmed = confirmed
}

// Discard drops every pending mutation along with the confirmed value.
func (l *Ledger[T]) Discard(confirmed T) {
	l.confirmed = confirmed
	l.pending = nil
}

func (l *Ledger[T]) Begin(apply func(T) T) uint64 {
	l.next++
	l.pending = append(l.pending, ledgerEntry[T]{id: l.next, apply: apply})
	return l.next
}

// Commit folds the mutation into the confirmed value. Unknown ids are ignored.
func (l *Ledger[T]) Commit(id uint64) bool {
	for i, e := range l.pending {
		if e.id == id {
			l.confirmed = e.apply(l.confirmed)
			l.pending = append(l.pending[:i], l.pending[i+1:]...)
			return true
		}
	}
	return false
}

func (l *Ledger[T]) Abort(id uint64) bool {
	for i, e := range l.pending {
		if e.id == id {
			l.pending = append(l.pending[:i], l.pending[i+1:]...)
			return true
		}
	}
	return false
}

func (l *Ledger[T]) Confirmed() T {
	return l.confirmed
}

func (l *Ledger[T]) View() T {
	v := l.confirmed
	for _, e := range l.pending {
		v = e.apply(v)
	}
	return v
}

func (l *Ledger[T]) Pending() int {
	return len(l.pending)
}
