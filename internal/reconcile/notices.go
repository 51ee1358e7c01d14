package reconcile

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/shopfront/internal/remote"
)

const defaultNoticeLimit = 20

// Notice is a non-fatal, dismissable message about a degraded operation.
type Notice struct {
	ID      string    `json:"id"`
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Notices keeps the most recent notices, oldest first.
type Notices struct {
	mu    sync.Mutex
	items []Notice
	limit int
}

func NewNotices(limit int) *Notices {
	if limit <= 0 {
		limit = defaultNoticeLimit
	}
	return &Notices{limit: limit}
}

func (n *Notices) Push(kind remote.Kind, msg string) Notice {
	notice := Notice{
		ID:      uuid.NewString(),
		Kind:    kind.String(),
		Message: msg,
		At:      time.Now().UTC(),
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append(n.items, notice)
	if over := len(n.items) - n.limit; over > 0 {
		n.items = append([]Notice(nil), n.items[over:]...)
	}
	return notice
}

func (n *Notices) List() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Notice, len(n.items))
	copy(out, n.items)
	return out
}

func (n *Notices) Dismiss(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, it := range n.items {
		if it.ID == id {
			n.items = append(n.items[:i], n.items[i+1:]...)
			return true
		}
	}
	return false
}
