package traffic

import (
	"sync"
	"time"
)

// Budget caps metered upstream calls per UTC day.
type Budget struct {
	mu    sync.Mutex
	limit int
	used  int
	day   string
	now   func() time.Time
}

// NewBudget creates a daily budget. limit <= 0 means unlimited.
func NewBudget(limit int) *Budget {
	return &Budget{limit: limit, now: time.Now}
}

// Take reserves n calls and reports whether they fit today's budget.
func (b *Budget) Take(n int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rollover()
	if b.limit > 0 && b.used+n > b.limit {
		return false
	}
	b.used += n
	return true
}

// Remaining returns calls left today, or -1 when unlimited.
func (b *Budget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rollover()
	if b.limit <= 0 {
		return -1
	}
	return b.limit - b.used
}

func (b *Budget) rollover() {
	today := b.now().UTC().Format("2006-01-02")
	if today != b.day {
		b.day = today
		b.used = 0
	}
}
