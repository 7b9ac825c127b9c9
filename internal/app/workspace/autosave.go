package workspace

import (
	"sync"
	"time"

	"github.com/PabloGalante/brandbot/internal/domain"
)

// debouncer coalesces rapid changes per token into one call after a quiet period.
type debouncer struct {
	delay time.Duration
	fire  func(domain.Token)

	mu      sync.Mutex
	pending map[domain.Token]*time.Timer
}

func newDebouncer(delay time.Duration, fire func(domain.Token)) *debouncer {
	return &debouncer{delay: delay, fire: fire, pending: make(map[domain.Token]*time.Timer)}
}

func (d *debouncer) schedule(token domain.Token) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.pending[token]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		if d.pending[token] != t {
			d.mu.Unlock()
			return
		}
		delete(d.pending, token)
		d.mu.Unlock()
		d.fire(token)
	})
	d.pending[token] = t
}

// cancel drops a pending call, used when a direct save supersedes it.
func (d *debouncer) cancel(token domain.Token) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.pending[token]; ok {
		t.Stop()
		delete(d.pending, token)
	}
}

// flush runs every pending call now.
func (d *debouncer) flush() {
	d.mu.Lock()
	tokens := make([]domain.Token, 0, len(d.pending))
	for token, t := range d.pending {
		t.Stop()
		tokens = append(tokens, token)
		delete(d.pending, token)
	}
	d.mu.Unlock()
	for _, token := range tokens {
		d.fire(token)
	}
}
