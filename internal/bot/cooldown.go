package bot

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultCooldown: минимальный интервал между обработанными сообщениями одного отправителя.
const DefaultCooldown = 2 * time.Second

// staleAfter: через сколько интервалов простоя лимитер отправителя забывается.
const staleAfter = 30

type senderLimit struct {
	limiter *rate.Limiter
	seen    time.Time
}

// cooldown держит по лимитеру на отправителя.
type cooldown struct {
	mu     sync.Mutex
	every  time.Duration
	now    func() time.Time
	limits map[string]*senderLimit
	sweep  time.Time
}

func newCooldown(every time.Duration, now func() time.Time) *cooldown {
	return &cooldown{
		every:  every,
		now:    now,
		limits: make(map[string]*senderLimit),
	}
}

// Allow сообщает, можно ли обработать сообщение отправителя сейчас.
// Отклонённые сообщения окно не продлевают.
func (c *cooldown) Allow(sender string) bool {
	if c.every <= 0 {
		return true
	}
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.evictLocked(now)
	l, ok := c.limits[sender]
	if !ok {
		l = &senderLimit{limiter: rate.NewLimiter(rate.Every(c.every), 1)}
		c.limits[sender] = l
	}
	l.seen = now
	return l.limiter.AllowN(now, 1)
}

func (c *cooldown) evictLocked(now time.Time) {
	idle := c.every * staleAfter
	if now.Sub(c.sweep) < idle {
		return
	}
	c.sweep = now
	for sender, l := range c.limits {
		if now.Sub(l.seen) >= idle {
			delete(c.limits, sender)
		}
	}
}

func (c *cooldown) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.limits)
}
