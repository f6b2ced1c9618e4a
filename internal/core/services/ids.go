package services

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// newID returns a random identifier for segments, key points and requests.
func newID() string {
	return uuid.NewString()
}

// sessionIDs generates time-ordered session identifiers.
type sessionIDs struct {
	mu      sync.Mutex
	entropy *rand.Rand
}

func newSessionIDs() *sessionIDs {
	return &sessionIDs{entropy: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (g *sessionIDs) next(at time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), g.entropy).String()
}
