package idgen

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	_entropyMu sync.Mutex
	_entropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

var _ulidGenerator = func() string {
	_entropyMu.Lock()
	defer _entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), _entropy).String()
}

// NewULID returns a sortable id, used for request ids
func NewULID() string {
	return _ulidGenerator()
}

func UseULID(fn func() string) {
	_ulidGenerator = fn
}
