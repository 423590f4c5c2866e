package marker

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/hazardmap/mapservice/pkg/core"
)

// IDAllocator hands out marker ids. Implementations must be safe for
// concurrent use.
type IDAllocator interface {
	Next() core.MarkerID
}

// Sequential allocates prefix1, prefix2, ... from a monotonic counter.
type Sequential struct {
	prefix string
	n      atomic.Uint64
}

// NewSequential creates a counter-backed allocator.
func NewSequential(prefix string) *Sequential {
	return &Sequential{prefix: prefix}
}

func (s *Sequential) Next() core.MarkerID {
	return core.MarkerID(s.prefix + strconv.FormatUint(s.n.Add(1), 10))
}

// Random allocates UUIDv4-based ids, for callers that need ids that are
// not guessable across sessions.
type Random struct {
	Prefix string
}

func (r Random) Next() core.MarkerID {
	return core.MarkerID(r.Prefix + uuid.NewString())
}
