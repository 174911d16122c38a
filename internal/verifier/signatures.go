package verifier

import "sync"

const (
	signatureHighWater = 1000
	signatureDropCount = 500
)

// ProcessedSignatureSet remembers recently handled transaction signatures so
// duplicate pushes from the node are dropped cheaply. It is an in-process
// optimization only; the persisted order status is the real idempotency
// guarantee.
type ProcessedSignatureSet struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	order []string
}

func NewProcessedSignatureSet() *ProcessedSignatureSet {
	return &ProcessedSignatureSet{seen: make(map[string]struct{})}
}

func (s *ProcessedSignatureSet) Contains(signature string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[signature]
	return ok
}

func (s *ProcessedSignatureSet) Add(signature string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[signature]; ok {
		return
	}
	s.seen[signature] = struct{}{}
	s.order = append(s.order, signature)
}

// Cleanup drops the oldest entries once the set grows past its high-water
// mark. Returns the number of signatures removed.
func (s *ProcessedSignatureSet) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.order) <= signatureHighWater {
		return 0
	}
	dropped := s.order[:signatureDropCount]
	for _, sig := range dropped {
		delete(s.seen, sig)
	}
	s.order = s.order[signatureDropCount:]
	return len(dropped)
}

func (s *ProcessedSignatureSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}
