package transcript

import "sync"

// Bucket is one second of a room's conversation: who said what.
type Bucket struct {
	Stamp      string            `json:"stamp"`
	Utterances map[string]string `json:"utterances"`
}

// Accumulator groups a room's utterances by time bucket. Different speakers in the
// same bucket are merged; a repeated speaker in the same bucket replaces its previous text.
type Accumulator struct {
	mu      sync.Mutex
	order   []string
	buckets map[string]map[string]string
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{buckets: make(map[string]map[string]string)}
}

// Add records text for speaker in the given bucket.
func (a *Accumulator) Add(stamp, speaker, text string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	b, ok := a.buckets[stamp]
	if !ok {
		b = make(map[string]string)
		a.buckets[stamp] = b
		a.order = append(a.order, stamp)
	}
	b[speaker] = text
}

// Snapshot copies the buckets in first-seen order.
func (a *Accumulator) Snapshot() []Bucket {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Bucket, 0, len(a.order))
	for _, stamp := range a.order {
		utterances := make(map[string]string, len(a.buckets[stamp]))
		for speaker, text := range a.buckets[stamp] {
			utterances[speaker] = text
		}
		out = append(out, Bucket{Stamp: stamp, Utterances: utterances})
	}
	return out
}

// Len returns the number of buckets.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.order)
}
