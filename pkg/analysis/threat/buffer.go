package threat

import (
	"sync"

	"github.com/dubhe-dev/dubhe/pkg/models"
)

type critical struct {
	ref   models.ElementRef
	stats models.RiskStats
}

// Buffer accumulates risk statistics for the critical elements seen by one
// worker, in the order they first became critical. It is not safe for
// concurrent use.
type Buffer struct {
	order []string
	byID  map[string]*critical
}

// NewBuffer creates an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{byID: make(map[string]*critical)}
}

func (b *Buffer) entry(e *models.Element) *critical {
	c, ok := b.byID[e.ID]
	if !ok {
		c = &critical{
			ref:   models.ElementRef{ID: e.ID, UMLType: e.UMLType, Name: e.Name},
			stats: models.RiskStats{Complexity: e.Complexity()},
		}
		b.byID[e.ID] = c
		b.order = append(b.order, e.ID)
	}
	return c
}

// Hit records that e lies on a detected threat path.
func (b *Buffer) Hit(e *models.Element) { b.entry(e).stats.Hits++ }

// Mitigated records a confirmed mitigation for a threat through e.
func (b *Buffer) Mitigated(e *models.Element) { b.entry(e).stats.Mitigated++ }

// Potential records a potential mitigation for a threat through e.
func (b *Buffer) Potential(e *models.Element) { b.entry(e).stats.Potential++ }

// Len returns the number of critical elements.
func (b *Buffer) Len() int { return len(b.order) }

// Stats returns the statistics recorded for id.
func (b *Buffer) Stats(id string) (models.RiskStats, bool) {
	c, ok := b.byID[id]
	if !ok {
		return models.RiskStats{}, false
	}
	return c.stats, true
}

func (b *Buffer) merge(other *Buffer) {
	for _, id := range other.order {
		src := other.byID[id]
		dst, ok := b.byID[id]
		if !ok {
			dst = &critical{ref: src.ref}
			b.byID[id] = dst
			b.order = append(b.order, id)
		}
		dst.stats.Add(src.stats)
	}
}

// Aggregate is the shared result of all classification workers. Workers
// merge a finished Outcome under a single lock; the risk index is only
// meaningful once every worker has merged.
type Aggregate struct {
	mu sync.Mutex

	buffer      *Buffer
	unmitigated []models.Detection
	potential   []models.Detection
	confirmed   []models.Detection
}

// NewAggregate creates an empty aggregate.
func NewAggregate() *Aggregate {
	return &Aggregate{buffer: NewBuffer()}
}

// Merge folds a worker's outcome into the aggregate.
func (a *Aggregate) Merge(o *Outcome) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.unmitigated = append(a.unmitigated, o.Unmitigated...)
	a.potential = append(a.potential, o.Potential...)
	a.confirmed = append(a.confirmed, o.Confirmed...)
	if o.Buffer != nil {
		a.buffer.merge(o.Buffer)
	}
}

// Detections returns copies of the three detection sets.
func (a *Aggregate) Detections() (unmitigated, potential, confirmed []models.Detection) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return clone(a.unmitigated), clone(a.potential), clone(a.confirmed)
}

// Index computes the Critical Element Risk Index, one entry per critical
// element in the order it was merged.
func (a *Aggregate) Index() []models.RiskEntry {
	a.mu.Lock()
	defer a.mu.Unlock()

	index := make([]models.RiskEntry, 0, len(a.buffer.order))
	for _, id := range a.buffer.order {
		c := a.buffer.byID[id]
		index = append(index, models.RiskEntry{
			ElementID: c.ref.ID,
			UMLType:   c.ref.UMLType,
			Name:      c.ref.Name,
			Worst:     c.stats.Worst(),
			Best:      c.stats.Best(),
			Stats:     c.stats,
		})
	}
	return index
}

// Averages returns the mean worst and best risk over index. ok is false
// when the index is empty, which is distinct from an average of zero.
func Averages(index []models.RiskEntry) (avg models.RiskAverage, ok bool) {
	if len(index) == 0 {
		return models.RiskAverage{}, false
	}
	for _, e := range index {
		avg.Worst += e.Worst
		avg.Best += e.Best
	}
	avg.Worst /= float64(len(index))
	avg.Best /= float64(len(index))
	return avg, true
}

func clone(ds []models.Detection) []models.Detection {
	if ds == nil {
		return []models.Detection{}
	}
	return append([]models.Detection(nil), ds...)
}
