package selector

import (
	"math/rand/v2"

	"github.com/conorfennell/curio/internal/domain"
)

// buckets partitions facts by topic, keeping topics in first-seen order.
type buckets struct {
	order []string
	facts map[string][]domain.Fact
}

func bucketize(facts []domain.Fact) *buckets {
	b := &buckets{facts: make(map[string][]domain.Fact)}
	for _, f := range facts {
		if _, ok := b.facts[f.Topic]; !ok {
			b.order = append(b.order, f.Topic)
		}
		b.facts[f.Topic] = append(b.facts[f.Topic], f)
	}
	return b
}

// take removes and returns a random fact of topic.
func (b *buckets) take(topic string, r *rand.Rand) (domain.Fact, bool) {
	list := b.facts[topic]
	if len(list) == 0 {
		return domain.Fact{}, false
	}
	i := r.IntN(len(list))
	f := list[i]
	last := len(list) - 1
	list[i] = list[last]
	b.facts[topic] = list[:last]
	return f, true
}

func (b *buckets) empty(topic string) bool {
	return len(b.facts[topic]) == 0
}

func (b *buckets) nonEmpty() []string {
	out := make([]string, 0, len(b.order))
	for _, t := range b.order {
		if !b.empty(t) {
			out = append(out, t)
		}
	}
	return out
}

func (b *buckets) remaining() []domain.Fact {
	var out []domain.Fact
	for _, t := range b.order {
		out = append(out, b.facts[t]...)
	}
	return out
}
