package histogram

import "math"

// Counts keeps running per-window counts so that replacing one distance is an
// O(1) update rather than a re-binning pass.
//
// A value spanning two windows adds one to each; proportions divide by the
// total across windows, so they always sum to 1.
type Counts struct {
	bins   Bins
	counts []int
	total  int
}

// NewCounts returns empty counts over b.
func NewCounts(b Bins) *Counts {
	return &Counts{bins: b, counts: make([]int, b.N)}
}

// Bins returns the windows the counts are kept over.
func (c *Counts) Bins() Bins { return c.bins }

// Add counts v.
func (c *Counts) Add(v float64) {
	first, last := c.bins.Span(v)
	for k := first; k <= last; k++ {
		c.counts[k]++
	}
	c.total += last - first + 1
}

// Remove un-counts v. v must have been added before.
func (c *Counts) Remove(v float64) {
	first, last := c.bins.Span(v)
	for k := first; k <= last; k++ {
		c.counts[k]--
	}
	c.total -= last - first + 1
}

// Replace swaps old for next.
func (c *Counts) Replace(old, next float64) {
	c.Remove(old)
	c.Add(next)
}

// AddAll counts every value.
func (c *Counts) AddAll(values []float64) {
	for _, v := range values {
		c.Add(v)
	}
}

// Total returns the sum of all window counts.
func (c *Counts) Total() int { return c.total }

// Count returns the count of window k.
func (c *Counts) Count(k int) int { return c.counts[k] }

// Proportions returns count/total per window. All zeros when empty.
func (c *Counts) Proportions() []float64 {
	out := make([]float64, len(c.counts))
	if c.total == 0 {
		return out
	}
	t := float64(c.total)
	for k, n := range c.counts {
		out[k] = float64(n) / t
	}
	return out
}

// Distribution returns the counts as a Distribution.
func (c *Counts) Distribution() Distribution {
	props := c.Proportions()
	d := make(Distribution, len(props))
	for k, p := range props {
		lo, hi := c.bins.Window(k)
		d[k] = Bin{Lower: lo, Upper: hi, Proportion: p}
	}
	return d
}

// DeviationFrom is the root-sum-of-squares difference between target
// proportions and the current counts. Empty counts compare as all zeros.
func (c *Counts) DeviationFrom(target []float64) float64 {
	t := float64(max(c.total, 1))
	var sum float64
	for k, n := range c.counts {
		d := target[k] - float64(n)/t
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Clone returns an independent copy.
func (c *Counts) Clone() *Counts {
	return &Counts{bins: c.bins, counts: append([]int(nil), c.counts...), total: c.total}
}

// CopyFrom overwrites c with o. Both must share windows.
func (c *Counts) CopyFrom(o *Counts) {
	copy(c.counts, o.counts)
	c.total = o.total
}
