package raster

import (
	"math"
	"math/rand/v2"

	"github.com/matzehuels/pairnull/pkg/errors"
	"github.com/matzehuels/pairnull/pkg/geo"
)

// Pool sizing bounds.
const (
	DefaultPoolMin = 10_000
	DefaultPoolMax = 1_000_000
)

// Sampler draws coordinates from a mask with its own random stream.
// A Sampler is not safe for concurrent use.
type Sampler struct {
	mask Mask
	rng  *rand.Rand
}

// NewSampler checks that the mask has valid area before any sampling cost is
// incurred. Fails with INSUFFICIENT_VALID_AREA otherwise.
func NewSampler(mask Mask, rng *rand.Rand) (*Sampler, error) {
	if mask == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no raster mask")
	}
	if mask.ValidCellCount() == 0 {
		return nil, errors.New(errors.ErrCodeInsufficientArea, "raster mask has no valid cells")
	}
	return &Sampler{mask: mask, rng: rng}, nil
}

// Generate draws n coordinates in one bulk call.
func (s *Sampler) Generate(n int) ([]geo.Point, error) {
	return s.mask.SampleUniform(s.rng, n)
}

// Mask returns the sampled mask.
func (s *Sampler) Mask() Mask { return s.mask }

// Pool is a consumable buffer of pre-drawn candidates. It is owned by one
// engine run; Next pops a coordinate and refills the whole buffer in bulk
// when it runs dry.
type Pool struct {
	sampler *Sampler
	buf     []geo.Point
	pos     int
	refills int
}

// NewPool fills a pool of the given size.
func NewPool(s *Sampler, size int) (*Pool, error) {
	if size < 1 {
		return nil, errors.New(errors.ErrCodeInvalidOption, "pool size must be positive, got %d", size)
	}
	p := &Pool{sampler: s, buf: make([]geo.Point, 0, size)}
	if err := p.fill(size); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Pool) fill(size int) error {
	pts, err := p.sampler.Generate(size)
	if err != nil {
		return err
	}
	p.buf = append(p.buf[:0], pts...)
	p.pos = 0
	return nil
}

// Refill discards any unused candidates and draws a fresh buffer.
func (p *Pool) Refill() error {
	if err := p.fill(cap(p.buf)); err != nil {
		return err
	}
	p.refills++
	return nil
}

// Next returns the next unused candidate.
func (p *Pool) Next() (geo.Point, error) {
	if p.pos >= len(p.buf) {
		if err := p.Refill(); err != nil {
			return geo.Point{}, err
		}
	}
	pt := p.buf[p.pos]
	p.pos++
	return pt, nil
}

// Take returns the next n candidates, refilling as needed.
func (p *Pool) Take(n int) ([]geo.Point, error) {
	out := make([]geo.Point, n)
	for i := range out {
		pt, err := p.Next()
		if err != nil {
			return nil, err
		}
		out[i] = pt
	}
	return out, nil
}

// Remaining returns the number of unused candidates.
func (p *Pool) Remaining() int { return len(p.buf) - p.pos }

// Size returns the buffer capacity.
func (p *Pool) Size() int { return cap(p.buf) }

// Refills returns how many times the buffer was regenerated.
func (p *Pool) Refills() int { return p.refills }

// PoolSize balances sampler call overhead against refill frequency:
// (n1+n2)² × bins / tol candidates, clamped to [min, max].
func PoolSize(n1, n2, bins int, tol float64, min, max int) int {
	n := float64(n1 + n2)
	size := math.Ceil(n * n * float64(bins) / tol)
	if math.IsNaN(size) || size > float64(max) {
		return max
	}
	if size < float64(min) {
		return min
	}
	return int(size)
}
