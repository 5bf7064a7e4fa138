// Package store keeps a history of finished randomization runs so they can
// be listed and fetched again by run ID.
//
// Backends:
//   - [NullStore]: history disabled
//   - [MemoryStore]: in-process, for tests and a single API instance
//   - [FileStore]: one JSON file per run, for the CLI
//   - [MongoStore]: shared history for multi-instance API deployments
//
// # Usage
//
//	st, err := store.NewMongoStore(ctx, store.MongoConfig{URI: "mongodb://localhost:27017"})
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
//
//	rec := store.NewRecord(inputsHash, opts, results)
//	if err := st.Save(ctx, rec); err != nil {
//	    return err
//	}
//
//	rec, err = st.Get(ctx, runID)
//	if errors.Is(err, errors.ErrCodeNotFound) {
//	    // Unknown run
//	}
package store

import (
	"context"
	"time"

	"github.com/matzehuels/pairnull/pkg/errors"
	"github.com/matzehuels/pairnull/pkg/geo"
	"github.com/matzehuels/pairnull/pkg/histogram"
	"github.com/matzehuels/pairnull/pkg/randomize"
)

// DefaultListLimit caps List when no limit is given.
const DefaultListLimit = 50

// Store persists run records.
type Store interface {
	// Save inserts or replaces a record by ID.
	Save(ctx context.Context, rec *Record) error

	// Get returns the record with id. Unknown IDs fail with NOT_FOUND.
	Get(ctx context.Context, id string) (*Record, error)

	// List returns up to limit records, newest first. limit <= 0 means
	// DefaultListLimit.
	List(ctx context.Context, limit int) ([]*Record, error)

	// Close releases backend resources.
	Close() error
}

// Record is one stored run: the options it ran with and every replicate it
// produced.
type Record struct {
	ID         string      `json:"id" bson:"_id"`
	CreatedAt  time.Time   `json:"created_at" bson:"created_at"`
	InputsHash string      `json:"inputs_hash" bson:"inputs_hash"`
	CRS        string      `json:"crs" bson:"crs"`
	N1         int         `json:"n1" bson:"n1"`
	N2         int         `json:"n2" bson:"n2"`
	Options    RunOptions  `json:"options" bson:"options"`
	Replicates []Replicate `json:"replicates" bson:"replicates"`
}

// RunOptions are the outcome-relevant options of a run.
type RunOptions struct {
	Bins        int           `json:"bins" bson:"bins"`
	Tolerance   float64       `json:"tolerance" bson:"tolerance"`
	Overlap     float64       `json:"overlap" bson:"overlap"`
	Metric      string        `json:"metric,omitempty" bson:"metric,omitempty"`
	Seed        uint64        `json:"seed" bson:"seed"`
	MaxTries    int           `json:"max_tries" bson:"max_tries"`
	Timeout     time.Duration `json:"timeout,omitempty" bson:"timeout,omitempty"`
	EscapeEvery int           `json:"escape_every" bson:"escape_every"`
	Strategy    string        `json:"strategy" bson:"strategy"`
	BestEffort  bool          `json:"best_effort,omitempty" bson:"best_effort,omitempty"`
}

// Replicate is one randomized configuration with its diagnostics.
type Replicate struct {
	RunID      string                  `json:"run_id" bson:"run_id"`
	State      string                  `json:"state" bson:"state"`
	Tries      int                     `json:"tries" bson:"tries"`
	Accepted   int                     `json:"accepted" bson:"accepted"`
	Refills    int                     `json:"refills" bson:"refills"`
	PoolSize   int                     `json:"pool_size" bson:"pool_size"`
	Seed       uint64                  `json:"seed" bson:"seed"`
	Tolerance  float64                 `json:"tolerance" bson:"tolerance"`
	Scores     randomize.Scores        `json:"scores" bson:"scores"`
	Duration   time.Duration           `json:"duration" bson:"duration"`
	Set1       []geo.Point             `json:"set1" bson:"set1"`
	Set2       []geo.Point             `json:"set2" bson:"set2"`
	Observed   randomize.Distributions `json:"observed" bson:"observed"`
	Randomized randomize.Distributions `json:"randomized" bson:"randomized"`
}

// NewRecord builds a record from finished replicates. The record ID is
// opts.RunID, or the first result's run ID when that is empty.
func NewRecord(inputsHash string, opts randomize.Options, results []*randomize.Result) *Record {
	rec := &Record{
		ID:         opts.RunID,
		CreatedAt:  time.Now().UTC(),
		InputsHash: inputsHash,
		Options: RunOptions{
			Bins:       opts.Bins,
			Tolerance:  opts.Tolerance,
			Metric:     opts.MetricName,
			Seed:       opts.Seed,
			MaxTries:   opts.MaxTries,
			Timeout:    opts.Timeout,
			Strategy:   string(opts.Strategy),
			BestEffort: opts.BestEffort,
		},
	}
	rec.Options.Overlap = histogram.DefaultOverlap
	if opts.Overlap != nil {
		rec.Options.Overlap = *opts.Overlap
	}
	if opts.EscapeEvery != nil {
		rec.Options.EscapeEvery = *opts.EscapeEvery
	}
	for _, r := range results {
		if r == nil {
			continue
		}
		if rec.ID == "" {
			rec.ID = r.RunID
		}
		rec.CRS = r.CRS.String()
		rec.N1, rec.N2 = r.Set1.Len(), r.Set2.Len()
		rec.Replicates = append(rec.Replicates, Replicate{
			RunID:      r.RunID,
			State:      r.State.String(),
			Tries:      r.Tries,
			Accepted:   r.Accepted,
			Refills:    r.Refills,
			PoolSize:   r.PoolSize,
			Seed:       r.Seed,
			Tolerance:  r.Tolerance,
			Scores:     r.Scores,
			Duration:   r.Duration,
			Set1:       r.Set1.Points,
			Set2:       r.Set2.Points,
			Observed:   r.Observed,
			Randomized: r.Randomized,
		})
	}
	return rec
}

// Results rebuilds engine results from the record.
func (r *Record) Results() ([]*randomize.Result, error) {
	crs := geo.CRS(r.CRS)
	out := make([]*randomize.Result, len(r.Replicates))
	for i, rep := range r.Replicates {
		var state randomize.State
		if err := state.UnmarshalText([]byte(rep.State)); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "record %s replicate %d", r.ID, i)
		}
		out[i] = &randomize.Result{
			RunID:      rep.RunID,
			Set1:       geo.NewPointSet(crs, rep.Set1...),
			Set2:       geo.NewPointSet(crs, rep.Set2...),
			CRS:        crs,
			State:      state,
			Tries:      rep.Tries,
			Accepted:   rep.Accepted,
			Refills:    rep.Refills,
			PoolSize:   rep.PoolSize,
			Scores:     rep.Scores,
			Tolerance:  rep.Tolerance,
			Seed:       rep.Seed,
			Observed:   rep.Observed,
			Randomized: rep.Randomized,
			Duration:   rep.Duration,
		}
	}
	return out, nil
}

// Converged reports whether every replicate converged.
func (r *Record) Converged() bool {
	for _, rep := range r.Replicates {
		if rep.State != randomize.StateConverged.String() {
			return false
		}
	}
	return len(r.Replicates) > 0
}

func notFound(id string) error {
	return errors.New(errors.ErrCodeNotFound, "run %q not found", id)
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
