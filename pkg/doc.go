// Package pkg provides the core libraries for pairnull spatial null models.
//
// # Overview
//
// pairnull relocates two observed point patterns inside a study-region raster
// so that their within-set and between-set pairwise-distance distributions
// match the observed ones. The randomized pairs serve as null models for
// co-occurrence and overlap statistics. The pkg directory is organized into
// three main areas:
//
//  1. Domain logic: [geo], [distance], [histogram], [raster], [randomize]
//  2. Adapters: [pointio] (CSV/GeoJSON), [render/histplot] (plots)
//  3. Infrastructure: [pipeline], [cache], [store], [observability], [errors]
//
// # Architecture
//
// The typical data flow through pairnull:
//
//	CSV / GeoJSON points + ESRI ASCII mask
//	         ↓
//	    [pointio], [raster] packages (load, declare CRS)
//	         ↓
//	    [randomize] package (distance matrices → histograms → search)
//	         ↓
//	    [pointio] package (write in the caller's representation)
//	         ↓
//	    CSV / GeoJSON output, PNG/SVG distribution plots
//
// # Quick Start
//
// Randomize a pair of point sets in memory:
//
//	import (
//	    "context"
//	    "github.com/matzehuels/pairnull/pkg/geo"
//	    "github.com/matzehuels/pairnull/pkg/randomize"
//	    "github.com/matzehuels/pairnull/pkg/raster"
//	)
//
//	mask, _ := raster.ReadASCIIGridFile("alps.asc", geo.WGS84)
//	res, err := randomize.Run(context.Background(), oaks, beeches, mask, randomize.Options{
//	    Tolerance: 0.005,
//	    Seed:      7,
//	})
//	if err != nil {
//	    return err // e.g. CONVERGENCE_FAILURE
//	}
//	fmt.Println(res.State, res.Tries, res.Scores.Max())
//
// # Main Packages
//
// ## Domain Logic
//
// [geo] - Points, point sets, reference systems and distance functions
// (great-circle, angular, Euclidean).
//
// [distance] - Dense self and cross distance matrices with O(n) updates when
// one point is replaced.
//
// [histogram] - Overlapping-window histograms over distance vectors, running
// counts and the root-sum-of-squares deviation between distributions.
//
// [raster] - Raster masks, uniform valid-cell sampling (optionally weighted by
// spherical cell area) and the refillable candidate pool.
//
// [randomize] - The search engine: INITIALIZING → SEARCHING → CONVERGED or
// ABORTED, with greedy or annealing acceptance and batched replicates.
//
// ## Infrastructure
//
// [pipeline] - Load → randomize → render, used by the CLI and the HTTP API.
// Ensures consistent behavior across both entry points.
//
// [cache] - Result cache keyed by input digest and options. File, Redis and
// null backends.
//
// [store] - Run archive. File, MongoDB, memory and null backends.
//
// # Testing
//
// Run tests:
//
//	go test ./pkg/...                    # All tests
//	go test ./pkg/randomize/...          # Specific package
//	go test -run Example ./pkg/...       # Examples only
//
// [geo]: https://pkg.go.dev/github.com/matzehuels/pairnull/pkg/geo
// [distance]: https://pkg.go.dev/github.com/matzehuels/pairnull/pkg/distance
// [histogram]: https://pkg.go.dev/github.com/matzehuels/pairnull/pkg/histogram
// [raster]: https://pkg.go.dev/github.com/matzehuels/pairnull/pkg/raster
// [randomize]: https://pkg.go.dev/github.com/matzehuels/pairnull/pkg/randomize
// [pointio]: https://pkg.go.dev/github.com/matzehuels/pairnull/pkg/pointio
// [render/histplot]: https://pkg.go.dev/github.com/matzehuels/pairnull/pkg/render/histplot
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/pairnull/pkg/pipeline
// [cache]: https://pkg.go.dev/github.com/matzehuels/pairnull/pkg/cache
// [store]: https://pkg.go.dev/github.com/matzehuels/pairnull/pkg/store
// [observability]: https://pkg.go.dev/github.com/matzehuels/pairnull/pkg/observability
// [errors]: https://pkg.go.dev/github.com/matzehuels/pairnull/pkg/errors
package pkg
