// Package randomize generates spatially constrained null models for a pair
// of point patterns.
//
// Given two observed point sets and a raster mask, the engine returns two new
// sets of the same sizes, drawn from valid mask cells, whose within-set and
// between-set distance distributions match the observed ones.
//
// # Algorithm
//
// Observed distances are binned into overlapping windows (see package
// histogram), one distribution per category: set 1 self-distances, set 2
// self-distances and cross-distances. The engine starts from a uniform random
// configuration and repeatedly:
//
//  1. Draws a candidate coordinate from a pre-sampled pool
//  2. Picks one set at random, then one point within it
//  3. Recomputes only the O(n) distances that the swap would change
//  4. Updates running histogram counts and per-category deviations
//  5. Keeps the swap if the acceptance rule allows it
//
// A run converges once every category deviation is at or below the
// tolerance. The sum of the three deviations drives acceptance.
//
// # Acceptance
//
// [StrategyGreedy] keeps strictly improving swaps. [StrategyAnnealing] also
// keeps worsening swaps with probability exp(-delta/T) while T cools
// geometrically. Under both strategies every K-th try is kept regardless
// (Options.EscapeEvery; zero disables it) so a stuck search can move on.
//
// # Usage
//
//	out1, out2, err := randomize.BySelfAndOther(ctx, x1, x2, mask, randomize.Options{
//	    Bins:      20,
//	    Tolerance: 0.001,
//	    Seed:      7,
//	})
//
// For progress reporting and partial results, build an [Engine] with [New]
// and call [Engine.Run]. [RunBatch] runs independent replicates concurrently.
//
// Fixed seeds give identical results.
package randomize
