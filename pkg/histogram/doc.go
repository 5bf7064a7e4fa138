// Package histogram bins distance vectors into overlapping windows and
// compares the resulting distributions.
//
// Windows are derived once from an observed vector ([Observe]) and then
// reused for every randomised counterpart in the same run, so proportions
// compare window for window. [Counts] keeps running window counts for O(1)
// incremental updates; [Deviation] and [Counts.DeviationFrom] measure the
// root-sum-of-squares difference between proportion vectors.
package histogram
