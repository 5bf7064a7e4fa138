// Package raster provides the study-region mask and the spatial sampler that
// feeds candidate coordinates to the randomization engine.
//
// A [Grid] marks cells as valid or missing. [Sampler] draws coordinates
// uniformly over valid cells (weighted by spherical area for geographic
// grids) and [Pool] buffers bulk draws so the engine can consume candidates
// one at a time.
//
// Grids are read from ESRI ASCII files with [ReadASCIIGrid] or built in
// memory with [NewGrid].
package raster
