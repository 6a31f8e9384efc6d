// Package raster resamples a sparse set of HEALPix pixels onto a uniform
// galactic (l, b) grid by nearest-pixel lookup.
//
// The grid's first axis runs in decreasing longitude from LMax to LMin, the
// second in increasing latitude from BMin to BMax. Cells whose centre falls
// in a pixel that is not part of the input hold NaN.
package raster
