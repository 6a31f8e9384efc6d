// Package render draws rasterized extinction maps, distance profiles and
// probability surfaces as PNG (gonum/plot) or interactive HTML
// (go-echarts).
//
// Map plots honour the raster's orientation: longitude decreases to the
// right and latitude increases upwards.
package render
