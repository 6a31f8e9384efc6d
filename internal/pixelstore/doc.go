// Package pixelstore is the data source for per-pixel cloud-model samples.
//
// A store holds one named group per HEALPix pixel ("pixel <id>"). Each group
// carries a raw sample tensor of shape (records, samples, 2*nClouds+1) and a
// small set of named scalar attributes, at minimum the pixel resolution
// (nside) and ordering flag (nested). The decoder in internal/clouds only
// depends on the Store interface; MemoryStore backs tests and SQLiteStore
// backs the command-line tools.
package pixelstore
