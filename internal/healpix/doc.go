// Package healpix implements the HEALPix equal-area spherical pixelization.
//
// Pixels are addressed by an integer index under a resolution parameter
// nside and one of two orderings: RING (pixels numbered along iso-latitude
// rings from the north pole) or NESTED (hierarchical quad-tree numbering
// within each of the twelve base faces). NESTED ordering requires nside to
// be a power of two.
//
// Angles follow the usual convention: theta is colatitude in [0, pi] and
// phi is longitude in [0, 2*pi). Galactic helpers convert to and from
// longitude l and latitude b in degrees using l = phi and b = 90 - theta.
package healpix
