// Package bayestar exchanges data with the external per-star inference
// program. A Request of star photometry is written to a temporary input
// file, the program is run with the input and output paths followed by its
// tuning flags, and the output file is decoded into probability surfaces,
// Markov chains and convergence diagnostics.
//
// Both files are JSON documents. Non-finite values, such as the infinite
// uncertainty used to mark an undetected band, are written as the strings
// "inf", "-inf" and "nan".
package bayestar
