// Package pairing matches files of two companion formats, such as mzML
// spectra and their mzIdentML identifications, into merge jobs by shared
// file name prefix.
package pairing
