// Command mmproteo downloads, extracts and converts the mass spectrometry
// files of a PRIDE project.
//
// Usage:
//
//	mmproteo run --project PXD010000 --extensions raw,mzid download extract convertraw
//	mmproteo commands
//	mmproteo config init
package main
