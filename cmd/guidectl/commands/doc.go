// Package commands defines the guidectl CLI.
//
// Commands
//
//   - analyze      Diagnose one waveform file offline
//   - frequencies  Print theoretical fault frequencies for a guide
//   - rul          Baseline remaining-useful-life from a kurtosis history
//   - version      Print the build version
//
// Every command writes to the cobra output stream, so tests drive the tree
// through NewRoot with a buffer.
package commands
