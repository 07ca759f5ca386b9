// Package memory implements the repository interfaces in process memory.
//
// The stores honor the same contracts as the postgres package (change
// sequences, version checks, lease ownership) and back the single-instance
// worker mode and the package tests. Returned documents are copies; mutating
// them never changes stored state.
package memory
