// Package types holds the wizard state shared by the wizard and its screens.
package types

// State is everything the wizard collects before a conversion.
type State struct {
	Mode        string // flag spelling, e.g. "dicom-to-png"
	Input       string // file or directory
	OutputRoot  string
	Policy      string // fail-fast or per-file
	Workers     int    // 0 = one per CPU
	JPEGQuality int
}
