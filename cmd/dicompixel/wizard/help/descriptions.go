package help

// HelpText contains information about a field
type HelpText struct {
	Title       string
	Description string
	Details     string
}

// Texts contains help information for all wizard fields
var Texts = map[string]HelpText{
	"mode": {
		Title:       "CONVERSION MODE",
		Description: "Direction of the conversion.",
		Details: `DICOM to PNG  - lossless 8-bit grayscale export
DICOM to JPEG - 8-bit grayscale export, quality 90 by default
PNG to DICOM  - wraps the image in a new DICOM file
JPEG to DICOM - same, from .jpg or .jpeg sources`,
	},
	"input": {
		Title:       "INPUT",
		Description: "A single file or a directory.",
		Details:     "Only files directly inside the directory are converted. Sub-directories are skipped.",
	},
	"output": {
		Title:       "OUTPUT ROOT",
		Description: "Directory that receives one sub-directory per run.",
		Details:     "A single result is written as is. Several results are bundled into output_files.zip.",
	},
	"policy": {
		Title:       "FAILURE POLICY",
		Description: "What happens when one file cannot be converted.",
		Details: `fail-fast - stop and keep nothing (default)
per-file  - convert what can be converted and list the failures`,
	},
	"workers": {
		Title:       "WORKERS",
		Description: "Number of files converted in parallel.",
		Details:     "0 uses one worker per CPU core.",
	},
	"jpeg_quality": {
		Title:       "JPEG QUALITY",
		Description: "Quality of JPEG exports, from 1 to 100.",
		Details:     "Ignored by the other modes.",
	},
}
