package convert

// Stage is a step in the life of a conversion. Files move forward through
// Received, Decoded, Normalized, Synthesized (DICOM output only) and Encoded.
// A request then moves through Packaged and Delivered. Any failure ends in
// Failed.
type Stage int

const (
	StageReceived Stage = iota
	StageDecoded
	StageNormalized
	StageSynthesized
	StageEncoded
	StagePackaged
	StageDelivered
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageReceived:
		return "received"
	case StageDecoded:
		return "decoded"
	case StageNormalized:
		return "normalized"
	case StageSynthesized:
		return "synthesized"
	case StageEncoded:
		return "encoded"
	case StagePackaged:
		return "packaged"
	case StageDelivered:
		return "delivered"
	default:
		return "failed"
	}
}
