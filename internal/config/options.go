package config

import (
	"github.com/mrsinham/dicompixel/internal/convert"
	"github.com/mrsinham/dicompixel/internal/dicom"
	"github.com/mrsinham/dicompixel/internal/raster"
)

// ConvertOptions maps the output and decode sections onto convert.Options.
func (c *Config) ConvertOptions() (convert.Options, error) {
	policy, err := convert.ParsePolicy(c.Output.Policy)
	if err != nil {
		return convert.Options{}, err
	}

	decode := dicom.DefaultDecodeOptions()
	if c.Decode.DefaultTransferSyntax != "" {
		decode.DefaultTransferSyntax = c.Decode.DefaultTransferSyntax
	}

	return convert.Options{
		Workers: c.Output.Workers,
		Policy:  policy,
		Decode:  decode,
		Encode: raster.EncodeOptions{
			JPEGQuality:  c.Output.JPEGQuality,
			MaxDimension: c.Output.MaxDimension,
		},
	}, nil
}
