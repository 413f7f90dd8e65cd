package dicom

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mrsinham/dicompixel/internal/pixel"
	"github.com/mrsinham/dicompixel/internal/util"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"
	"github.com/suyashkumar/dicom/pkg/uid"
)

// DecodeOptions configures how DICOM files are read.
type DecodeOptions struct {
	// DefaultTransferSyntax is applied to the parser when the file carries no
	// TransferSyntaxUID (or no file meta group at all). It never becomes part
	// of the returned dataset.
	DefaultTransferSyntax string

	// Frame selects which frame of a multi-frame object is decoded.
	Frame int
}

// DefaultDecodeOptions returns the options used when none are given.
func DefaultDecodeOptions() DecodeOptions {
	return DecodeOptions{DefaultTransferSyntax: uid.ImplicitVRLittleEndian}
}

// Image is the pixel array of a DICOM object together with the attributes
// that describe it.
type Image struct {
	Pixels pixel.Buffer

	Rows                      int
	Columns                   int
	BitsAllocated             int
	BitsStored                int
	HighBit                   int
	PixelRepresentation       int
	SamplesPerPixel           int
	PhotometricInterpretation string
	NumberOfFrames            int

	TransferSyntaxUID       string
	TransferSyntaxDefaulted bool // parser fell back to DecodeOptions.DefaultTransferSyntax
}

// Decode reads the DICOM file at path and returns its pixel array.
// Only .dcm and .dicom files are accepted.
func Decode(path string, opts DecodeOptions) (*Image, error) {
	if !util.IsDICOMPath(path) {
		return nil, util.UnsupportedExtension(path, ".dcm", ".dicom")
	}
	if opts.DefaultTransferSyntax == "" {
		opts.DefaultTransferSyntax = uid.ImplicitVRLittleEndian
	}

	ds, defaulted, err := parseFile(path, opts.DefaultTransferSyntax)
	if err != nil {
		return nil, &util.DecodeError{Path: path, Format: "dicom", Err: err}
	}

	img, err := imageFromDataset(ds, opts.Frame)
	if err != nil {
		return nil, &util.DecodeError{Path: path, Format: "dicom", Err: err}
	}
	img.TransferSyntaxDefaulted = defaulted
	if defaulted {
		img.TransferSyntaxUID = opts.DefaultTransferSyntax
	}
	return img, nil
}

// parseFile reads every element of a DICOM file. Files without a preamble
// and meta group are read as a bare dataset. When the transfer syntax is
// missing, the parser is switched to defaultTS before the dataset is read.
func parseFile(path, defaultTS string) (dicom.Dataset, bool, error) {
	bo, implicit, err := uid.ParseTransferSyntaxUID(defaultTS)
	if err != nil {
		return dicom.Dataset{}, false, fmt.Errorf("default transfer syntax %q: %w", defaultTS, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return dicom.Dataset{}, false, err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return dicom.Dataset{}, false, err
	}

	headerless := false
	p, err := dicom.NewParser(f, info.Size(), nil)
	if err != nil {
		if _, serr := f.Seek(0, io.SeekStart); serr != nil {
			return dicom.Dataset{}, false, serr
		}
		p, err = dicom.NewParser(f, info.Size(), nil, dicom.SkipMetadataReadOnNewParserInit())
		if err != nil {
			return dicom.Dataset{}, false, fmt.Errorf("open parser: %w", err)
		}
		headerless = true
	}

	meta := p.GetMetadata()
	defaulted := headerless
	if !headerless {
		if _, err := meta.FindElementByTag(tag.TransferSyntaxUID); err != nil {
			defaulted = true
		}
	}
	if defaulted {
		p.SetTransferSyntax(bo, implicit)
	}

	var elements []*dicom.Element
	hasPixels := false
	for {
		elem, err := p.Next()
		if err != nil {
			if errors.Is(err, dicom.ErrorEndOfDICOM) || errors.Is(err, io.EOF) {
				break
			}
			// Trailing garbage after the pixel data is tolerated.
			if hasPixels {
				break
			}
			return dicom.Dataset{}, false, fmt.Errorf("read element: %w", err)
		}
		if elem.Tag == tag.PixelData {
			hasPixels = true
		}
		elements = append(elements, elem)
	}

	if len(elements) == 0 {
		return dicom.Dataset{}, false, fmt.Errorf("no elements parsed")
	}

	ds := dicom.Dataset{Elements: append(meta.Elements, elements...)}
	return ds, defaulted, nil
}

func imageFromDataset(ds dicom.Dataset, frameIndex int) (*Image, error) {
	img := &Image{
		PhotometricInterpretation: stringValue(ds, tag.PhotometricInterpretation),
		TransferSyntaxUID:         stringValue(ds, tag.TransferSyntaxUID),
	}
	img.Rows, _ = intValue(ds, tag.Rows)
	img.Columns, _ = intValue(ds, tag.Columns)
	img.BitsAllocated, _ = intValue(ds, tag.BitsAllocated)
	img.PixelRepresentation, _ = intValue(ds, tag.PixelRepresentation)

	var ok bool
	if img.BitsStored, ok = intValue(ds, tag.BitsStored); !ok {
		img.BitsStored = img.BitsAllocated
	}
	if img.HighBit, ok = intValue(ds, tag.HighBit); !ok && img.BitsStored > 0 {
		img.HighBit = img.BitsStored - 1
	}
	if img.SamplesPerPixel, ok = intValue(ds, tag.SamplesPerPixel); !ok {
		img.SamplesPerPixel = 1
	}
	if img.NumberOfFrames, ok = intValue(ds, tag.NumberOfFrames); !ok {
		img.NumberOfFrames = 1
	}

	elem, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return nil, fmt.Errorf("no pixel data: %w", err)
	}
	info, ok := elem.Value.GetValue().(dicom.PixelDataInfo)
	if !ok {
		return nil, fmt.Errorf("pixel data has unexpected type %T", elem.Value.GetValue())
	}
	if len(info.Frames) == 0 {
		return nil, fmt.Errorf("pixel data contains no frames")
	}
	if frameIndex < 0 || frameIndex >= len(info.Frames) {
		return nil, fmt.Errorf("frame %d out of range (%d frames)", frameIndex, len(info.Frames))
	}

	fr := info.Frames[frameIndex]
	if fr.Encapsulated {
		decoded, err := fr.EncapsulatedData.GetImage()
		if err != nil {
			return nil, fmt.Errorf("decode encapsulated frame: %w", err)
		}
		img.Pixels = pixel.FromImage(decoded)
	} else {
		if fr.NativeData == nil {
			return nil, fmt.Errorf("frame %d has no native data", frameIndex)
		}
		img.Pixels, err = bufferFromNative(fr.NativeData, img.BitsStored, img.PixelRepresentation == 1)
		if err != nil {
			return nil, err
		}
	}

	if img.Rows == 0 {
		img.Rows = img.Pixels.Rows
	}
	if img.Columns == 0 {
		img.Columns = img.Pixels.Cols
	}
	if img.Rows != img.Pixels.Rows || img.Columns != img.Pixels.Cols {
		return nil, fmt.Errorf("frame is %dx%d but dataset declares %dx%d",
			img.Pixels.Cols, img.Pixels.Rows, img.Columns, img.Rows)
	}
	return img, nil
}

// bufferFromNative copies a native frame into a buffer. Values are masked to
// bitsStored and sign-extended when the source is signed.
func bufferFromNative(nf frame.INativeFrame, bitsStored int, signed bool) (pixel.Buffer, error) {
	rows, cols, spp := nf.Rows(), nf.Cols(), nf.SamplesPerPixel()
	if spp == 0 {
		spp = 1
	}
	if bitsStored <= 0 || bitsStored > nf.BitsPerSample() {
		bitsStored = nf.BitsPerSample()
	}
	if bitsStored == 32 && !signed {
		return pixel.Buffer{}, fmt.Errorf("32-bit unsigned pixel data is not supported")
	}

	buf := pixel.Buffer{
		Rows:    rows,
		Cols:    cols,
		Samples: spp,
		Depth:   bitsStored,
		Signed:  signed,
		Data:    make([]int32, rows*cols*spp),
	}

	var raw []uint32
	switch data := nf.RawDataSlice().(type) {
	case []uint8:
		raw = widen(data)
	case []uint16:
		raw = widen(data)
	case []uint32:
		raw = data
	default:
		return pixel.Buffer{}, fmt.Errorf("unsupported native pixel type %T", data)
	}
	if len(raw) < len(buf.Data) {
		return pixel.Buffer{}, fmt.Errorf("frame holds %d samples, expected %d", len(raw), len(buf.Data))
	}

	mask := uint32(1)<<bitsStored - 1
	if bitsStored == 32 {
		mask = ^uint32(0)
	}
	sign := uint32(1) << (bitsStored - 1)
	for i := range buf.Data {
		v := raw[i] & mask
		if signed && v&sign != 0 {
			buf.Data[i] = int32(int64(v) - int64(1)<<bitsStored)
		} else {
			buf.Data[i] = int32(v)
		}
	}
	return buf, nil
}

func widen[T uint8 | uint16](in []T) []uint32 {
	out := make([]uint32, len(in))
	for i, v := range in {
		out[i] = uint32(v)
	}
	return out
}
