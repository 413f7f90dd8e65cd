package dicom

import (
	"encoding/binary"
	"fmt"
	"sort"
	"time"

	"github.com/mrsinham/dicompixel/internal/pixel"
	"github.com/mrsinham/dicompixel/internal/util"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"
	"github.com/suyashkumar/dicom/pkg/uid"
)

// Placeholder values written into every synthesized record. The source image
// carries no patient or study context.
const (
	PlaceholderPatientName = "Test^Patient"
	PlaceholderPatientID   = "123456"

	// ModalityOther is the DICOM defined term for "other" (OT).
	ModalityOther = "OT"
)

const (
	dicomDateLayout = "20060102"
	dicomTimeLayout = "150405"
)

// Record is a minimal single-frame grayscale DICOM object built around a
// pixel array.
type Record struct {
	SOPClassUID       string
	SOPInstanceUID    string
	StudyInstanceUID  string
	SeriesInstanceUID string

	PatientName string
	PatientID   string
	Modality    string

	StudyID        string
	SeriesNumber   string
	InstanceNumber string

	StudyDate   string
	StudyTime   string
	ContentDate string
	ContentTime string

	Rows                      int
	Columns                   int
	BitsAllocated             int
	BitsStored                int
	HighBit                   int
	PixelRepresentation       int
	SamplesPerPixel           int
	PhotometricInterpretation string

	// PixelData is little-endian 16-bit, row-major.
	PixelData []byte

	// Attributes holds extra text attributes written after the fixed ones.
	Attributes map[tag.Tag]string
}

// BuildOptions configures record synthesis.
type BuildOptions struct {
	// Now supplies the acquisition timestamp. Defaults to time.Now.
	Now func() time.Time

	// Overrides replace the placeholder identity or add attributes.
	Overrides []util.Override
}

// Build wraps a single-sample unsigned buffer (8 or 16 bit) in a new Record.
// Every call generates fresh identifiers.
func Build(buf pixel.Buffer, opts BuildOptions) (*Record, error) {
	if err := buf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pixel buffer: %w", err)
	}
	if buf.Samples != 1 {
		return nil, fmt.Errorf("expected single-sample pixels, got %d samples per pixel", buf.Samples)
	}
	if buf.Signed || buf.Depth > 16 {
		return nil, fmt.Errorf("expected unsigned pixels of at most 16 bits, got %d-bit signed=%v", buf.Depth, buf.Signed)
	}

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	ts := now()

	data := make([]byte, 2*len(buf.Data))
	for i, v := range buf.Data {
		binary.LittleEndian.PutUint16(data[2*i:], uint16(v))
	}

	rec := &Record{
		SOPClassUID:               util.NewUID(),
		SOPInstanceUID:            util.NewUID(),
		StudyInstanceUID:          util.NewUID(),
		SeriesInstanceUID:         util.NewUID(),
		PatientName:               PlaceholderPatientName,
		PatientID:                 PlaceholderPatientID,
		Modality:                  ModalityOther,
		StudyID:                   "1",
		SeriesNumber:              "1",
		InstanceNumber:            "1",
		StudyDate:                 ts.Format(dicomDateLayout),
		StudyTime:                 ts.Format(dicomTimeLayout),
		ContentDate:               ts.Format(dicomDateLayout),
		ContentTime:               ts.Format(dicomTimeLayout),
		Rows:                      buf.Rows,
		Columns:                   buf.Cols,
		BitsAllocated:             16,
		BitsStored:                16,
		HighBit:                   15,
		PixelRepresentation:       0,
		SamplesPerPixel:           1,
		PhotometricInterpretation: "MONOCHROME2",
		PixelData:                 data,
	}
	rec.apply(opts.Overrides)
	return rec, nil
}

// apply sets overrides on the matching fields. Attributes without a field
// go to r.Attributes.
func (r *Record) apply(overrides []util.Override) {
	for _, o := range overrides {
		switch o.Tag {
		case tag.PatientName:
			r.PatientName = o.Value
		case tag.PatientID:
			r.PatientID = o.Value
		case tag.Modality:
			r.Modality = o.Value
		case tag.StudyID:
			r.StudyID = o.Value
		default:
			if r.Attributes == nil {
				r.Attributes = make(map[tag.Tag]string)
			}
			r.Attributes[o.Tag] = o.Value
		}
	}
}

// Dataset converts the record into a writable dataset, file meta group
// included.
func (r *Record) Dataset() (dicom.Dataset, error) {
	pixels := r.Rows * r.Columns
	if len(r.PixelData) != 2*pixels {
		return dicom.Dataset{}, fmt.Errorf("pixel payload is %d bytes, expected %d for %dx%d",
			len(r.PixelData), 2*pixels, r.Columns, r.Rows)
	}

	nativeFrame := frame.NewNativeFrame[uint16](r.BitsAllocated, r.Rows, r.Columns, pixels, r.SamplesPerPixel)
	for i := 0; i < pixels; i++ {
		nativeFrame.RawData[i] = binary.LittleEndian.Uint16(r.PixelData[2*i:])
	}

	pixelDataInfo := dicom.PixelDataInfo{
		Frames: []*frame.Frame{
			{
				Encapsulated: false,
				NativeData:   nativeFrame,
			},
		},
	}

	elements := []*dicom.Element{
		mustNewElement(tag.MediaStorageSOPClassUID, []string{r.SOPClassUID}),
		mustNewElement(tag.MediaStorageSOPInstanceUID, []string{r.SOPInstanceUID}),
		mustNewElement(tag.TransferSyntaxUID, []string{uid.ExplicitVRLittleEndian}),
		mustNewElement(tag.SOPClassUID, []string{r.SOPClassUID}),
		mustNewElement(tag.SOPInstanceUID, []string{r.SOPInstanceUID}),
		mustNewElement(tag.StudyDate, []string{r.StudyDate}),
		mustNewElement(tag.ContentDate, []string{r.ContentDate}),
		mustNewElement(tag.StudyTime, []string{r.StudyTime}),
		mustNewElement(tag.ContentTime, []string{r.ContentTime}),
		mustNewElement(tag.Modality, []string{r.Modality}),
		mustNewElement(tag.PatientName, []string{r.PatientName}),
		mustNewElement(tag.PatientID, []string{r.PatientID}),
		mustNewElement(tag.StudyInstanceUID, []string{r.StudyInstanceUID}),
		mustNewElement(tag.SeriesInstanceUID, []string{r.SeriesInstanceUID}),
		mustNewElement(tag.StudyID, []string{r.StudyID}),
		mustNewElement(tag.SeriesNumber, []string{r.SeriesNumber}),
		mustNewElement(tag.InstanceNumber, []string{r.InstanceNumber}),
		mustNewElement(tag.SamplesPerPixel, []int{r.SamplesPerPixel}),
		mustNewElement(tag.PhotometricInterpretation, []string{r.PhotometricInterpretation}),
		mustNewElement(tag.Rows, []int{r.Rows}),
		mustNewElement(tag.Columns, []int{r.Columns}),
		mustNewElement(tag.BitsAllocated, []int{r.BitsAllocated}),
		mustNewElement(tag.BitsStored, []int{r.BitsStored}),
		mustNewElement(tag.HighBit, []int{r.HighBit}),
		mustNewElement(tag.PixelRepresentation, []int{r.PixelRepresentation}),
		mustNewElement(tag.PixelData, pixelDataInfo),
	}

	for t, v := range r.Attributes {
		elem, err := dicom.NewElement(t, []string{v})
		if err != nil {
			return dicom.Dataset{}, fmt.Errorf("attribute %v: %w", t, err)
		}
		elements = append(elements, elem)
	}
	sort.SliceStable(elements, func(i, j int) bool {
		a, b := elements[i].Tag, elements[j].Tag
		if a.Group != b.Group {
			return a.Group < b.Group
		}
		return a.Element < b.Element
	})

	return dicom.Dataset{Elements: elements}, nil
}

// WriteFile serializes the record to path.
func WriteFile(path string, r *Record) error {
	ds, err := r.Dataset()
	if err != nil {
		return err
	}
	if err := writeDatasetToFile(path, ds); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
