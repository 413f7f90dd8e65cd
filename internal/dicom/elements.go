package dicom

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// mustNewElement creates a DICOM element and panics on error.
// Only used with statically typed values.
func mustNewElement(t tag.Tag, value interface{}) *dicom.Element {
	elem, err := dicom.NewElement(t, value)
	if err != nil {
		panic(fmt.Sprintf("failed to create element %v: %v", t, err))
	}
	return elem
}

// writeDatasetToFile writes a DICOM dataset to a file
func writeDatasetToFile(filename string, ds dicom.Dataset, opts ...dicom.WriteOption) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := dicom.Write(f, ds, opts...); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// stringValue returns the first string value of an element, trimmed of DICOM
// padding. Missing elements yield "".
func stringValue(ds dicom.Dataset, t tag.Tag) string {
	elem, err := ds.FindElementByTag(t)
	if err != nil || elem.Value == nil {
		return ""
	}
	switch v := elem.Value.GetValue().(type) {
	case []string:
		if len(v) > 0 {
			return strings.TrimRight(strings.TrimSpace(v[0]), "\x00")
		}
	case []int:
		if len(v) > 0 {
			return strconv.Itoa(v[0])
		}
	}
	return ""
}

// intValue returns the first integer value of an element. IS/DS string
// values are parsed.
func intValue(ds dicom.Dataset, t tag.Tag) (int, bool) {
	elem, err := ds.FindElementByTag(t)
	if err != nil || elem.Value == nil {
		return 0, false
	}
	switch v := elem.Value.GetValue().(type) {
	case []int:
		if len(v) > 0 {
			return v[0], true
		}
	case []string:
		if len(v) > 0 {
			n, err := strconv.Atoi(strings.TrimSpace(strings.TrimRight(v[0], "\x00")))
			if err == nil {
				return n, true
			}
		}
	}
	return 0, false
}
