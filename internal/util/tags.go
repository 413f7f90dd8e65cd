package util

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/suyashkumar/dicom/pkg/tag"
)

// TagInfo names a text attribute that may be set on synthesized records.
type TagInfo struct {
	Name string
	Tag  tag.Tag
	Date bool // DA value, YYYYMMDD
}

// dicomDateLayout is the layout of a DA value.
const dicomDateLayout = "20060102"

// Override is a user supplied value for one attribute.
type Override struct {
	TagInfo
	Value string
}

// tagRegistry maps lowercase keywords to the attributes that may be
// overridden. Geometry, pixel and UID attributes are derived from the image
// and are not listed.
var tagRegistry = map[string]TagInfo{
	// Patient
	"patientname":      {Name: "PatientName", Tag: tag.PatientName},
	"patientid":        {Name: "PatientID", Tag: tag.PatientID},
	"patientbirthdate": {Name: "PatientBirthDate", Tag: tag.PatientBirthDate, Date: true},
	"patientsex":       {Name: "PatientSex", Tag: tag.PatientSex},

	// Study
	"studyid":                     {Name: "StudyID", Tag: tag.StudyID},
	"studydescription":            {Name: "StudyDescription", Tag: tag.StudyDescription},
	"accessionnumber":             {Name: "AccessionNumber", Tag: tag.AccessionNumber},
	"institutionname":             {Name: "InstitutionName", Tag: tag.InstitutionName},
	"institutionaldepartmentname": {Name: "InstitutionalDepartmentName", Tag: tag.InstitutionalDepartmentName},
	"referringphysicianname":      {Name: "ReferringPhysicianName", Tag: tag.ReferringPhysicianName},
	"operatorsname":               {Name: "OperatorsName", Tag: tag.OperatorsName},
	"stationname":                 {Name: "StationName", Tag: tag.StationName},

	// Series
	"modality":              {Name: "Modality", Tag: tag.Modality},
	"seriesdescription":     {Name: "SeriesDescription", Tag: tag.SeriesDescription},
	"protocolname":          {Name: "ProtocolName", Tag: tag.ProtocolName},
	"bodypartexamined":      {Name: "BodyPartExamined", Tag: tag.BodyPartExamined},
	"manufacturer":          {Name: "Manufacturer", Tag: tag.Manufacturer},
	"manufacturermodelname": {Name: "ManufacturerModelName", Tag: tag.ManufacturerModelName},
}

// GetTagByName looks up an attribute by keyword, case-insensitively. Unknown
// names get a suggestion when one is close enough.
func GetTagByName(name string) (TagInfo, error) {
	normalizedName := strings.ToLower(strings.TrimSpace(name))

	if info, ok := tagRegistry[normalizedName]; ok {
		return info, nil
	}

	if suggestion := findClosestTagName(normalizedName); suggestion != "" {
		return TagInfo{}, fmt.Errorf("unknown tag %q, did you mean %q?", name, suggestion)
	}
	return TagInfo{}, fmt.Errorf("unknown tag %q", name)
}

// TagNames returns the keywords accepted by GetTagByName, sorted.
func TagNames() []string {
	names := make([]string, 0, len(tagRegistry))
	for _, info := range tagRegistry {
		names = append(names, info.Name)
	}
	sort.Strings(names)
	return names
}

// ParseTagOverrides parses "Name=Value" pairs. A name may appear once.
func ParseTagOverrides(pairs []string) ([]Override, error) {
	var overrides []Override
	seen := make(map[tag.Tag]bool)

	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid tag %q, expected Name=Value", pair)
		}
		info, err := GetTagByName(name)
		if err != nil {
			return nil, err
		}
		if seen[info.Tag] {
			return nil, fmt.Errorf("tag %s given more than once", info.Name)
		}
		seen[info.Tag] = true

		value = strings.TrimSpace(value)
		if value == "" {
			return nil, fmt.Errorf("tag %s has an empty value", info.Name)
		}
		if info.Date {
			if _, err := time.Parse(dicomDateLayout, value); err != nil {
				return nil, fmt.Errorf("tag %s must be a date in YYYYMMDD form, got %q", info.Name, value)
			}
		}
		overrides = append(overrides, Override{TagInfo: info, Value: value})
	}
	return overrides, nil
}

// findClosestTagName returns the keyword nearest to input, or "" when
// nothing is within 5 edits.
func findClosestTagName(input string) string {
	const maxDistance = 5
	bestDistance := maxDistance + 1
	var bestMatch string

	for key, info := range tagRegistry {
		distance := levenshteinDistance(input, key)
		if distance < bestDistance || (distance == bestDistance && info.Name < bestMatch) {
			bestDistance = distance
			bestMatch = info.Name
		}
	}

	if bestDistance <= maxDistance {
		return bestMatch
	}
	return ""
}

func levenshteinDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	// two rows are enough
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
