package util

import (
	"math/big"

	"github.com/google/uuid"
)

// uuidRoot is the DICOM root for UIDs derived from a UUID (PS3.5 B.2).
const uuidRoot = "2.25."

// NewUID returns a fresh, globally unique DICOM UID of the form
// 2.25.<uuid as unsigned decimal>. The result is at most 44 characters.
func NewUID() string {
	id := uuid.New()
	n := new(big.Int).SetBytes(id[:])
	return uuidRoot + n.String()
}
