package dataset

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tordrt/lala/internal/apperrors"
)

// SampleID identifies one dataset row as <entity id>-<interval part>.
// The interval part is optional.
type SampleID struct {
	EntityID     int64
	IntervalPart string
	HasInterval  bool
}

// ParseSampleID splits a sample id on its first '-'.
func ParseSampleID(s string) (SampleID, error) {
	idPart, intervalPart, hasInterval := strings.Cut(s, "-")
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return SampleID{}, fmt.Errorf("%w: sample id %q has no numeric entity part", apperrors.ErrInvalidInput, s)
	}
	return SampleID{EntityID: id, IntervalPart: intervalPart, HasInterval: hasInterval}, nil
}

// String reassembles the sample id.
func (s SampleID) String() string {
	if !s.HasInterval {
		return strconv.FormatInt(s.EntityID, 10)
	}
	return strconv.FormatInt(s.EntityID, 10) + "-" + s.IntervalPart
}

// WithEntityID returns a copy carrying another entity id and the same interval part.
func (s SampleID) WithEntityID(id int64) SampleID {
	s.EntityID = id
	return s
}

// IDPart returns the text before the first '-', or the whole sample id.
func IDPart(sampleID string) string {
	idPart, _, _ := strings.Cut(sampleID, "-")
	return idPart
}

// IntervalPart returns the text after the first '-'. ok is false when the
// sample id carries no interval part.
func IntervalPart(sampleID string) (part string, ok bool) {
	_, part, ok = strings.Cut(sampleID, "-")
	return part, ok
}
