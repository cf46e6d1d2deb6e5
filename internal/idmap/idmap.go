// Package idmap maps original record ids to random pseudonyms and back.
//
// One Map exists per table taking part in an anonymized export. Pseudonyms are
// drawn from a sparse range whose size scales with the number of ids and a
// random factor, so neither their order nor their distance says anything about
// the original ids.
package idmap

import (
	"fmt"
	"math/rand"

	"github.com/samber/lo"

	"github.com/tordrt/lala/internal/apperrors"
	"github.com/tordrt/lala/internal/dataset"
)

const (
	// pseudonymFloor is the smallest pseudonym ever handed out.
	pseudonymFloor = 100

	minSpread = 3
	maxSpread = 10
)

// Map is an immutable bijection between original ids and pseudonyms.
type Map struct {
	originalIDs []int64
	pseudonyms  []int64

	byOriginal  map[int64]int64
	byPseudonym map[int64]int64
}

// New pairs originalIDs[i] with pseudonyms[i].
func New(originalIDs, pseudonyms []int64) (*Map, error) {
	if len(originalIDs) == 0 {
		return nil, fmt.Errorf("%w: no ids to map", apperrors.ErrInvalidInput)
	}
	if len(originalIDs) != len(pseudonyms) {
		return nil, fmt.Errorf("%w: %d ids but %d pseudonyms", apperrors.ErrInvalidInput, len(originalIDs), len(pseudonyms))
	}

	m := &Map{
		originalIDs: append([]int64(nil), originalIDs...),
		pseudonyms:  append([]int64(nil), pseudonyms...),
		byOriginal:  make(map[int64]int64, len(originalIDs)),
		byPseudonym: make(map[int64]int64, len(pseudonyms)),
	}
	for i, id := range originalIDs {
		if _, dup := m.byOriginal[id]; dup {
			return nil, fmt.Errorf("%w: duplicate id %d", apperrors.ErrInvalidInput, id)
		}
		if _, dup := m.byPseudonym[pseudonyms[i]]; dup {
			return nil, fmt.Errorf("%w: duplicate pseudonym %d", apperrors.ErrInvalidInput, pseudonyms[i])
		}
		m.byOriginal[id] = pseudonyms[i]
		m.byPseudonym[pseudonyms[i]] = id
	}
	return m, nil
}

// FromIDs builds a map with freshly generated pseudonyms.
//
// The pseudonyms are len(ids) distinct values drawn uniformly from
// [100, 100*k*len(ids)] where k is picked at random from [3, 10].
func FromIDs(ids []int64) (*Map, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no ids to map", apperrors.ErrInvalidInput)
	}
	return New(ids, generatePseudonyms(len(ids)))
}

// generatePseudonyms samples n distinct values without materializing the
// whole range. The range is at least 300 times wider than n, so rejections
// stay rare.
func generatePseudonyms(n int) []int64 {
	spread := int64(minSpread + rand.Intn(maxSpread-minSpread+1))
	ceiling := pseudonymFloor * spread * int64(n)
	width := ceiling - pseudonymFloor + 1

	seen := make(map[int64]struct{}, n)
	pool := make([]int64, 0, n)
	for len(pool) < n {
		candidate := pseudonymFloor + rand.Int63n(width)
		if _, taken := seen[candidate]; taken {
			continue
		}
		seen[candidate] = struct{}{}
		pool = append(pool, candidate)
	}
	return lo.Shuffle(pool)
}

// Pseudonym returns the pseudonym assigned to originalID.
func (m *Map) Pseudonym(originalID int64) (int64, error) {
	p, ok := m.byOriginal[originalID]
	if !ok {
		return 0, fmt.Errorf("%w: no pseudonym for id %d", apperrors.ErrNotFound, originalID)
	}
	return p, nil
}

// OriginalID returns the id a pseudonym was assigned to.
func (m *Map) OriginalID(pseudonym int64) (int64, error) {
	id, ok := m.byPseudonym[pseudonym]
	if !ok {
		return 0, fmt.Errorf("%w: no id for pseudonym %d", apperrors.ErrNotFound, pseudonym)
	}
	return id, nil
}

// HasOriginalID reports whether originalID is mapped.
func (m *Map) HasOriginalID(originalID int64) bool {
	_, ok := m.byOriginal[originalID]
	return ok
}

// PseudonymSampleID rewrites the entity part of a sample id and keeps its
// interval part.
func (m *Map) PseudonymSampleID(sampleID string) (string, error) {
	sid, err := dataset.ParseSampleID(sampleID)
	if err != nil {
		return "", err
	}
	p, err := m.Pseudonym(sid.EntityID)
	if err != nil {
		return "", err
	}
	return sid.WithEntityID(p).String(), nil
}

// Count returns the number of mapped pairs.
func (m *Map) Count() int {
	return len(m.originalIDs)
}

// OriginalIDs returns the mapped ids in construction order.
func (m *Map) OriginalIDs() []int64 {
	return append([]int64(nil), m.originalIDs...)
}

// Pseudonyms returns the pseudonyms positionally paired with OriginalIDs.
func (m *Map) Pseudonyms() []int64 {
	return append([]int64(nil), m.pseudonyms...)
}

// Contains reports whether other is disjoint from m: none of other's ids may
// be mapped here, and every pseudonym of other that m also hands out must
// resolve to the same original id in both maps. Since the ids are disjoint,
// any shared pseudonym fails the second check.
func (m *Map) Contains(other *Map) bool {
	for i, id := range other.originalIDs {
		if m.HasOriginalID(id) {
			return false
		}
		if mine, ok := m.byPseudonym[other.pseudonyms[i]]; ok && mine != id {
			return false
		}
	}
	return true
}
