// Package jsonmerge concatenates provider result documents shaped as
// {"data": [...]}.
//
// Every layer of the export engine (pages, compartments, time windows)
// folds its partial results through Merge, so the operation must be
// associative with respect to the final data array and must treat an
// absent document as the identity element.
package jsonmerge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// DataField is the top-level array field every mergeable document carries.
const DataField = "data"

// ErrSchema indicates a non-nil merge input without a data field.
var ErrSchema = errors.New("document missing data field")

// Merge concatenates two {"data": [...]} documents into one.
//
// A nil (or empty) side is the identity: Merge(nil, b) == b and
// Merge(a, nil) == a. Merge(nil, nil) is nil. Both non-nil inputs must
// carry a data field; a missing field is ErrSchema. A data value that is
// not an array is wrapped as a single-element array before concatenation.
// Element order within each side is preserved, a's elements first.
func Merge(a, b json.RawMessage) (json.RawMessage, error) {
	if len(a) == 0 && len(b) == 0 {
		return nil, nil
	}
	if len(a) == 0 {
		return b, nil
	}
	if len(b) == 0 {
		return a, nil
	}

	left, err := dataElements(a)
	if err != nil {
		return nil, fmt.Errorf("merge left side: %w", err)
	}
	right, err := dataElements(b)
	if err != nil {
		return nil, fmt.Errorf("merge right side: %w", err)
	}

	return wrapElements(append(left, right...))
}

// WrapData builds a {"data": [...]} document from a raw data value,
// wrapping a non-array value as a single-element array. A nil value
// produces a document with an empty array.
func WrapData(value json.RawMessage) (json.RawMessage, error) {
	if len(value) == 0 {
		return wrapElements(nil)
	}
	elems, err := asArray(value)
	if err != nil {
		return nil, err
	}
	return wrapElements(elems)
}

// dataElements extracts the data field of doc as a slice of elements.
func dataElements(doc json.RawMessage) ([]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(doc, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	value, ok := fields[DataField]
	if !ok {
		return nil, ErrSchema
	}
	return asArray(value)
}

// asArray returns value's elements, wrapping a non-array value as a
// single-element slice. A JSON null counts as an empty array.
func asArray(value json.RawMessage) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var elems []json.RawMessage
		if err := json.Unmarshal(trimmed, &elems); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSchema, err)
		}
		return elems, nil
	}
	if !json.Valid(trimmed) {
		return nil, fmt.Errorf("%w: data value is not valid JSON", ErrSchema)
	}
	return []json.RawMessage{trimmed}, nil
}

// wrapElements marshals elements back into a {"data": [...]} document.
func wrapElements(elems []json.RawMessage) (json.RawMessage, error) {
	if elems == nil {
		elems = []json.RawMessage{}
	}
	doc, err := json.Marshal(map[string][]json.RawMessage{DataField: elems})
	if err != nil {
		return nil, fmt.Errorf("marshal merged document: %w", err)
	}
	return doc, nil
}
