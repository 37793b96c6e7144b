package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Merge applies patch over prev field by field and returns the result.
//
// The merge is shallow: each top-level key present in patch replaces the
// whole field (a map in the patch replaces the previous map, it is not
// merged into it). Keys absent from patch keep their previous value. prev is
// not modified.
func Merge[T any](prev T, patch json.RawMessage) (T, error) {
	var zero T

	fields, err := decodeObject(patch)
	if err != nil {
		return zero, fmt.Errorf("merge: %w", err)
	}

	base, err := json.Marshal(prev)
	if err != nil {
		return zero, fmt.Errorf("merge: encode previous: %w", err)
	}
	merged, err := decodeObject(base)
	if err != nil {
		return zero, fmt.Errorf("merge: %w", err)
	}

	for k, v := range fields {
		merged[k] = v
	}

	out, err := json.Marshal(merged)
	if err != nil {
		return zero, fmt.Errorf("merge: encode merged: %w", err)
	}

	var next T
	if err := json.Unmarshal(out, &next); err != nil {
		return zero, fmt.Errorf("merge: decode merged: %w", err)
	}
	return next, nil
}

// PatchID extracts the "id" field of a JSON object patch.
func PatchID(patch json.RawMessage) (string, error) {
	var head struct {
		ID *string `json:"id"`
	}
	if err := json.Unmarshal(patch, &head); err != nil {
		return "", fmt.Errorf("decode id: %w", err)
	}
	if head.ID == nil || *head.ID == "" {
		return "", fmt.Errorf("missing id")
	}
	return *head.ID, nil
}

func decodeObject(data []byte) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("patch must be a JSON object")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, fmt.Errorf("decode object: %w", err)
	}
	return fields, nil
}
