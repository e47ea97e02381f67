package vecindex

import (
	"encoding/json"
	"fmt"
	"os"
)

// Entry is one persisted passage: its identifier, the source text, and the
// embedding vector. Text travels with the vector so a single file replaces
// the separate index/passages pair.
type Entry struct {
	ID     string    `json:"id"`
	Text   string    `json:"text"`
	Vector []float32 `json:"vector"`
}

// File is the on-disk index format.
type File struct {
	Dim     int     `json:"dim"`
	Entries []Entry `json:"entries"`
}

// Save writes the index entries and their texts to path as JSON.
func Save(path string, entries []Entry) error {
	if len(entries) == 0 {
		return fmt.Errorf("vecindex: nothing to save")
	}

	file := File{Dim: len(entries[0].Vector), Entries: entries}
	for _, e := range entries {
		if len(e.Vector) != file.Dim {
			return fmt.Errorf("%w: entry %q has %d dimensions, expected %d",
				ErrDimensionMismatch, e.ID, len(e.Vector), file.Dim)
		}
	}

	data, err := json.Marshal(file)
	if err != nil {
		return fmt.Errorf("vecindex: marshal index: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("vecindex: write %s: %w", path, err)
	}
	return nil
}

// Load reads an index file and returns the populated index plus the
// id-to-text mapping for its passages.
func Load(path string) (*Flat, map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("vecindex: read %s: %w", path, err)
	}

	var file File
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, nil, fmt.Errorf("vecindex: parse %s: %w", path, err)
	}

	idx := NewFlat()
	texts := make(map[string]string, len(file.Entries))
	for _, e := range file.Entries {
		if err := idx.Add(e.ID, e.Vector); err != nil {
			return nil, nil, err
		}
		texts[e.ID] = e.Text
	}
	return idx, texts, nil
}
