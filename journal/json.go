package journal

import (
	"encoding/json"
	"fmt"
	"os"
)

// SaveJSON writes r as indented JSON.
func SaveJSON(path string, r Report) error {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

func LoadJSON(path string) (Report, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Report{}, err
	}
	var r Report
	if err := json.Unmarshal(b, &r); err != nil {
		return Report{}, fmt.Errorf("journal: %s: %w", path, err)
	}
	return r, nil
}
