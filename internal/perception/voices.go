package perception

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"tribune/internal/types"
)

// LoadVoices reads the voice whitelist. The file groups voices under
// arbitrary top-level keys; all groups are flattened.
func LoadVoices(path string) ([]types.Voice, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read voices file: %w", err)
	}

	var groups map[string][]types.Voice
	if err := yaml.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("failed to parse voices file: %w", err)
	}

	var voices []types.Voice
	for _, group := range groups {
		for _, v := range group {
			if v.Username == "" {
				continue
			}
			if v.Platform == "" {
				v.Platform = "x"
			}
			voices = append(voices, v)
		}
	}
	return voices, nil
}
