package secrets

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/custodia-labs/signdesk/internal/core/ports/driven"
)

// MarshalValues encodes form values for a storage column. With a nil sealer
// the JSON is stored as-is.
func MarshalValues(sealer driven.ValueSealer, values map[string]string) (string, error) {
	if values == nil {
		values = map[string]string{}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("marshal values: %w", err)
	}
	if sealer == nil {
		return string(raw), nil
	}
	return sealer.Seal(string(raw))
}

// UnmarshalValues decodes a column written by MarshalValues. Plain JSON rows
// written before sealing was enabled are still readable.
func UnmarshalValues(sealer driven.ValueSealer, stored string) (map[string]string, error) {
	plain := stored
	if sealer != nil && !strings.HasPrefix(strings.TrimSpace(stored), "{") {
		opened, err := sealer.Open(stored)
		if err != nil {
			return nil, err
		}
		plain = opened
	}

	values := map[string]string{}
	if plain == "" {
		return values, nil
	}
	if err := json.Unmarshal([]byte(plain), &values); err != nil {
		return nil, fmt.Errorf("unmarshal values: %w", err)
	}
	return values, nil
}
