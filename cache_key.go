package starmap

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Key prefixes distinguish exact content keys from structural fingerprints.
const (
	contentKeyPrefix     = "content:"
	fingerprintKeyPrefix = "fingerprint:"
)

// fingerprint is the bounded structural summary used for large datasets. Two
// datasets with the same count, sampled ids and pixel source share a key;
// that collision risk is accepted in exchange for bounded key cost.
type fingerprint struct {
	Count  int      `json:"count"`
	IDs    []string `json:"ids"`
	Pixels string   `json:"pixels"`
}

// deriveKey builds the cache key for raw. It fails when raw cannot be
// serialised, for instance when it references itself.
func deriveKey(raw any, threshold, sample int) (key string, err error) {
	defer func() {
		if r := recover(); r != nil {
			key = ""
			err = fmt.Errorf("starmap: cache key: %v", r)
		}
	}()

	root, isObject := asObject(raw)
	systems, _ := asObject(root[FieldSystems])
	if !isObject || len(systems) < threshold {
		payload, err := json.Marshal(raw)
		if err != nil {
			return "", fmt.Errorf("starmap: cache key: %w", err)
		}
		return contentKeyPrefix + string(payload), nil
	}

	ids := make([]string, 0, len(systems))
	for id := range systems {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if len(ids) > sample {
		ids = ids[:sample]
	}
	_, pixels := pixelSource(root)

	payload, err := json.Marshal(fingerprint{Count: len(systems), IDs: ids, Pixels: pixels})
	if err != nil {
		return "", fmt.Errorf("starmap: cache key: %w", err)
	}
	return fingerprintKeyPrefix + string(payload), nil
}
