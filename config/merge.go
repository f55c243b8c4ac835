package config

// mergeRaw merges an override document into base. Nested maps are merged
// key by key; any other value in override replaces the base value.
func mergeRaw(base, override map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(base)+len(override))
	for k, v := range base {
		result[k] = v
	}

	for key, value := range override {
		if baseValue, exists := result[key]; exists {
			if baseMap, baseOk := baseValue.(map[string]interface{}); baseOk {
				if overrideMap, overrideOk := value.(map[string]interface{}); overrideOk {
					result[key] = mergeRaw(baseMap, overrideMap)
					continue
				}
			}
		}
		result[key] = value
	}

	return result
}
