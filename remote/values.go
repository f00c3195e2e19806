package remote

// NormalizeKey folds every integer kind into int64 so that a map key written as
// an int and read back as an int64 compares equal. Other values are returned unchanged.
func NormalizeKey(v any) any {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	default:
		return v
	}
}

// AsMap converts a decoded container bin into a map with normalized keys.
// It reports false when raw is not a map.
func AsMap(raw any) (map[any]any, bool) {
	switch m := raw.(type) {
	case map[any]any:
		out := make(map[any]any, len(m))
		for k, v := range m {
			out[NormalizeKey(k)] = v
		}
		return out, true
	case map[string]any:
		out := make(map[any]any, len(m))
		for k, v := range m {
			out[k] = v
		}
		return out, true
	default:
		return nil, false
	}
}

// Clone returns a shallow copy of the bins
func (b Bins) Clone() Bins {
	if b == nil {
		return nil
	}
	out := make(Bins, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}
