package generation

import "errors"

// ErrMalformedOutput marks provider output that is neither a string nor a
// non-empty sequence of strings.
var ErrMalformedOutput = errors.New("unexpected output format from provider")

// FirstImage extracts the image reference to display from raw provider
// output. A non-empty string is the reference itself; a non-empty sequence
// of strings displays its first element. Anything else, including an empty
// reference, is malformed and nothing may be shown or persisted for it.
func FirstImage(output any) (string, error) {
	switch v := output.(type) {
	case string:
		if v == "" {
			return "", ErrMalformedOutput
		}
		return v, nil
	case []string:
		if len(v) == 0 || v[0] == "" {
			return "", ErrMalformedOutput
		}
		return v[0], nil
	case []any:
		if len(v) == 0 {
			return "", ErrMalformedOutput
		}
		for _, e := range v {
			if _, ok := e.(string); !ok {
				return "", ErrMalformedOutput
			}
		}
		if v[0] == "" {
			return "", ErrMalformedOutput
		}
		return v[0].(string), nil
	default:
		return "", ErrMalformedOutput
	}
}
