package core

import (
	"encoding/json"

	"picodemo/errcode"
)

// As[T] converts a control payload to T. It accepts T, *T, nil (zero
// value) and generic JSON-shaped values (map[string]any and friends, as
// produced by the config service), which are re-decoded into T.
func As[T any](v any) (T, errcode.Code) {
	var zero T
	switch x := v.(type) {
	case nil:
		return zero, ""
	case T:
		return x, ""
	case *T:
		if x == nil {
			return zero, ""
		}
		return *x, ""
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return zero, errcode.InvalidPayload
		}
		var t T
		if err := json.Unmarshal(b, &t); err != nil {
			return zero, errcode.InvalidPayload
		}
		return t, ""
	default:
		return zero, errcode.InvalidPayload
	}
}

// Params[T] is As[T] for builder params: a missing or mistyped value is
// invalid_params.
func Params[T any](v any) (T, error) {
	if v == nil {
		var zero T
		return zero, errcode.InvalidParams
	}
	t, code := As[T](v)
	if code != "" {
		return t, errcode.InvalidParams
	}
	return t, nil
}
