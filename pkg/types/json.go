package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONMap is a free-form object persisted in a jsonb column.
type JSONMap map[string]any

func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return jsonValue(map[string]any(j))
}

func (j *JSONMap) Scan(value interface{}) error {
	decoded, err := scanJSON[map[string]any](value)
	if err != nil {
		return err
	}
	*j = decoded
	return nil
}

func jsonValue(v any) (driver.Value, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode jsonb column: %w", err)
	}
	return string(raw), nil
}

// scanJSON decodes a driver value into T. A SQL NULL yields the zero value.
func scanJSON[T any](value interface{}) (T, error) {
	var out T
	var raw []byte
	switch v := value.(type) {
	case nil:
		return out, nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return out, fmt.Errorf("unsupported scan type %T", value)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode jsonb column: %w", err)
	}
	return out, nil
}
