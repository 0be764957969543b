package expressions

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

type Access interface {
	Apply(data any) (any, error)
}

type FieldAccess struct {
	Name string
}

func (f FieldAccess) Apply(data any) (any, error) {
	switch m := data.(type) {
	case map[string]any:
		if val, exists := m[f.Name]; exists {
			return val, nil
		}
		return nil, fmt.Errorf("field '%s' not found", f.Name)
	case map[string]string:
		if val, exists := m[f.Name]; exists {
			return val, nil
		}
		return nil, fmt.Errorf("field '%s' not found", f.Name)
	case []any:
		// dotted numeric segments ("items.0") index into arrays
		index, err := strconv.Atoi(f.Name)
		if err != nil {
			if f.Name == "length" {
				return len(m), nil
			}
			return nil, fmt.Errorf("cannot access field '%s' on array", f.Name)
		}
		return IndexAccess{Index: index}.Apply(m)
	}

	return nil, fmt.Errorf("cannot access field '%s' on %T", f.Name, data)
}

type IndexAccess struct {
	Index int
}

func (i IndexAccess) Apply(data any) (any, error) {
	switch arr := data.(type) {
	case []any:
		index := i.Index
		if index < 0 {
			index = len(arr) + index
		}
		if index < 0 || index >= len(arr) {
			return nil, fmt.Errorf("index %d out of bounds [0:%d]", i.Index, len(arr))
		}
		return arr[index], nil
	case []string:
		if i.Index < 0 || i.Index >= len(arr) {
			return nil, fmt.Errorf("index %d out of bounds [0:%d]", i.Index, len(arr))
		}
		return arr[i.Index], nil
	case []map[string]any:
		if i.Index < 0 || i.Index >= len(arr) {
			return nil, fmt.Errorf("index %d out of bounds [0:%d]", i.Index, len(arr))
		}
		return arr[i.Index], nil
	default:
		return nil, fmt.Errorf("cannot index %T", data)
	}
}

// ParsePath splits "data.users[2].address" into field and index accesses.
func ParsePath(path string) ([]Access, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("empty path")
	}

	var accesses []Access

	for _, part := range strings.Split(path, ".") {
		if part == "" {
			return nil, fmt.Errorf("invalid path %q", path)
		}

		name := part
		var indexes []int

		for strings.HasSuffix(name, "]") {
			open := strings.LastIndex(name, "[")
			if open < 0 {
				return nil, fmt.Errorf("invalid path %q: unbalanced brackets", path)
			}

			index, err := strconv.Atoi(strings.TrimSpace(name[open+1 : len(name)-1]))
			if err != nil {
				return nil, fmt.Errorf("invalid path %q: non-numeric index", path)
			}

			indexes = append([]int{index}, indexes...)
			name = name[:open]
		}

		if name != "" {
			accesses = append(accesses, FieldAccess{Name: name})
		}

		for _, index := range indexes {
			accesses = append(accesses, IndexAccess{Index: index})
		}
	}

	return accesses, nil
}

// GetValue walks a dotted path through nested maps and slices.
func GetValue(data any, path string) (any, error) {
	accesses, err := ParsePath(path)
	if err != nil {
		return nil, err
	}

	current := data
	for _, access := range accesses {
		current, err = access.Apply(current)
		if err != nil {
			return nil, err
		}
	}

	return current, nil
}

// Lookup is GetValue without the error detail.
func Lookup(data any, path string) (any, bool) {
	value, err := GetValue(data, path)
	if err != nil {
		return nil, false
	}

	return value, true
}

// SetValue writes value at a dotted path, creating intermediate maps.
func SetValue(data map[string]any, path string, value any) error {
	parts := strings.Split(strings.TrimSpace(path), ".")
	if len(parts) == 0 || parts[0] == "" {
		return fmt.Errorf("empty path")
	}

	current := data
	for _, part := range parts[:len(parts)-1] {
		next, exists := current[part]
		if !exists {
			next = make(map[string]any)
			current[part] = next
		}

		nextMap, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("cannot set nested field: '%s' is not a map", part)
		}

		current = nextMap
	}

	current[parts[len(parts)-1]] = value
	return nil
}

// DeleteValue removes the value at a dotted path if it exists.
func DeleteValue(data map[string]any, path string) {
	parts := strings.Split(strings.TrimSpace(path), ".")

	current := data
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			return
		}
		current = next
	}

	delete(current, parts[len(parts)-1])
}

// ToGJSONPath rewrites bracket indices into gjson's dotted form.
func ToGJSONPath(path string) string {
	replacer := strings.NewReplacer("[", ".", "]", "")
	return strings.TrimPrefix(replacer.Replace(path), ".")
}

// ExtractJSON reads a path straight out of a raw JSON document.
func ExtractJSON(raw []byte, path string) (any, bool) {
	if path == "" {
		return gjson.ParseBytes(raw).Value(), true
	}

	result := gjson.GetBytes(raw, ToGJSONPath(path))
	if !result.Exists() {
		return nil, false
	}

	return result.Value(), true
}
