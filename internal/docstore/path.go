package docstore

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// splitPath separates a path into its document key ("rooms/abc") and the
// remaining segments addressing inside the document.
func splitPath(path string) (docKey string, inner []string, err error) {
	segs := strings.Split(strings.Trim(path, "/"), "/")
	if len(segs) < 2 || segs[0] == "" || segs[1] == "" {
		return "", nil, fmt.Errorf("docstore: path %q must have at least collection/id", path)
	}
	return segs[0] + "/" + segs[1], segs[2:], nil
}

func collectionOf(docKey string) string {
	return docKey[:strings.Index(docKey, "/")]
}

// valueAt walks a decoded JSON tree along segs. The second result is
// false when the path does not exist.
func valueAt(tree any, segs []string) (any, bool) {
	cur := tree
	for _, seg := range segs {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// setAt replaces the value at segs inside tree, creating intermediate
// objects as needed, and returns the updated tree.
func setAt(tree any, segs []string, value any) any {
	if len(segs) == 0 {
		return value
	}
	seg, rest := segs[0], segs[1:]

	if list, ok := tree.([]any); ok {
		if i, err := strconv.Atoi(seg); err == nil && i >= 0 && i < len(list) {
			list[i] = setAt(list[i], rest, value)
			return list
		}
	}

	obj, ok := tree.(map[string]any)
	if !ok {
		obj = map[string]any{}
	}
	obj[seg] = setAt(obj[seg], rest, value)
	return obj
}

// deleteAt removes the value at segs. Removing a list element nulls the
// slot rather than shifting, leaving a hole for readers to compact.
func deleteAt(tree any, segs []string) any {
	if len(segs) == 0 {
		return nil
	}
	seg, rest := segs[0], segs[1:]

	switch node := tree.(type) {
	case []any:
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 || i >= len(node) {
			return node
		}
		if len(rest) == 0 {
			node[i] = nil
			return node
		}
		node[i] = deleteAt(node[i], rest)
		return node
	case map[string]any:
		if len(rest) == 0 {
			delete(node, seg)
			return node
		}
		if child, ok := node[seg]; ok {
			node[seg] = deleteAt(child, rest)
		}
		return node
	}
	return tree
}

// mergeAt applies fields into the object at segs, creating it if absent.
func mergeAt(tree any, segs []string, fields map[string]any) any {
	target, ok := valueAt(tree, segs)
	obj, isObj := target.(map[string]any)
	if !ok || !isObj {
		obj = map[string]any{}
	}
	for k, v := range fields {
		obj[k] = v
	}
	return setAt(tree, segs, obj)
}

// toJSONValue round-trips v through JSON so the tree only ever holds
// generic map/slice/float values.
func toJSONValue(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func jsonFieldsValue(fields map[string]any) (map[string]any, error) {
	v, err := toJSONValue(fields)
	if err != nil {
		return nil, err
	}
	return v.(map[string]any), nil
}
