package espo

import (
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strconv"
)

// BuildQuery encodes params the way PHP's http_build_query does, which is
// what EspoCRM expects for nested GET parameters:
//
//	{"where": [{"type": "equals", "attribute": "x"}]} -> where[0][type]=equals&where[0][attribute]=x
//
// Map keys are emitted in sorted order so the output is deterministic.
func BuildQuery(params map[string]any) string {
	values := url.Values{}
	for _, key := range sortedKeys(reflect.ValueOf(params)) {
		flatten(values, key.String(), reflect.ValueOf(params).MapIndex(key))
	}
	return values.Encode()
}

func flatten(values url.Values, prefix string, v reflect.Value) {
	for v.IsValid() && (v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer) {
		if v.IsNil() {
			values.Set(prefix, "")
			return
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		values.Set(prefix, "")
		return
	}

	switch v.Kind() {
	case reflect.Map:
		for _, key := range sortedKeys(v) {
			flatten(values, prefix+"["+fmt.Sprint(key.Interface())+"]", v.MapIndex(key))
		}
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8 {
			values.Set(prefix, string(v.Bytes()))
			return
		}
		for i := 0; i < v.Len(); i++ {
			flatten(values, prefix+"["+strconv.Itoa(i)+"]", v.Index(i))
		}
	default:
		values.Set(prefix, scalarString(v))
	}
}

func scalarString(v reflect.Value) string {
	switch v.Kind() {
	case reflect.String:
		return v.String()
	case reflect.Bool:
		return strconv.FormatBool(v.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'f', -1, 64)
	}
	return fmt.Sprint(v.Interface())
}

func sortedKeys(m reflect.Value) []reflect.Value {
	keys := m.MapKeys()
	sort.Slice(keys, func(i, j int) bool {
		return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
	})
	return keys
}
