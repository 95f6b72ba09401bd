/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package schema

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// DumpOptions selects which provided fields Dump keeps.
type DumpOptions struct {
	// ExcludeDefaults drops fields whose value equals their default tag.
	ExcludeDefaults bool
}

// Dumper lets a field type choose the value stored for it.
type Dumper interface {
	DumpValue() interface{}
}

// Dump returns the provided fields of in keyed by json name. Nil pointer and
// nil interface fields count as not provided and are omitted. in may also be
// a map[string]interface{}, whose non-nil entries are returned as is.
func Dump(in interface{}, opts DumpOptions) (map[string]interface{}, error) {
	if m, ok := in.(map[string]interface{}); ok {
		out := make(map[string]interface{}, len(m))
		for k, v := range m {
			if v != nil {
				out[k] = v
			}
		}
		return out, nil
	}

	v := reflect.ValueOf(in)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, fmt.Errorf("cannot dump nil input %T", in)
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("cannot dump input of kind %s", v.Kind())
	}

	out := make(map[string]interface{})
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		name := jsonName(sf)
		if name == "" {
			continue
		}

		fv := v.Field(i)
		if (fv.Kind() == reflect.Ptr || fv.Kind() == reflect.Interface) && fv.IsNil() {
			continue
		}
		for fv.Kind() == reflect.Ptr || fv.Kind() == reflect.Interface {
			fv = fv.Elem()
		}

		if def, ok := sf.Tag.Lookup("default"); ok && opts.ExcludeDefaults && equalsDefault(fv, def) {
			continue
		}

		value := fv.Interface()
		if d, ok := value.(Dumper); ok {
			value = d.DumpValue()
		}
		out[name] = value
	}
	return out, nil
}

func jsonName(sf reflect.StructField) string {
	tag := sf.Tag.Get("json")
	if tag == "-" {
		return ""
	}
	if name, _, _ := strings.Cut(tag, ","); name != "" {
		return name
	}
	return sf.Name
}

func equalsDefault(v reflect.Value, def string) bool {
	switch v.Kind() {
	case reflect.String:
		return v.String() == def
	case reflect.Bool:
		b, err := strconv.ParseBool(def)
		return err == nil && v.Bool() == b
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(def, 10, 64)
		return err == nil && v.Int() == n
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(def, 10, 64)
		return err == nil && v.Uint() == n
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(def, 64)
		return err == nil && v.Float() == f
	default:
		return false
	}
}
