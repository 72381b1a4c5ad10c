// Package template renders Handlebars templates against an execution context.
package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"reflect"
	"sort"
	"strings"

	"github.com/aymerick/raymond"
	"github.com/dukex/nodebase/pkg/models"
)

var (
	ErrInvalidTemplate = errors.New("invalid template")
	ErrInvalidJSON     = errors.New("rendered template is not valid JSON")
)

func init() {
	raymond.RegisterHelper("json", jsonHelper)
}

// jsonHelper pretty-prints its argument. The result is not HTML escaped.
func jsonHelper(value any) raymond.SafeString {
	out, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return raymond.SafeString("")
	}

	return raymond.SafeString(out)
}

// eachHelper replaces the built-in each so that maps are walked in sorted
// key order.
func eachHelper(value any, options *raymond.Options) any {
	if !raymond.IsTrue(value) {
		return options.Inverse()
	}

	var out strings.Builder

	iterate := func(length, i int, key, item any) {
		data := options.NewDataFrame()
		data.Set("index", i)
		data.Set("key", key)
		data.Set("first", i == 0)
		data.Set("last", i == length-1)

		out.WriteString(options.FnCtxData(item, data))
	}

	val := reflect.ValueOf(value)

	switch val.Kind() {
	case reflect.Array, reflect.Slice:
		for i := range val.Len() {
			iterate(val.Len(), i, i, val.Index(i).Interface())
		}
	case reflect.Map:
		keys := val.MapKeys()
		sort.Slice(keys, func(a, b int) bool {
			return fmt.Sprint(keys[a].Interface()) < fmt.Sprint(keys[b].Interface())
		})

		for i, key := range keys {
			iterate(len(keys), i, key.Interface(), val.MapIndex(key).Interface())
		}
	case reflect.Struct:
		var fields []int

		for i := range val.NumField() {
			if val.Type().Field(i).IsExported() {
				fields = append(fields, i)
			}
		}

		for i, field := range fields {
			iterate(len(fields), i, val.Type().Field(field).Name, val.Field(field).Interface())
		}
	}

	return out.String()
}

// Render evaluates tpl against ctx with Handlebars semantics. Dotted paths
// walk nested maps, unresolvable paths render as the empty string, and
// double-stash output is HTML escaped.
func Render(tpl string, ctx models.Context) (string, error) {
	if !strings.Contains(tpl, "{{") {
		return tpl, nil
	}

	parsed, err := raymond.Parse(tpl)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidTemplate, err)
	}

	parsed.RegisterHelper("each", eachHelper)

	data := map[string]any(ctx)
	if data == nil {
		data = map[string]any{}
	}

	out, err := parsed.Exec(data)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidTemplate, err)
	}

	return out, nil
}

// RenderText renders tpl and decodes HTML entities, for text that leaves the
// system as plain text (chat messages, prompts, URLs).
func RenderText(tpl string, ctx models.Context) (string, error) {
	out, err := Render(tpl, ctx)
	if err != nil {
		return "", err
	}

	return html.UnescapeString(out), nil
}

// RenderJSON renders a request body and checks that the result is JSON.
// An empty template renders as "{}".
func RenderJSON(tpl string, ctx models.Context) (string, error) {
	if strings.TrimSpace(tpl) == "" {
		return "{}", nil
	}

	out, err := RenderText(tpl, ctx)
	if err != nil {
		return "", err
	}

	if !json.Valid([]byte(out)) {
		return "", ErrInvalidJSON
	}

	return out, nil
}
