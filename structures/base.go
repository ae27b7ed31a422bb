package structures

import (
	"fmt"
	"time"

	"github.com/FrenchMajesty/yuko/utils/errs"
	"github.com/FrenchMajesty/yuko/utils/snowflake"
	"github.com/tidwall/gjson"
)

// idAt reads the id at path, accepting non-empty strings and numbers
func idAt(parsed gjson.Result, path string) (string, error) {
	value := parsed.Get(path)
	switch value.Type {
	case gjson.String:
		if value.Str != "" {
			return value.Str, nil
		}
	case gjson.Number:
		return value.Raw, nil
	}
	return "", fmt.Errorf("missing %s: %w", path, errs.ErrInvalidArgument)
}

// createdAt decodes the creation time embedded in an id. Non-snowflake ids yield the zero time.
func createdAt(id string) time.Time {
	t, err := snowflake.Time(id)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Field setters only touch fields present in the payload: gateway updates are partial.

func setString(parsed gjson.Result, path string, dst *string) {
	if value := parsed.Get(path); value.Exists() {
		*dst = value.String()
	}
}

func setBool(parsed gjson.Result, path string, dst *bool) {
	if value := parsed.Get(path); value.Exists() {
		*dst = value.Bool()
	}
}

func setInt(parsed gjson.Result, path string, dst *int) {
	if value := parsed.Get(path); value.Exists() {
		*dst = int(value.Int())
	}
}

func setTime(parsed gjson.Result, path string, dst *time.Time) {
	value := parsed.Get(path)
	if !value.Exists() {
		return
	}
	if value.Type == gjson.Null {
		*dst = time.Time{}
		return
	}
	if t, err := time.Parse(time.RFC3339Nano, value.String()); err == nil {
		*dst = t
	}
}

func setStrings(parsed gjson.Result, path string, dst *[]string) {
	value := parsed.Get(path)
	if !value.Exists() {
		return
	}
	out := []string{}
	for _, item := range value.Array() {
		out = append(out, item.String())
	}
	*dst = out
}
