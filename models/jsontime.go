package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// JSONTime accepts the date formats the front office sends (full RFC3339,
// local timestamps without zone, or a bare date) and always emits RFC3339.
type JSONTime time.Time

var jsonTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseJSONTime parses s with the first matching layout.
func ParseJSONTime(s string) (JSONTime, error) {
	s = strings.TrimSpace(s)
	for _, layout := range jsonTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return JSONTime(t), nil
		}
	}
	return JSONTime{}, fmt.Errorf("cannot parse time %q", s)
}

func (jt *JSONTime) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" || s == `""` {
		*jt = JSONTime{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("JSONTime: %w", err)
	}
	t, err := ParseJSONTime(raw)
	if err != nil {
		return err
	}
	*jt = t
	return nil
}

func (jt JSONTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(jt).Format(time.RFC3339))
}

func (jt JSONTime) Time() time.Time { return time.Time(jt) }

func (jt JSONTime) IsZero() bool { return time.Time(jt).IsZero() }

func (jt JSONTime) Value() (driver.Value, error) {
	return time.Time(jt), nil
}

func (jt *JSONTime) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*jt = JSONTime{}
		return nil
	case time.Time:
		*jt = JSONTime(v)
		return nil
	case []byte:
		return jt.scanString(string(v))
	case string:
		return jt.scanString(v)
	}
	return fmt.Errorf("JSONTime.Scan: unsupported type %T", src)
}

func (jt *JSONTime) scanString(s string) error {
	t, err := ParseJSONTime(s)
	if err != nil {
		// sqlite stores "2006-01-02 15:04:05.999999999-07:00"
		pt, perr := time.Parse("2006-01-02 15:04:05.999999999-07:00", s)
		if perr != nil {
			return fmt.Errorf("JSONTime.Scan: %w", err)
		}
		t = JSONTime(pt)
	}
	*jt = t
	return nil
}
