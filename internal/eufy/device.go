package eufy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Device is one camera, doorbell or station from the device listing.
type Device struct {
	SerialNumber  string
	DisplayName   string
	Model         string
	StationSerial string
	CoverPath     string

	// Params are the telemetry parameters in the order received.
	// Later entries with the same code override earlier ones.
	Params []Param

	// ExtraCounters holds the top-level counters present in the listing
	// (pir_total, week_pir_total, month_pir_total, battery_usage_last_week).
	ExtraCounters map[string]int64
}

// Param is one code-keyed telemetry value. Value is kept as raw JSON so the
// mapper can decide how to interpret it.
type Param struct {
	Code  int
	Value json.RawMessage
}

// counterKeys are the top-level listing fields carried as ExtraCounters.
var counterKeys = []string{
	"pir_total",
	"week_pir_total",
	"month_pir_total",
	"battery_usage_last_week",
}

type rawParam struct {
	Code  json.RawMessage `json:"param_type"`
	Value json.RawMessage `json:"param_value"`
}

// UnmarshalJSON accepts param_type as a number or a numeric string.
func (p *Param) UnmarshalJSON(b []byte) error {
	var raw rawParam
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	code, ok := coerceInt(raw.Code)
	if !ok {
		return fmt.Errorf("param_type %s is not an integer", string(raw.Code))
	}
	p.Code = int(code)
	p.Value = raw.Value
	return nil
}

// MarshalJSON writes the vendor's param shape.
func (p Param) MarshalJSON() ([]byte, error) {
	value := p.Value
	if len(value) == 0 {
		value = json.RawMessage("null")
	}
	return json.Marshal(struct {
		Code  int             `json:"param_type"`
		Value json.RawMessage `json:"param_value"`
	}{p.Code, value})
}

// UnmarshalJSON decodes one entry of v2/house/device_list.
func (d *Device) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	*d = Device{
		SerialNumber:  jsonString(raw["device_sn"]),
		DisplayName:   jsonString(raw["device_name"]),
		Model:         jsonString(raw["device_model"]),
		StationSerial: jsonString(raw["station_sn"]),
		CoverPath:     jsonString(raw["cover_path"]),
	}

	if p, ok := raw["params"]; ok && !isNull(p) {
		params, err := parseParamList(p)
		if err != nil {
			return fmt.Errorf("params: %w", err)
		}
		d.Params = params
	}

	for _, key := range counterKeys {
		v, ok := raw[key]
		if !ok {
			continue
		}
		if d.ExtraCounters == nil {
			d.ExtraCounters = make(map[string]int64, len(counterKeys))
		}
		n, _ := coerceInt(v)
		d.ExtraCounters[key] = n
	}
	return nil
}

// parseParamList decodes a param array, skipping entries whose code is not
// an integer so one bad entry does not drop the device.
func parseParamList(raw json.RawMessage) ([]Param, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	params := make([]Param, 0, len(items))
	for _, item := range items {
		var p Param
		if err := json.Unmarshal(item, &p); err != nil {
			continue
		}
		params = append(params, p)
	}
	return params, nil
}

// MergeParams returns the device's params followed by overrides, so the
// overrides win for duplicate codes.
func (d Device) MergeParams(overrides []Param) Device {
	merged := make([]Param, 0, len(d.Params)+len(overrides))
	merged = append(merged, d.Params...)
	merged = append(merged, overrides...)
	d.Params = merged
	return d
}

// ParamMap collapses Params into code → value, last entry winning.
func (d Device) ParamMap() map[int]json.RawMessage {
	m := make(map[int]json.RawMessage, len(d.Params))
	for _, p := range d.Params {
		m[p.Code] = p.Value
	}
	return m
}

func jsonString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if isNull(raw) {
		return ""
	}
	return string(bytes.TrimSpace(raw))
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// coerceInt converts a JSON scalar to an integer: numbers are truncated,
// strings must hold a base-10 integer, booleans map to 0/1.
func coerceInt(raw json.RawMessage) (int64, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0, false
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return 0, false
		}
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	case 't':
		return 1, bytes.Equal(trimmed, []byte("true"))
	case 'f':
		return 0, bytes.Equal(trimmed, []byte("false"))
	case '{', '[', 'n':
		return 0, false
	}

	if n, err := strconv.ParseInt(string(trimmed), 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(string(trimmed), 64)
	if err != nil {
		return 0, false
	}
	return int64(f), true
}
