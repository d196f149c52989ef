package eufy

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"time"
)

// Measurement is the time-series measurement name for device telemetry.
const Measurement = "eufy_device"

// Well-known parameter codes.
const (
	ParamBattery              = 1101
	ParamBatteryTemperature   = 1138
	ParamWifiRSSI             = 1142
	ParamSpeakerVolume        = 1230
	ParamPIREnabled           = 1011
	ParamIRCut                = 1013
	ParamFloodlightSwitch     = 1400
	ParamFloodlightBrightness = 1401
)

// paramFields maps known parameter codes to field names. All are numeric.
var paramFields = map[int]string{
	ParamBattery:              "battery",
	ParamBatteryTemperature:   "batteryTemperature",
	ParamWifiRSSI:             "wifiRssi",
	ParamSpeakerVolume:        "speakerVolume",
	ParamPIREnabled:           "pirEnabled",
	ParamIRCut:                "irCut",
	ParamFloodlightSwitch:     "floodlightSwitch",
	ParamFloodlightBrightness: "floodlightBrightness",
}

// alwaysCounters are emitted for every device, defaulting to 0.
var alwaysCounters = []string{"pir_total", "week_pir_total", "month_pir_total"}

// optionalCounters are emitted only when the listing carries them.
var optionalCounters = []string{"battery_usage_last_week"}

// KnownParamCodes returns the codes requested from v1/app/get_devs_params,
// in ascending order.
func KnownParamCodes() []int {
	codes := make([]int, 0, len(paramFields))
	for code := range paramFields {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	return codes
}

// Metric is one normalized telemetry point.
// Field values are int64, or string for unknown non-integer parameters.
type Metric struct {
	Measurement string
	Tags        map[string]string
	Fields      map[string]any
	Time        time.Time
}

// MapDevice converts a device and its params into a Metric.
//
// Known codes become named integer fields; a value that cannot be coerced
// is recorded as 0. Unknown codes become unknown_<code>, as an integer when
// coercible and as raw text otherwise. One bad value never drops the rest.
func MapDevice(dev Device, at time.Time) Metric {
	m := Metric{
		Measurement: Measurement,
		Tags: map[string]string{
			"device_sn":    dev.SerialNumber,
			"device_name":  dev.DisplayName,
			"device_model": dev.Model,
		},
		Fields: make(map[string]any, len(dev.Params)+len(alwaysCounters)),
		Time:   at,
	}

	for code, value := range dev.ParamMap() {
		if name, ok := paramFields[code]; ok {
			n, _ := coerceInt(value)
			m.Fields[name] = n
			continue
		}
		m.Fields["unknown_"+strconv.Itoa(code)] = unknownValue(value)
	}

	for _, key := range alwaysCounters {
		m.Fields[key] = dev.ExtraCounters[key]
	}
	for _, key := range optionalCounters {
		if v, ok := dev.ExtraCounters[key]; ok {
			m.Fields[key] = v
		}
	}
	return m
}

func unknownValue(raw json.RawMessage) any {
	if n, ok := coerceInt(raw); ok {
		return n
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err == nil {
		return buf.String()
	}
	return string(trimmed)
}
