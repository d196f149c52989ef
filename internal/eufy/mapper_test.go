package eufy

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

func decodeDevice(t *testing.T, raw string) Device {
	t.Helper()
	var dev Device
	if err := json.Unmarshal([]byte(raw), &dev); err != nil {
		t.Fatalf("Unmarshal(device) error = %v", err)
	}
	return dev
}

func TestDeviceUnmarshal(t *testing.T) {
	dev := decodeDevice(t, `{
		"device_sn": "T8113N1234",
		"device_name": "Front Door",
		"device_model": "T8113",
		"station_sn": "T8010N9999",
		"cover_path": "https://cdn.example/cover.jpg",
		"pir_total": "42",
		"week_pir_total": 7,
		"params": [
			{"param_type": 1101, "param_value": "87"},
			{"param_type": "1142", "param_value": -61},
			{"param_type": "oops", "param_value": "1"}
		]
	}`)

	if dev.SerialNumber != "T8113N1234" || dev.DisplayName != "Front Door" || dev.Model != "T8113" {
		t.Errorf("identity = %q/%q/%q", dev.SerialNumber, dev.DisplayName, dev.Model)
	}
	if dev.StationSerial != "T8010N9999" {
		t.Errorf("StationSerial = %q", dev.StationSerial)
	}
	if dev.CoverPath != "https://cdn.example/cover.jpg" {
		t.Errorf("CoverPath = %q", dev.CoverPath)
	}
	if len(dev.Params) != 2 {
		t.Fatalf("len(Params) = %d, want 2 (bad code skipped)", len(dev.Params))
	}
	if dev.Params[1].Code != 1142 {
		t.Errorf("Params[1].Code = %d, want 1142", dev.Params[1].Code)
	}

	want := map[string]int64{"pir_total": 42, "week_pir_total": 7}
	if !reflect.DeepEqual(dev.ExtraCounters, want) {
		t.Errorf("ExtraCounters = %v, want %v", dev.ExtraCounters, want)
	}
}

func TestMapDeviceKnownAndUnknownCodes(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	dev := decodeDevice(t, `{
		"device_sn": "SN1",
		"device_name": "Garden",
		"device_model": "T8424",
		"params": [
			{"param_type": 1101, "param_value": "87"},
			{"param_type": 9999, "param_value": "3"}
		]
	}`)

	m := MapDevice(dev, at)

	if m.Measurement != "eufy_device" {
		t.Errorf("Measurement = %q, want eufy_device", m.Measurement)
	}
	if !m.Time.Equal(at) {
		t.Errorf("Time = %v, want %v", m.Time, at)
	}

	wantTags := map[string]string{"device_sn": "SN1", "device_name": "Garden", "device_model": "T8424"}
	if !reflect.DeepEqual(m.Tags, wantTags) {
		t.Errorf("Tags = %v, want %v", m.Tags, wantTags)
	}

	if got := m.Fields["battery"]; got != int64(87) {
		t.Errorf("battery = %#v, want int64(87)", got)
	}
	if got := m.Fields["unknown_9999"]; got != int64(3) {
		t.Errorf("unknown_9999 = %#v, want int64(3)", got)
	}
}

func TestMapDeviceBadFieldIsIsolated(t *testing.T) {
	dev := decodeDevice(t, `{
		"device_sn": "SN2",
		"params": [
			{"param_type": 1101, "param_value": "87"},
			{"param_type": 1142, "param_value": "n/a"},
			{"param_type": 1230, "param_value": 2},
			{"param_type": 1401, "param_value": 55.9},
			{"param_type": 1011, "param_value": true},
			{"param_type": 1013, "param_value": {"x": 1}}
		]
	}`)

	m := MapDevice(dev, time.Now())

	want := map[string]int64{
		"battery":              87,
		"wifiRssi":             0,
		"speakerVolume":        2,
		"floodlightBrightness": 55,
		"pirEnabled":           1,
		"irCut":                0,
	}
	for field, v := range want {
		if got := m.Fields[field]; got != v {
			t.Errorf("%s = %#v, want int64(%d)", field, got, v)
		}
	}
}

func TestMapDeviceUnknownRawText(t *testing.T) {
	dev := decodeDevice(t, `{
		"device_sn": "SN3",
		"params": [
			{"param_type": 2001, "param_value": "on"},
			{"param_type": 2002, "param_value": {"a": [1, 2]}},
			{"param_type": 2003, "param_value": " 12 "}
		]
	}`)

	m := MapDevice(dev, time.Now())

	if got := m.Fields["unknown_2001"]; got != "on" {
		t.Errorf("unknown_2001 = %#v, want \"on\"", got)
	}
	if got := m.Fields["unknown_2002"]; got != `{"a":[1,2]}` {
		t.Errorf("unknown_2002 = %#v, want compact JSON", got)
	}
	if got := m.Fields["unknown_2003"]; got != int64(12) {
		t.Errorf("unknown_2003 = %#v, want int64(12)", got)
	}
}

func TestMapDeviceCounters(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantPIR     int64
		wantBattery bool
	}{
		{
			name:    "absent counters default to zero",
			raw:     `{"device_sn": "A"}`,
			wantPIR: 0,
		},
		{
			name:        "present counters are carried",
			raw:         `{"device_sn": "B", "pir_total": 120, "battery_usage_last_week": "9"}`,
			wantPIR:     120,
			wantBattery: true,
		},
		{
			name:    "non-numeric counter is zero",
			raw:     `{"device_sn": "C", "pir_total": "lots"}`,
			wantPIR: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := MapDevice(decodeDevice(t, tt.raw), time.Now())

			for _, key := range []string{"pir_total", "week_pir_total", "month_pir_total"} {
				if _, ok := m.Fields[key]; !ok {
					t.Errorf("field %s missing", key)
				}
			}
			if got := m.Fields["pir_total"]; got != tt.wantPIR {
				t.Errorf("pir_total = %#v, want %d", got, tt.wantPIR)
			}
			_, ok := m.Fields["battery_usage_last_week"]
			if ok != tt.wantBattery {
				t.Errorf("battery_usage_last_week present = %v, want %v", ok, tt.wantBattery)
			}
		})
	}
}

func TestMergeParamsOverrides(t *testing.T) {
	dev := decodeDevice(t, `{
		"device_sn": "SN4",
		"params": [
			{"param_type": 1101, "param_value": "40"},
			{"param_type": 1142, "param_value": "-70"}
		]
	}`)

	merged := dev.MergeParams([]Param{{Code: 1101, Value: json.RawMessage(`"41"`)}})
	m := MapDevice(merged, time.Now())

	if got := m.Fields["battery"]; got != int64(41) {
		t.Errorf("battery = %#v, want 41 from override", got)
	}
	if got := m.Fields["wifiRssi"]; got != int64(-70) {
		t.Errorf("wifiRssi = %#v, want -70 from listing", got)
	}
	if len(dev.Params) != 2 {
		t.Errorf("MergeParams modified the original device params")
	}
}

func TestKnownParamCodes(t *testing.T) {
	want := []int{1011, 1013, 1101, 1138, 1142, 1230, 1400, 1401}
	if got := KnownParamCodes(); !reflect.DeepEqual(got, want) {
		t.Errorf("KnownParamCodes() = %v, want %v", got, want)
	}
}
