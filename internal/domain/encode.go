package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Encode serializes a payload into the compact JSON form placed in a consumer
// slot. HTML escaping is disabled so that "&" and "<" survive unchanged in
// city and carrier names.
func Encode(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// DecodeGeo parses a geo slot as the consumer would see it.
func DecodeGeo(s string) (GeoSnapshot, error) {
	var g GeoSnapshot
	if err := json.Unmarshal([]byte(s), &g); err != nil {
		return GeoSnapshot{}, fmt.Errorf("decode geo payload: %w", err)
	}
	return g, nil
}

// DecodeDevice parses a device slot.
func DecodeDevice(s string) (DeviceSnapshot, error) {
	var d DeviceSnapshot
	if err := json.Unmarshal([]byte(s), &d); err != nil {
		return DeviceSnapshot{}, fmt.Errorf("decode device payload: %w", err)
	}
	return d, nil
}

// DecodeMobile parses a mobile slot.
func DecodeMobile(s string) (MobileSnapshot, error) {
	var m MobileSnapshot
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return MobileSnapshot{}, fmt.Errorf("decode mobile payload: %w", err)
	}
	return m, nil
}
