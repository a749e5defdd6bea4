package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/adcontext-bridge/internal/adapter/deviceprofile"
)

const goodDevice = `{"platform":"iOS","brand":"Apple","model":"iPhone15,2","os_version":{"major":17,"minor":4,"micro":1},` +
	`"carrier":"Movistar","screen_width":1179,"screen_height":2556,"screen_pixel_ratio_millis":2167,` +
	`"screen_orientation":1,"hardware_version":"iPhone15,2","limit_ad_tracking":true,` +
	`"app_tracking_authorization_status":2,"connection_type":2}`

const goodLine = `{"bwsMobile":{"is_app":true,"app_id":"com.example"},` +
	`"bwsGeo":{"lat":40.4168,"lon":-3.7038,"country":"ESP","city":"Madrid","zip":"28013","accuracy":35,"utcoffset":120},` +
	`"bwsDevice":` + goodDevice + `,"bwsdk":{"sdk_version":"1.0.0-s"}}`

func writeCaptures(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "captures.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600))
	return path
}

func phaseByName(t *testing.T, phases []*phase, name string) *phase {
	t.Helper()
	for _, p := range phases {
		if p.name == name {
			return p
		}
	}
	t.Fatalf("phase %q not found", name)
	return nil
}

func TestValidate_GoodCapture(t *testing.T) {
	captures, err := loadCaptures(writeCaptures(t, goodLine))
	require.NoError(t, err)

	for _, p := range validate(captures) {
		assert.True(t, p.passed(), "%s: %v", p.name, p.errors)
	}
}

func TestValidate_NullSlotsAllowed(t *testing.T) {
	captures, err := loadCaptures(writeCaptures(t,
		`{"bwsMobile":null,"bwsGeo":{"utcoffset":0},"bwsDevice":null,"bwsdk":{"sdk_version":"1.0.0-c"}}`))
	require.NoError(t, err)

	for _, p := range validate(captures) {
		assert.True(t, p.passed(), "%s: %v", p.name, p.errors)
	}
}

func TestValidate_Violations(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		phase   string
		message string
	}{
		{
			name:    "missing slot",
			line:    `{"bwsMobile":null,"bwsGeo":null,"bwsDevice":null}`,
			phase:   "Slot presence and decoding",
			message: "bwsdk missing",
		},
		{
			name:    "bad sdk version",
			line:    `{"bwsMobile":null,"bwsGeo":null,"bwsDevice":null,"bwsdk":{"sdk_version":"1.0"}}`,
			phase:   "Slot presence and decoding",
			message: "sdk_version",
		},
		{
			name:    "lat without lon",
			line:    `{"bwsMobile":null,"bwsGeo":{"lat":1,"utcoffset":0},"bwsDevice":null,"bwsdk":{"sdk_version":"1.0.0-s"}}`,
			phase:   "Geo invariants",
			message: "together",
		},
		{
			name:    "coarse accuracy",
			line:    `{"bwsMobile":null,"bwsGeo":{"lat":1,"lon":1,"accuracy":1500,"utcoffset":0},"bwsDevice":null,"bwsdk":{"sdk_version":"1.0.0-s"}}`,
			phase:   "Geo invariants",
			message: "accuracy",
		},
		{
			name:    "5g emitted",
			line:    strings.Replace(goodLine, `"connection_type":2`, `"connection_type":7`, 1),
			phase:   "Device invariants",
			message: "never emitted",
		},
		{
			name:    "idfa without authorization",
			line:    strings.Replace(goodLine, `"app_id":"com.example"`, `"app_id":"com.example","idfa":"abc"`, 1),
			phase:   "Advertising identifier rules",
			message: "idfa present",
		},
		{
			name:    "limit ad tracking mismatch",
			line:    strings.Replace(goodLine, `"limit_ad_tracking":true`, `"limit_ad_tracking":false`, 1),
			phase:   "Advertising identifier rules",
			message: "limit_ad_tracking",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			captures, err := loadCaptures(writeCaptures(t, tt.line))
			require.NoError(t, err)

			p := phaseByName(t, validate(captures), tt.phase)
			require.False(t, p.passed())
			assert.Contains(t, strings.Join(p.errors, "\n"), tt.message)
		})
	}
}

func TestValidateProfileConsistency(t *testing.T) {
	profile, err := deviceprofile.Load(filepath.Join("testdata", "profile.yaml"))
	require.NoError(t, err)

	captures, err := loadCaptures(writeCaptures(t,
		goodLine,
		strings.Replace(goodLine, `"carrier":"Movistar"`, `"carrier":"Vodafone"`, 1),
	))
	require.NoError(t, err)

	p := validateProfileConsistency(captures, profile)
	require.Len(t, p.errors, 1)
	assert.Contains(t, p.errors[0], "line 2")
	assert.Contains(t, p.errors[0], "Vodafone")
}

func TestLoadCaptures_Errors(t *testing.T) {
	_, err := loadCaptures(writeCaptures(t, ""))
	require.Error(t, err)

	_, err = loadCaptures(writeCaptures(t, "{not json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
}

func TestRun_ExitCodes(t *testing.T) {
	assert.Equal(t, 0, run(writeCaptures(t, goodLine), ""))
	assert.Equal(t, 1, run(writeCaptures(t, `{"bwsMobile":null}`), ""))
	assert.Equal(t, 1, run(filepath.Join(t.TempDir(), "missing.jsonl"), ""))
}

func TestReport(t *testing.T) {
	ok := &phase{name: "slots"}
	bad := &phase{name: "geo"}
	bad.errorf("line %d: accuracy %v out of range", 3, 2000)

	var out strings.Builder
	assert.False(t, report(&out, []*phase{ok, bad}, 4))
	assert.Contains(t, out.String(), "validated 4 captures")
	assert.Contains(t, out.String(), "FAIL 1")
	assert.Contains(t, out.String(), "  - line 3: accuracy 2000 out of range")
	assert.Contains(t, out.String(), "1 of 2 phases failed")

	out.Reset()
	assert.True(t, report(&out, []*phase{ok}, 1))
	assert.Contains(t, out.String(), "all phases passed")
}
