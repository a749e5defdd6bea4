package main

import (
	"bytes"
	"encoding/json"
	"regexp"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/couchcryptid/adcontext-bridge/internal/adapter/deviceprofile"
	"github.com/couchcryptid/adcontext-bridge/internal/domain"
	"github.com/couchcryptid/adcontext-bridge/internal/pipeline"
)

var sdkVersionPattern = regexp.MustCompile(`^\d+\.\d+\.\d+-[cs]$`)

// UTC offsets in minutes span UTC-12:00 to UTC+14:00.
const (
	minUTCOffset = -12 * 60
	maxUTCOffset = 14 * 60
)

// decoded holds one capture's slots; nil means the slot was null.
type decoded struct {
	line   int
	mobile *domain.MobileSnapshot
	geo    *domain.GeoSnapshot
	device *domain.DeviceSnapshot
	sdk    *domain.Metadata
}

func validate(captures []capture) []*phase {
	presence := &phase{name: "Slot presence and decoding"}
	var rows []decoded
	for _, c := range captures {
		if d, ok := decodeCapture(presence, c); ok {
			rows = append(rows, d)
		}
	}

	return []*phase{
		presence,
		validateGeo(rows),
		validateDevice(rows),
		validatePrivacy(rows),
	}
}

func decodeCapture(p *phase, c capture) (decoded, bool) {
	d := decoded{line: c.line}
	ok := true
	for _, slot := range []string{pipeline.SlotMobile, pipeline.SlotGeo, pipeline.SlotDevice, pipeline.SlotMetadata} {
		if _, present := c.slots[slot]; !present {
			p.errorf("line %d: slot %s missing", c.line, slot)
			ok = false
		}
	}
	if !ok {
		return d, false
	}

	ok = decodeSlot(p, c, pipeline.SlotMobile, &d.mobile) && ok
	ok = decodeSlot(p, c, pipeline.SlotGeo, &d.geo) && ok
	ok = decodeSlot(p, c, pipeline.SlotDevice, &d.device) && ok
	ok = decodeSlot(p, c, pipeline.SlotMetadata, &d.sdk) && ok
	if !ok {
		return d, false
	}

	switch {
	case d.sdk == nil:
		p.errorf("line %d: %s is null", c.line, pipeline.SlotMetadata)
	case !sdkVersionPattern.MatchString(d.sdk.SDKVersion):
		p.errorf("line %d: sdk_version %q does not match <major.minor.patch>-<c|s>", c.line, d.sdk.SDKVersion)
	}
	return d, true
}

func decodeSlot[T any](p *phase, c capture, slot string, dst **T) bool {
	raw := c.slots[slot]
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return true
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		p.errorf("line %d: decode %s: %v", c.line, slot, err)
		return false
	}
	*dst = &v
	return true
}

func validateGeo(rows []decoded) *phase {
	p := &phase{name: "Geo invariants"}
	for _, r := range rows {
		g := r.geo
		if g == nil {
			continue
		}
		if (g.Lat == nil) != (g.Lon == nil) {
			p.errorf("line %d: lat and lon must be present together", r.line)
		}
		if g.HasCoordinate() {
			if *g.Lat < -90 || *g.Lat > 90 || *g.Lon < -180 || *g.Lon > 180 {
				p.errorf("line %d: coordinate out of range: %g,%g", r.line, *g.Lat, *g.Lon)
			}
			if g.Accuracy == nil || *g.Accuracy <= 0 || *g.Accuracy >= domain.MaxValidAccuracy {
				p.errorf("line %d: coordinate published with unusable accuracy", r.line)
			}
		} else if g.Country != nil || g.City != nil || g.Zip != nil || g.Accuracy != nil {
			p.errorf("line %d: place fields without a coordinate", r.line)
		}
		if g.Country != nil && len(*g.Country) != 3 && len(*g.Country) != 2 {
			p.errorf("line %d: country %q is not an ISO code", r.line, *g.Country)
		}
		if g.UTCOffset < minUTCOffset || g.UTCOffset > maxUTCOffset {
			p.errorf("line %d: utcoffset %d out of range", r.line, g.UTCOffset)
		}
	}
	return p
}

func validateDevice(rows []decoded) *phase {
	p := &phase{name: "Device invariants"}
	for _, r := range rows {
		d := r.device
		if d == nil {
			continue
		}
		if d.ConnectionType < domain.ConnectionUnknown || d.ConnectionType > domain.ConnectionCell5G {
			p.errorf("line %d: connection_type %d outside 0..7", r.line, d.ConnectionType)
		}
		if d.ConnectionType == domain.ConnectionCell5G {
			p.errorf("line %d: connection_type 7 is never emitted; 5G reports as %d", r.line, domain.ConnectionCell4G)
		}
		if d.ScreenOrientation < domain.OrientationUnknown || d.ScreenOrientation > domain.OrientationLandscape {
			p.errorf("line %d: screen_orientation %d outside 0..2", r.line, d.ScreenOrientation)
		}
		if d.AppTrackingStatus < domain.TrackingNotDetermined || d.AppTrackingStatus > domain.TrackingAuthorized {
			p.errorf("line %d: tracking status %d outside 0..3", r.line, d.AppTrackingStatus)
		}
		if d.ScreenWidth < 0 || d.ScreenHeight < 0 {
			p.errorf("line %d: negative screen size %dx%d", r.line, d.ScreenWidth, d.ScreenHeight)
		}
		if d.ScreenWidth == 0 && d.ScreenPixelRatioMillis != 0 {
			p.errorf("line %d: pixel ratio %d with zero width", r.line, d.ScreenPixelRatioMillis)
		}
		if d.Carrier == "--" {
			p.errorf("line %d: placeholder carrier leaked into payload", r.line)
		}
	}
	return p
}

func validatePrivacy(rows []decoded) *phase {
	p := &phase{name: "Advertising identifier rules"}
	for _, r := range rows {
		if r.device == nil {
			continue
		}
		authorized := r.device.AppTrackingStatus == domain.TrackingAuthorized
		if r.device.LimitAdTracking == authorized {
			p.errorf("line %d: limit_ad_tracking=%t with tracking status %d", r.line, r.device.LimitAdTracking, r.device.AppTrackingStatus)
		}
		if r.mobile != nil && r.mobile.IDFA != nil && !authorized {
			p.errorf("line %d: idfa present without tracking authorization", r.line)
		}
	}
	return p
}

// validateProfileConsistency rebuilds the device snapshot from the profile
// and compares it with every captured device slot. The connection type is
// live state and is excluded.
func validateProfileConsistency(captures []capture, profile deviceprofile.Profile) *phase {
	p := &phase{name: "Device profile consistency"}
	want := domain.BuildDevice(deviceprofile.NewReader(profile).DeviceInfo())
	ignore := cmpopts.IgnoreFields(domain.DeviceSnapshot{}, "ConnectionType")

	for _, c := range captures {
		var got *domain.DeviceSnapshot
		if _, ok := c.slots[pipeline.SlotDevice]; !ok {
			continue
		}
		if err := json.Unmarshal(c.slots[pipeline.SlotDevice], &got); err != nil || got == nil {
			continue
		}
		if diff := cmp.Diff(want, *got, ignore); diff != "" {
			p.errorf("line %d: device differs from profile (-want +got):\n%s", c.line, diff)
		}
	}
	return p
}
