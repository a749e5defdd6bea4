// Package domain models the contextual payloads a bridge delivers to an
// embedded ad consumer.
//
// # Slots
//
// A consumer receives four JSON documents, each assigned to a named global:
//
//	window.bwsMobile    MobileSnapshot   {"is_app","app_id","idfa"}
//	window.bwsGeo       GeoSnapshot      {"lat","lon","country","city","zip","accuracy","utcoffset"}
//	window.bwsDevice    DeviceSnapshot   {"platform","brand","model","os_version",...}
//	window.bwsdk        Metadata         {"sdk_version"}
//
// A missing snapshot is delivered as an explicit null so consumer scripts can
// distinguish "not provided" from "not yet set". Optional fields are omitted
// from the document rather than encoded as null; utcoffset is always present.
//
// # Geo conventions
//
// A coordinate is publishable when 0 < accuracy < 1000 meters. Country codes
// are reported as ISO 3166-1 alpha-3 where the table in [NormalizeCountryCode]
// knows the country, otherwise as received. The UTC offset is whole minutes,
// east positive, taken from the process time zone via the package clock.
//
// # Device conventions
//
// Screen sizes are physical pixels (points times scale). The pixel ratio is
// height/width scaled by 1000 and truncated. Carrier names are folded to
// Latin text with combining marks removed; the placeholder "--" means no
// carrier. See [BuildDevice].
package domain
