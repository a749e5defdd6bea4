// Package snapshot assembles the mobile, geo, and device payloads from the
// host's readers, the connection classifier, and the geo resolver.
package snapshot

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/adcontext-bridge/internal/domain"
)

// UnknownAppID is reported when neither an override nor the host supplies one.
const UnknownAppID = "unknown"

// Reader returns the raw device readings. Implementations must be cheap and
// side-effect free.
type Reader interface {
	DeviceInfo() domain.DeviceInfo
}

// ConnectionSource returns the current connection classification without blocking.
type ConnectionSource interface {
	Current() domain.ConnectionType
}

// GeoSource resolves one geo snapshot asynchronously.
type GeoSource interface {
	RequestGeo(ctx context.Context, deliver func(domain.GeoSnapshot))
}

// Assembler builds snapshot sets on demand.
type Assembler struct {
	reader        Reader
	connection    ConnectionSource
	geo           GeoSource
	appIDOverride string
	sdkVersion    string
	logger        *slog.Logger
}

// NewAssembler creates an Assembler. appIDOverride replaces the host's
// application id when non-empty.
func NewAssembler(reader Reader, connection ConnectionSource, geo GeoSource, appIDOverride, sdkVersion string, logger *slog.Logger) *Assembler {
	return &Assembler{
		reader:        reader,
		connection:    connection,
		geo:           geo,
		appIDOverride: appIDOverride,
		sdkVersion:    sdkVersion,
		logger:        logger,
	}
}

// AppID resolves the application id: override, then host, then "unknown".
func (a *Assembler) AppID() string {
	return ResolveAppID(a.appIDOverride, a.reader.DeviceInfo().ApplicationID)
}

// ResolveAppID applies the application id precedence.
func ResolveAppID(override, host string) string {
	switch {
	case override != "":
		return override
	case host != "":
		return host
	default:
		return UnknownAppID
	}
}

// AdIdentifier returns the advertising identifier when tracking is authorized.
func (a *Assembler) AdIdentifier() (string, bool) {
	info := a.reader.DeviceInfo()
	if info.TrackingStatus != domain.TrackingAuthorized || info.AdvertisingID == "" {
		return "", false
	}
	return info.AdvertisingID, true
}

// Mobile builds the mobile snapshot.
func (a *Assembler) Mobile() domain.MobileSnapshot {
	info := a.reader.DeviceInfo()
	return domain.BuildMobile(ResolveAppID(a.appIDOverride, info.ApplicationID), info)
}

// Device builds the device snapshot with the current connection type.
func (a *Assembler) Device() domain.DeviceSnapshot {
	info := a.reader.DeviceInfo()
	info.ConnectionType = a.connection.Current()
	return domain.BuildDevice(info)
}

// Metadata returns the metadata payload.
func (a *Assembler) Metadata() domain.Metadata {
	return domain.Metadata{SDKVersion: a.sdkVersion}
}

// Assemble gathers a full snapshot set and passes it to done once the geo
// snapshot has resolved. The device snapshot is read after the geo lookup so
// it carries the freshest connection type.
func (a *Assembler) Assemble(ctx context.Context, done func(domain.Snapshots)) {
	mobile := a.Mobile()
	a.geo.RequestGeo(ctx, func(geo domain.GeoSnapshot) {
		device := a.Device()
		a.logger.Debug("snapshots assembled",
			"has_coordinate", geo.HasCoordinate(),
			"connection_type", device.ConnectionType.String(),
		)
		done(domain.Snapshots{
			Mobile:   &mobile,
			Geo:      &geo,
			Device:   &device,
			Metadata: a.Metadata(),
		})
	})
}
