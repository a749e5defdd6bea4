package geo

import "github.com/couchcryptid/adcontext-bridge/internal/domain"

// LocationEvents are the callbacks a location capability reports into.
type LocationEvents struct {
	Coordinate    func(domain.Fix)
	Authorization func(domain.AuthorizationState)
	Failure       func(error)
}

// LocationProvider is the location hardware capability. RequestPermission
// must eventually report the current state through Authorization, including
// when it is already decided.
type LocationProvider interface {
	Subscribe(events LocationEvents)
	RequestPermission()
	StartUpdates()
	StopUpdates()
}
