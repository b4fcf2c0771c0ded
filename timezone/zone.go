package timezone

import "time"

// All reminder times are rendered to users in this zone regardless of where
// the server runs.
const displayName = "Europe/Moscow"

var display = time.UTC

// Init loads the display time zone from the system zone database. On failure
// the display zone stays UTC and the error is returned so the caller can log
// it.
func Init() error {
	loc, err := time.LoadLocation(displayName)
	if err != nil {
		return err
	}

	display = loc
	return nil
}

// Display returns the zone used to render reminder times.
func Display() *time.Location {
	return display
}
