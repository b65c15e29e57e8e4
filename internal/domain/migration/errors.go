package migration

import "errors"

// ErrMigrationFailed indicates legacy data could not be migrated. The
// marker is still set so the attempt is not repeated.
var ErrMigrationFailed = errors.New("legacy migration failed")
