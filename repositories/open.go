package repositories

import (
	"anonchat/contract"
	"anonchat/errors"
	"fmt"
	"log/slog"
)

const (
	DriverBadger = "badger"
	DriverSQLite = "sqlite"
)

// Open returns the message store selected by driver.
func Open(driver, badgerPath, sqlitePath string, log *slog.Logger) (contract.MessageStore, error) {
	switch driver {
	case DriverBadger:
		return OpenBadger(badgerPath, log)
	case DriverSQLite:
		return OpenSQLite(sqlitePath, log)
	default:
		return nil, fmt.Errorf("%w: store %q", errors.ErrUnknownDriver, driver)
	}
}
