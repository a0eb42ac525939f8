package broker

import (
	"anonchat/contract"
	"anonchat/errors"
	"fmt"
	"log/slog"
	"time"
)

const (
	DriverLocal = "local"
	DriverNATS  = "nats"
)

// Open returns the broadcast channel selected by driver.
func Open(driver, natsURL, channel string, log *slog.Logger, sinkTimeout time.Duration) (contract.Broker, error) {
	switch driver {
	case DriverLocal:
		return NewLocal(log, sinkTimeout), nil
	case DriverNATS:
		return NewNATS(natsURL, channel, log, sinkTimeout)
	default:
		return nil, fmt.Errorf("%w: broker %q", errors.ErrUnknownDriver, driver)
	}
}
