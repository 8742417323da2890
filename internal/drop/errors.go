package drop

import (
	"errors"
	"fmt"
)

// ErrNotReady matches every NotReadyError.
var ErrNotReady = errors.New("claim not ready")

// NotReadyError is returned by Submit when the affordance is anything but Ready. It never
// involves the network.
type NotReadyError struct {
	Reason Affordance
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("claim not ready: %s", e.Reason)
}

func (e *NotReadyError) Is(target error) bool {
	return target == ErrNotReady
}
