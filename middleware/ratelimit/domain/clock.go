package domain

import "time"

// Clock abstrai o tempo para que as janelas possam ser testadas sem sleep.
type Clock interface {
	Now() time.Time
}
