// internal/poller/types.go
package poller

import (
	"time"

	"github.com/tamzrod/smartbattery-poller/internal/battery"
)

// Update is the latest snapshot of one battery.
// Only the newest value is delivered; intermediate ones may be dropped.
type Update struct {
	BatteryID string
	At        time.Time
	Snapshot  battery.Snapshot
}
