// internal/sbs/sbs_test.go
package sbs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManufactureDate(t *testing.T) {
	// 2008-03-14: (28<<9) | (3<<5) | 14
	raw := uint16(28<<9 | 3<<5 | 14)
	assert.Equal(t, time.Date(2008, time.March, 14, 0, 0, 0, 0, time.UTC), ManufactureDate(raw))

	assert.True(t, ManufactureDate(0).IsZero())
	assert.True(t, ManufactureDate(uint16(13<<5|1)).IsZero(), "month 13 is invalid")
}

func TestPermanentFailure(t *testing.T) {
	assert.True(t, PermanentFailure(TerminateChargeAlarmBit|TerminateDischargeAlarmBit|FullyChargedBit))
	assert.False(t, PermanentFailure(TerminateChargeAlarmBit))
	assert.False(t, PermanentFailure(TerminateDischargeAlarmBit))
}

func TestIsCapacity(t *testing.T) {
	assert.True(t, IsCapacity(CmdRemainingCapacity))
	assert.True(t, IsCapacity(CmdFullChargeCapacity))
	assert.True(t, IsCapacity(CmdDesignCapacity))
	assert.False(t, IsCapacity(CmdVoltage))
}
