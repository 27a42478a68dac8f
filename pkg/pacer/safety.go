package pacer

import "github.com/Sumatoshi-tech/gcpacer/pkg/units"

// SafetyTimerEnv selects the stop-the-world safety timer policy:
// "0" keeps the timer enabled, "1" disables it, anything else is automatic.
const SafetyTimerEnv = "GCPACER_DISABLE_STOP_IF_NECESSARY_TIMER"

// safetyTimerRAMFloor is the RAM size below which the automatic policy
// disables the safety timer.
const safetyTimerRAMFloor = 4 * units.GiB

// ResolveSafetyTimer reports whether the stop-the-world safety timer should
// be disabled. An unknown (zero) ram never disables it on its own.
func ResolveSafetyTimer(envValue string, miniMode bool, ram uint64) (disabled bool) {
	switch envValue {
	case "0":
		return false
	case "1":
		return true
	}

	if miniMode {
		return true
	}

	return ram > 0 && ram < safetyTimerRAMFloor
}
