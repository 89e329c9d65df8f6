package model

import "time"

// ViolationType enumerates the closed set of proctoring violation events.
type ViolationType string

const (
	ViolationTabSwitch           ViolationType = "TAB_SWITCH"
	ViolationWindowBlur          ViolationType = "WINDOW_BLUR"
	ViolationFullscreenExit      ViolationType = "FULLSCREEN_EXIT"
	ViolationCopyAttempt         ViolationType = "COPY_ATTEMPT"
	ViolationPasteAttempt        ViolationType = "PASTE_ATTEMPT"
	ViolationRightClick          ViolationType = "RIGHT_CLICK"
	ViolationTextSelection       ViolationType = "TEXT_SELECTION"
	ViolationDevtoolsOpen        ViolationType = "DEVTOOLS_OPEN"
	ViolationPageRefresh         ViolationType = "PAGE_REFRESH"
	ViolationBackNavigation      ViolationType = "BACK_NAVIGATION"
	ViolationTimeOutsideExceeded ViolationType = "TIME_OUTSIDE_EXCEEDED"
	ViolationHeartbeatMissed     ViolationType = "HEARTBEAT_MISSED"
	ViolationMultipleTabs        ViolationType = "MULTIPLE_TABS"
	ViolationWindowMinimized     ViolationType = "WINDOW_MINIMIZED"
)

var knownViolationTypes = map[ViolationType]struct{}{
	ViolationTabSwitch:           {},
	ViolationWindowBlur:          {},
	ViolationFullscreenExit:      {},
	ViolationCopyAttempt:         {},
	ViolationPasteAttempt:        {},
	ViolationRightClick:          {},
	ViolationTextSelection:       {},
	ViolationDevtoolsOpen:        {},
	ViolationPageRefresh:         {},
	ViolationBackNavigation:      {},
	ViolationTimeOutsideExceeded: {},
	ViolationHeartbeatMissed:     {},
	ViolationMultipleTabs:        {},
	ViolationWindowMinimized:     {},
}

// Valid reports whether t is a member of the closed violation type set.
func (t ViolationType) Valid() bool {
	_, ok := knownViolationTypes[t]
	return ok
}

// Violation is one entry in an attempt's append-only violation ledger.
// DurationMs is meaningful only for TIME_OUTSIDE_EXCEEDED, where it
// accumulates into the attempt's time_outside_ms rollup.
type Violation struct {
	Type       ViolationType `json:"type"`
	At         time.Time     `json:"at"`
	Details    string        `json:"details,omitempty"`
	DurationMs int64         `json:"duration_ms,omitempty"`
}
