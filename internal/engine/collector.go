package engine

import (
	"time"

	"github.com/lumora/proctor-backend/internal/model"
)

// defaultSeverities maps every detector signal to exactly one default
// severity. Occasional focus slips are low; deliberate clipboard use is
// medium; signals that imply outside help are high.
var defaultSeverities = map[model.SecurityEventType]model.Severity{
	model.EventTabSwitch:          model.SeverityLow,
	model.EventWindowBlur:         model.SeverityLow,
	model.EventFullscreenExit:     model.SeverityMedium,
	model.EventCopyAttempt:        model.SeverityMedium,
	model.EventPasteAttempt:       model.SeverityMedium,
	model.EventRightClick:         model.SeverityLow,
	model.EventKeyCombination:     model.SeverityMedium,
	model.EventSuspiciousBehavior: model.SeverityMedium,
	model.EventFaceNotDetected:    model.SeverityMedium,
	model.EventMultipleFaces:      model.SeverityHigh,
	model.EventNoiseDetected:      model.SeverityLow,
}

// ClassifySeverity returns the severity for an event type under the given
// settings. Under a lockdown/fullscreen-required assessment, leaving
// fullscreen is an escape from the controlled environment and upgrades to
// high. Repeated tab switches past the configured ceiling upgrade to medium.
func ClassifySeverity(t model.SecurityEventType, settings model.AntiCheatSettings, priorSameType int) model.Severity {
	sev, ok := defaultSeverities[t]
	if !ok {
		sev = model.SeverityMedium
	}

	if t == model.EventFullscreenExit && (settings.LockdownBrowser || settings.FullscreenRequired) {
		return model.SeverityHigh
	}
	if t == model.EventTabSwitch && settings.MaxTabSwitches > 0 && priorSameType >= settings.MaxTabSwitches {
		return model.SeverityMedium
	}
	if t == model.EventWindowBlur && settings.MaxWindowBlurEvents > 0 && priorSameType >= settings.MaxWindowBlurEvents {
		return model.SeverityMedium
	}
	return sev
}

// DetectorEnabled reports whether the assessment's settings have the
// detector for this event type switched on. Proctoring signals
// (face/noise) follow the face detection toggle; behavioral signals are
// always accepted since the client only sends what it detects.
func DetectorEnabled(t model.SecurityEventType, settings model.AntiCheatSettings) bool {
	switch t {
	case model.EventTabSwitch, model.EventWindowBlur:
		return settings.TabSwitchDetection
	case model.EventCopyAttempt, model.EventPasteAttempt:
		return settings.CopyPasteBlock
	case model.EventRightClick:
		return settings.RightClickBlock
	case model.EventFullscreenExit:
		return settings.FullscreenRequired || settings.LockdownBrowser || settings.TabSwitchDetection
	case model.EventFaceNotDetected, model.EventMultipleFaces, model.EventNoiseDetected:
		return settings.FaceDetection
	default:
		return true
	}
}

// Debouncer collapses rapid duplicate detections of the same event type
// (blur/focus flicker) into a single recorded event. The window width is
// a tunable, not a contract.
type Debouncer struct {
	window   time.Duration
	lastSeen map[model.SecurityEventType]time.Time
}

// NewDebouncer creates a Debouncer with the given collapse window.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window:   window,
		lastSeen: make(map[model.SecurityEventType]time.Time),
	}
}

// Admit reports whether an occurrence of t at ts should be recorded.
// Occurrences inside the window of the previous admitted occurrence of
// the same type are dropped. Detection order is the caller's order;
// Admit never reorders.
func (d *Debouncer) Admit(t model.SecurityEventType, ts time.Time) bool {
	if last, ok := d.lastSeen[t]; ok && ts.Sub(last) < d.window {
		return false
	}
	d.lastSeen[t] = ts
	return true
}
