package engine

import (
	"testing"
	"time"

	"github.com/lumora/proctor-backend/internal/model"
)

func TestClassifySeverityDefaults(t *testing.T) {
	settings := model.DefaultAntiCheatSettings()

	cases := []struct {
		typ  model.SecurityEventType
		want model.Severity
	}{
		{model.EventTabSwitch, model.SeverityLow},
		{model.EventWindowBlur, model.SeverityLow},
		{model.EventRightClick, model.SeverityLow},
		{model.EventCopyAttempt, model.SeverityMedium},
		{model.EventPasteAttempt, model.SeverityMedium},
		{model.EventKeyCombination, model.SeverityMedium},
		{model.EventFullscreenExit, model.SeverityMedium},
		{model.EventMultipleFaces, model.SeverityHigh},
	}
	for _, c := range cases {
		if got := ClassifySeverity(c.typ, settings, 0); got != c.want {
			t.Errorf("ClassifySeverity(%s) = %s, want %s", c.typ, got, c.want)
		}
	}
}

func TestClassifySeverityUpgrades(t *testing.T) {
	lockdown := model.AntiCheatSettings{LockdownBrowser: true}
	if got := ClassifySeverity(model.EventFullscreenExit, lockdown, 0); got != model.SeverityHigh {
		t.Fatalf("fullscreen exit under lockdown = %s, want high", got)
	}

	settings := model.AntiCheatSettings{MaxTabSwitches: 3}
	// Occasional switches stay low; past the ceiling they upgrade.
	if got := ClassifySeverity(model.EventTabSwitch, settings, 1); got != model.SeverityLow {
		t.Fatalf("early tab switch = %s, want low", got)
	}
	if got := ClassifySeverity(model.EventTabSwitch, settings, 3); got != model.SeverityMedium {
		t.Fatalf("repeated tab switch = %s, want medium", got)
	}
}

func TestDetectorEnabled(t *testing.T) {
	settings := model.AntiCheatSettings{
		TabSwitchDetection: true,
		CopyPasteBlock:     false,
		FaceDetection:      false,
	}

	if !DetectorEnabled(model.EventTabSwitch, settings) {
		t.Fatal("tab switch detector should be on")
	}
	if DetectorEnabled(model.EventPasteAttempt, settings) {
		t.Fatal("paste detector should be off")
	}
	if DetectorEnabled(model.EventMultipleFaces, settings) {
		t.Fatal("face detector should be off")
	}
	// suspicious_behavior has no toggle and is always accepted.
	if !DetectorEnabled(model.EventSuspiciousBehavior, settings) {
		t.Fatal("suspicious_behavior should always be accepted")
	}
}

func TestDebouncerCollapsesFlicker(t *testing.T) {
	d := NewDebouncer(time.Second)
	base := time.Now()

	if !d.Admit(model.EventWindowBlur, base) {
		t.Fatal("first occurrence must be admitted")
	}
	// Rapid blur/focus flicker inside the window collapses.
	for i := 1; i <= 4; i++ {
		if d.Admit(model.EventWindowBlur, base.Add(time.Duration(i)*100*time.Millisecond)) {
			t.Fatalf("flicker occurrence %d admitted", i)
		}
	}
	// A different type is tracked independently.
	if !d.Admit(model.EventTabSwitch, base.Add(100*time.Millisecond)) {
		t.Fatal("different type should not be debounced")
	}
	// Past the window the type is admitted again.
	if !d.Admit(model.EventWindowBlur, base.Add(1100*time.Millisecond)) {
		t.Fatal("occurrence past window should be admitted")
	}
}
