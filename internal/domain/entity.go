// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"image"
	"time"
)

// AppID is the identity the host application reports for itself.
// The matcher never blocks it.
const AppID = "com.example.overlay_app"

// UsageEventKind classifies a focus-change event reported by the platform.
type UsageEventKind int

const (
	EventUnknown UsageEventKind = iota
	EventMoveToForeground
	EventMoveToBackground
	EventActivityResumed
	EventActivityPaused
)

// String returns the event kind name used in logs.
func (k UsageEventKind) String() string {
	switch k {
	case EventMoveToForeground:
		return "move_to_foreground"
	case EventMoveToBackground:
		return "move_to_background"
	case EventActivityResumed:
		return "activity_resumed"
	case EventActivityPaused:
		return "activity_paused"
	default:
		return "unknown"
	}
}

// UsageEvent is a single focus-change record.
type UsageEvent struct {
	Package   string
	Kind      UsageEventKind
	Timestamp time.Time
}

// InstalledApp describes an application the user can launch.
type InstalledApp struct {
	Package     string `json:"packageName"`
	DisplayName string `json:"appName"`
	IsSystemApp bool   `json:"isSystemApp"`
}

// Presentation holds the overlay parameters resolved for one show.
// ImagePath and Text are already picked from the rule's lists.
type Presentation struct {
	ImagePath    string
	Text         string
	TextX        float64 // 0-1, fraction from left
	TextY        float64 // 0-1, fraction from top
	ImageScale   float64
	ImageOffsetX float64
	ImageOffsetY float64
}

// IntentKind is the command sent from the monitor to the presenter.
type IntentKind int

const (
	IntentShow IntentKind = iota + 1
	IntentHide
)

func (k IntentKind) String() string {
	switch k {
	case IntentShow:
		return "show"
	case IntentHide:
		return "hide"
	default:
		return "unknown"
	}
}

// OverlayIntent is a show or hide command for the overlay presenter.
type OverlayIntent struct {
	Kind         IntentKind
	RuleKey      string // pattern of the matched rule, empty for hide
	Presentation Presentation
}

// Size is a measured width and height in pixels.
type Size struct {
	Width  int
	Height int
}

// Frame is everything the overlay surface draws for one presentation.
// Rectangles and points are in surface pixels and may extend past the edges.
type Frame struct {
	Image      image.Image     // nil when the rule has no usable image
	ImageRect  image.Rectangle // destination of the scaled image
	Text       string
	TextRect   image.Rectangle
	Hint       string // empty when tap-to-close is disabled
	HintOrigin image.Point
}

// Settings are runtime options persisted by the settings store.
type Settings struct {
	MonitoringEnabled bool
	TapsToClose       int
	TapTimeout        time.Duration
}

// DaemonInfo records the running monitor process for status queries.
type DaemonInfo struct {
	PID        int
	StartedAt  time.Time
	AppVersion string
}
