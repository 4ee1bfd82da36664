package monitor

import (
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultPalette is the cyclic palette given to client nodes in the order they are
// first seen.
var DefaultPalette = []string{
	"#058DC7", "#50B432", "#ED561B", "#DDDF00", "#22c9b3",
	"#24CBE5", "#64E572", "#FF9655", "#FFF263", "#6AF9C4",
	"#bd20ad", "#3731ad", "#4a8c76", "#67b528", "#38c96b",
	"#e89207", "#eb4034", "#ff0073", "#5d00ff", "#cc6825",
}

// Options tunes the controller. Zero fields take their default.
type Options struct {
	// DrainInterval is the period of the pending-edge drain loop.
	DrainInterval time.Duration
	// FadeInterval is the period of a fading node's color steps.
	FadeInterval time.Duration
	// FadeDeadline is how long after DropNode a node is detached, no matter what.
	FadeDeadline time.Duration
	// FadeStep is the fraction of the remaining distance to FadeThreshold that each
	// color channel moves per step.
	FadeStep float64
	// FadeThreshold is the gray level, per channel, that fading nodes and their links
	// move towards.
	FadeThreshold int

	// ServerPrefixes mark server nodes, matched case-insensitively.
	ServerPrefixes []string
	ServerRadius   float64
	ServerColor    string
	// LabelLength is how many characters of a client id are shown as its label.
	LabelLength int
	Palette     []string
}

func DefaultOptions() Options {
	return Options{
		DrainInterval:  50 * time.Millisecond,
		FadeInterval:   200 * time.Millisecond,
		FadeDeadline:   2500 * time.Millisecond,
		FadeStep:       0.5,
		FadeThreshold:  230,
		ServerPrefixes: []string{"s-"},
		ServerRadius:   20,
		ServerColor:    "#000000",
		LabelLength:    3,
		Palette:        DefaultPalette,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.DrainInterval <= 0 {
		o.DrainInterval = d.DrainInterval
	}
	if o.FadeInterval <= 0 {
		o.FadeInterval = d.FadeInterval
	}
	if o.FadeDeadline <= 0 {
		o.FadeDeadline = d.FadeDeadline
	}
	if o.FadeStep <= 0 || o.FadeStep > 1 {
		o.FadeStep = d.FadeStep
	}
	if o.FadeThreshold <= 0 || o.FadeThreshold > 255 {
		o.FadeThreshold = d.FadeThreshold
	}
	if len(o.ServerPrefixes) == 0 {
		o.ServerPrefixes = d.ServerPrefixes
	}
	if o.ServerRadius <= 0 {
		o.ServerRadius = d.ServerRadius
	}
	if o.ServerColor == "" {
		o.ServerColor = d.ServerColor
	}
	if o.LabelLength <= 0 {
		o.LabelLength = d.LabelLength
	}
	if len(o.Palette) == 0 {
		o.Palette = d.Palette
	}
	return o
}

// IsServer reports whether id carries one of the server prefixes.
func (o Options) IsServer(id string) bool {
	lower := strings.ToLower(id)
	for _, prefix := range o.ServerPrefixes {
		if strings.HasPrefix(lower, strings.ToLower(prefix)) {
			return true
		}
	}
	return false
}

// shortLabel returns the first LabelLength characters of id.
func (o Options) shortLabel(id string) string {
	if utf8.RuneCountInString(id) <= o.LabelLength {
		return id
	}
	return string([]rune(id)[:o.LabelLength])
}
