package game

import "time"

const (
	// CooldownDuration is how long a team is barred from a task after a failed attempt
	CooldownDuration = 120 * time.Second

	// DangerRadiusMeters is the radius of a bomb's danger zone
	DangerRadiusMeters = 30.0

	// DangerToleranceMeters is added to a danger radius before comparing
	// distances, so a zone reaches half a meter past its nominal edge
	DangerToleranceMeters = 0.5

	// EarthRadiusMeters is the mean Earth radius used for great-circle distances
	EarthRadiusMeters = 6371000.0
)

// BombDurations are the allowed bomb fuse lengths in seconds
var BombDurations = []int{30, 60, 120}

// TeamPalette is cycled by team index when elimination mode starts
var TeamPalette = []string{
	"#e6194b", // red
	"#3cb44b", // green
	"#4363d8", // blue
	"#ffe119", // yellow
	"#f58231", // orange
	"#911eb4", // purple
	"#42d4f4", // cyan
	"#f032e6", // magenta
}
