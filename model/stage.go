package model

import "fmt"

// MissionStage is the autopilot's own phase counter. It only ever increases.
type MissionStage int

const (
	StageAscent MissionStage = iota
	StagePitchHold
	StageSecondAscent
	StageCoastToApoapsis
	StageCircularizationWait
	StageCircularized
	StageLandingDataCollection
)

var stageNames = map[MissionStage]string{
	StageAscent:                "ascent",
	StagePitchHold:             "pitch_hold",
	StageSecondAscent:          "second_ascent",
	StageCoastToApoapsis:       "coast_to_apoapsis",
	StageCircularizationWait:   "circularization_wait",
	StageCircularized:          "circularized",
	StageLandingDataCollection: "landing_data_collection",
}

func (s MissionStage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stage_%d", int(s))
}
