package types

import "fmt"

// SetupStage is a state of the setup workflow
type SetupStage string

const (
	SetupStageIdle         SetupStage = "idle"
	SetupStageInitializing SetupStage = "initializing"
	SetupStageParsing      SetupStage = "parsing"
	SetupStageProcessing   SetupStage = "processing"
	SetupStageComplete     SetupStage = "complete"
	SetupStageFailed       SetupStage = "failed"
)

// AllSetupStages returns all valid setup stages in workflow order
func AllSetupStages() []SetupStage {
	return []SetupStage{
		SetupStageIdle,
		SetupStageInitializing,
		SetupStageParsing,
		SetupStageProcessing,
		SetupStageComplete,
		SetupStageFailed,
	}
}

// IsValid checks if the setup stage is valid
func (s SetupStage) IsValid() bool {
	switch s {
	case SetupStageIdle,
		SetupStageInitializing,
		SetupStageParsing,
		SetupStageProcessing,
		SetupStageComplete,
		SetupStageFailed:
		return true
	default:
		return false
	}
}

// IsActive reports whether a setup run is in flight in this stage
func (s SetupStage) IsActive() bool {
	switch s {
	case SetupStageInitializing, SetupStageParsing, SetupStageProcessing:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether next is a legal successor of s
func (s SetupStage) CanTransitionTo(next SetupStage) bool {
	switch s {
	case SetupStageIdle, SetupStageComplete, SetupStageFailed:
		return next == SetupStageInitializing
	case SetupStageInitializing:
		return next == SetupStageParsing || next == SetupStageFailed
	case SetupStageParsing:
		return next == SetupStageProcessing || next == SetupStageFailed
	case SetupStageProcessing:
		return next == SetupStageComplete || next == SetupStageFailed
	default:
		return false
	}
}

// String returns the string representation of the setup stage
func (s SetupStage) String() string {
	return string(s)
}

// ParseSetupStage parses a string into a SetupStage
func ParseSetupStage(s string) (SetupStage, error) {
	stage := SetupStage(s)
	if !stage.IsValid() {
		return "", fmt.Errorf("invalid setup stage: %s", s)
	}
	return stage, nil
}
