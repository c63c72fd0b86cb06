package types

// SetupStatus is the fine grained status code reported within a stage
type SetupStatus string

const (
	// initializing
	SetupStatusStarting         SetupStatus = "starting"
	SetupStatusCheckingServices SetupStatus = "checking_services"
	SetupStatusServicesReady    SetupStatus = "services_ready"

	// parsing
	SetupStatusReadingDatabase SetupStatus = "reading_database"
	SetupStatusDatabaseRead    SetupStatus = "database_read"

	// processing
	SetupStatusPreparingNotes  SetupStatus = "preparing_notes"
	SetupStatusProcessingNotes SetupStatus = "processing_notes"
	SetupStatusCleaningUp      SetupStatus = "cleaning_up"

	SetupStatusCompleted SetupStatus = "completed"
	SetupStatusFailed    SetupStatus = "failed"
)

// IsValid checks if the setup status is valid
func (s SetupStatus) IsValid() bool {
	switch s {
	case SetupStatusStarting,
		SetupStatusCheckingServices,
		SetupStatusServicesReady,
		SetupStatusReadingDatabase,
		SetupStatusDatabaseRead,
		SetupStatusPreparingNotes,
		SetupStatusProcessingNotes,
		SetupStatusCleaningUp,
		SetupStatusCompleted,
		SetupStatusFailed:
		return true
	default:
		return false
	}
}

// String returns the string representation of the setup status
func (s SetupStatus) String() string {
	return string(s)
}
