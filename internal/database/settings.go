package database

import "tsp-search/internal/models"

// DefaultTickMillis is the scheduler period used until the user changes it
const DefaultTickMillis = 1000

// DefaultSettings returns the settings a fresh store starts with
func DefaultSettings() models.Settings {
	return models.Settings{
		TickMillis:    DefaultTickMillis,
		CandidateMode: "full",
		LookupPolicy:  "lenient",
		HistoryRecord: "candidate",
		ShowPath:      false,
	}
}
