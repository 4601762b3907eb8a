package common

import (
	"github.com/google/uuid"
)

// NewAnalysisID generates a unique analysis record ID
// Format: ana_<uuid>
func NewAnalysisID() string {
	return "ana_" + uuid.New().String()
}

// NewSessionID generates a unique chat session ID
// Format: ses_<uuid>
func NewSessionID() string {
	return "ses_" + uuid.New().String()
}
