package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateRunID generates a calibration run ID with a timestamp prefix
func GenerateRunID() string {
	timestamp := time.Now().UTC().Format("20060102-150405")
	return fmt.Sprintf("cal-%s-%s", timestamp, strings.SplitN(uuid.NewString(), "-", 2)[0])
}

// GenerateRequestID generates an ID used to correlate request logs
func GenerateRequestID() string {
	return uuid.NewString()
}

// ValidateRunID rejects caller-supplied IDs that would break URL routing
func ValidateRunID(runID string) error {
	if runID == "" {
		return nil
	}
	if len(runID) > 128 {
		return fmt.Errorf("run id cannot exceed 128 characters")
	}
	if strings.ContainsAny(runID, "/:?# ") {
		return fmt.Errorf("run id cannot contain '/', ':', '?', '#' or spaces")
	}
	return nil
}
