package models

// Member is a device enrolled in a team
type Member struct {
	DeviceID string `json:"deviceId"`
	Name     string `json:"name"`
	Retired  bool   `json:"retired,omitempty"` // left the game; not counted for vote progress
}

// PlayerStats are the running per-device results shown on the result screen
type PlayerStats struct {
	CorrectCount   int `json:"correctCount"`
	IncorrectCount int `json:"incorrectCount"`
	TotalAttempted int `json:"totalAttempted"`
	PointsEarned   int `json:"pointsEarned"`
}
