package models

import "time"

// Vote is one device's proposed answer to the open task
type Vote struct {
	DeviceID string      `json:"deviceId"`
	TaskID   string      `json:"pointId"`
	Answer   AnswerValue `json:"answer"`
	CastAt   time.Time   `json:"castAt"`
}

// OpenTaskPayload is published by the captain when a task opens.
// It is never modified after publication.
type OpenTaskPayload struct {
	PointID string `json:"pointId"`
	Task    Task   `json:"task"`
	Title   string `json:"title"`
}

// ForMembers returns a copy without the correct answer
func (p OpenTaskPayload) ForMembers() OpenTaskPayload {
	p.Task.CorrectAnswer = AnswerValue{}
	p.Task.Options = append([]string(nil), p.Task.Options...)
	return p
}

// VotePayload carries a member's vote on the channel
type VotePayload struct {
	PointID  string      `json:"pointId"`
	DeviceID string      `json:"deviceId"`
	Answer   AnswerValue `json:"answer"`
}

// TaskDecidedPayload closes a task's voting round
type TaskDecidedPayload struct {
	PointID       string       `json:"pointId"`
	IsCorrect     bool         `json:"isCorrect"`
	PointsAwarded int          `json:"pointsAwarded"`
	CorrectAnswer *AnswerValue `json:"correctAnswer,omitempty"`
	AgreedAnswer  *AnswerValue `json:"agreedAnswer,omitempty"`
	AlreadyTaken  bool         `json:"alreadyTaken,omitempty"` // another team captured it first
}

// VoteProgressPayload drives the waiting screen's completion ring
type VoteProgressPayload struct {
	PointID           string `json:"pointId"`
	VotesReceived     int    `json:"votesReceived"`
	ActiveMemberCount int    `json:"activeMemberCount"`
}

// ErrorPayload is sent to a single device when its request was refused
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
