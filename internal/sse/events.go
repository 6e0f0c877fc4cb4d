package sse

// SSE event names that are not realtime message kinds
const (
	EventSnapshot     = "snapshot"
	EventLeaderboard  = "leaderboard"
	EventErrorMessage = "error-message"
)
