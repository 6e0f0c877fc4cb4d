package models

// GameMode selects the ruleset of a game
type GameMode string

const (
	ModeClassic     GameMode = "classic"
	ModeElimination GameMode = "elimination"
)

// GameStatus represents the lifecycle of a game document
type GameStatus string

const (
	StatusDraft    GameStatus = "draft"
	StatusActive   GameStatus = "active"
	StatusFinished GameStatus = "finished"
)
