package player

import (
	"fmt"
	"sync"

	"github.com/aaronzipp/scavenger-hunt/internal/game"
	"github.com/aaronzipp/scavenger-hunt/internal/models"
)

// State is the screen a device is showing
type State string

const (
	StateLobby   State = "lobby"
	StateTask    State = "task"
	StateWaiting State = "waiting"
	StateResult  State = "result"
)

// View is a read-only copy of the machine for rendering
type View struct {
	State    State                      `json:"state"`
	Task     *models.OpenTaskPayload    `json:"task,omitempty"`
	MyVote   *models.AnswerValue        `json:"myVote,omitempty"`
	Progress models.VoteProgressPayload `json:"progress"`
	Result   *models.TaskDecidedPayload `json:"result,omitempty"`
	Stats    models.PlayerStats         `json:"stats"`
}

// Machine is one device's presentation state:
//
//	LOBBY --open_task--> TASK --vote--> WAITING --task_decided--> RESULT --ack--> LOBBY
//
// An open_task for a different task always resets to TASK. Stats only grow.
type Machine struct {
	deviceID string

	mu       sync.Mutex
	state    State
	task     *models.OpenTaskPayload
	myVote   *models.AnswerValue
	progress models.VoteProgressPayload
	result   *models.TaskDecidedPayload
	stats    models.PlayerStats
}

func NewMachine(deviceID string) *Machine {
	return &Machine{deviceID: deviceID, state: StateLobby}
}

func (m *Machine) DeviceID() string { return m.deviceID }

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) Stats() models.PlayerStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// View returns a copy of everything the screen needs
func (m *Machine) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := View{State: m.state, Progress: m.progress, Stats: m.stats}
	if m.task != nil {
		t := *m.task
		v.Task = &t
	}
	if m.myVote != nil {
		a := *m.myVote
		v.MyVote = &a
	}
	if m.result != nil {
		r := *m.result
		v.Result = &r
	}
	return v
}

// HandleOpenTask moves to TASK for p. A repeat of the task already being
// answered is ignored.
func (m *Machine) HandleOpenTask(p models.OpenTaskPayload) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.task != nil && m.task.PointID == p.PointID && (m.state == StateTask || m.state == StateWaiting) {
		return
	}
	m.task = &p
	m.myVote = nil
	m.result = nil
	m.progress = models.VoteProgressPayload{PointID: p.PointID}
	m.state = StateTask
}

// SubmitVote records the device's answer and moves to WAITING. Voting again
// while waiting replaces the earlier answer.
func (m *Machine) SubmitVote(answer models.AnswerValue) (models.VotePayload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateTask && m.state != StateWaiting {
		return models.VotePayload{}, fmt.Errorf("%w: vote while %s", game.ErrInvalidTransition, m.state)
	}
	if answer.IsZero() {
		return models.VotePayload{}, fmt.Errorf("%w: empty answer", game.ErrVoteRejected)
	}
	m.myVote = &answer
	m.state = StateWaiting
	return models.VotePayload{PointID: m.task.PointID, DeviceID: m.deviceID, Answer: answer}, nil
}

// HandleVoteProgress updates the completion ring for the current task
func (m *Machine) HandleVoteProgress(p models.VoteProgressPayload) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.task == nil || m.task.PointID != p.PointID || m.state == StateResult {
		return
	}
	m.progress = p
}

// HandleTaskDecided shows the result for the current task and updates the
// running stats. Decisions for other tasks fail with game.ErrStaleTask, and a
// repeated decision is ignored.
func (m *Machine) HandleTaskDecided(p models.TaskDecidedPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.task == nil || m.task.PointID != p.PointID {
		want := ""
		if m.task != nil {
			want = m.task.PointID
		}
		return &game.StaleTaskError{Want: want, Got: p.PointID}
	}
	switch m.state {
	case StateTask, StateWaiting:
	default:
		return nil
	}

	m.result = &p
	m.state = StateResult
	m.stats.TotalAttempted++
	switch {
	case p.AlreadyTaken:
	case p.IsCorrect:
		m.stats.CorrectCount++
		if p.PointsAwarded > 0 {
			m.stats.PointsEarned += p.PointsAwarded
		}
	default:
		m.stats.IncorrectCount++
	}
	return nil
}

// Acknowledge returns from RESULT to LOBBY
func (m *Machine) Acknowledge() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateResult {
		return fmt.Errorf("%w: acknowledge while %s", game.ErrInvalidTransition, m.state)
	}
	m.state = StateLobby
	m.task = nil
	m.myVote = nil
	m.result = nil
	m.progress = models.VoteProgressPayload{}
	return nil
}

// Resync reconciles the machine with the server after a reconnect. open is
// the task the team has open now, or nil. Stats are kept.
func (m *Machine) Resync(open *models.OpenTaskPayload) {
	m.mu.Lock()
	if open == nil {
		if m.state == StateTask || m.state == StateWaiting {
			// decided while we were away; the result was missed
			m.state = StateLobby
			m.task = nil
			m.myVote = nil
			m.progress = models.VoteProgressPayload{}
		}
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()
	m.HandleOpenTask(*open)
}
