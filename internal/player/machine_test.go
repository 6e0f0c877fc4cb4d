package player

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aaronzipp/scavenger-hunt/internal/game"
	"github.com/aaronzipp/scavenger-hunt/internal/models"
	"github.com/aaronzipp/scavenger-hunt/internal/realtime"
)

func openT(id string) models.OpenTaskPayload {
	return models.OpenTaskPayload{PointID: id, Title: id, Task: models.Task{Type: models.TaskText, Points: 10}}
}

func TestMachineHappyPath(t *testing.T) {
	m := NewMachine("a1")
	if m.State() != StateLobby {
		t.Fatalf("initial state = %s", m.State())
	}

	m.HandleOpenTask(openT("T1"))
	if m.State() != StateTask {
		t.Fatalf("state = %s, want task", m.State())
	}

	vote, err := m.SubmitVote(models.Text("x"))
	if err != nil {
		t.Fatal(err)
	}
	if vote.PointID != "T1" || vote.DeviceID != "a1" || !vote.Answer.Equal(models.Text("x")) {
		t.Errorf("vote = %+v", vote)
	}
	if m.State() != StateWaiting {
		t.Fatalf("state = %s, want waiting", m.State())
	}

	m.HandleVoteProgress(models.VoteProgressPayload{PointID: "T1", VotesReceived: 2, ActiveMemberCount: 3})
	m.HandleVoteProgress(models.VoteProgressPayload{PointID: "T9", VotesReceived: 9})
	if p := m.View().Progress; p.VotesReceived != 2 {
		t.Errorf("progress = %+v", p)
	}

	if err := m.HandleTaskDecided(models.TaskDecidedPayload{PointID: "T1", IsCorrect: true, PointsAwarded: 50}); err != nil {
		t.Fatal(err)
	}
	if m.State() != StateResult {
		t.Fatalf("state = %s, want result", m.State())
	}
	// redelivery must not count twice
	if err := m.HandleTaskDecided(models.TaskDecidedPayload{PointID: "T1", IsCorrect: true, PointsAwarded: 50}); err != nil {
		t.Fatal(err)
	}
	want := models.PlayerStats{CorrectCount: 1, TotalAttempted: 1, PointsEarned: 50}
	if s := m.Stats(); s != want {
		t.Errorf("stats = %+v, want %+v", s, want)
	}

	if err := m.Acknowledge(); err != nil {
		t.Fatal(err)
	}
	if v := m.View(); v.State != StateLobby || v.Task != nil || v.Result != nil {
		t.Errorf("view after ack = %+v", v)
	}
	if m.Stats() != want {
		t.Error("stats reset on acknowledge")
	}
}

func TestMachineInvalidTransitions(t *testing.T) {
	m := NewMachine("a1")
	if _, err := m.SubmitVote(models.Text("x")); !errors.Is(err, game.ErrInvalidTransition) {
		t.Errorf("vote in lobby error = %v", err)
	}
	if err := m.Acknowledge(); !errors.Is(err, game.ErrInvalidTransition) {
		t.Errorf("ack in lobby error = %v", err)
	}

	m.HandleOpenTask(openT("T1"))
	if _, err := m.SubmitVote(models.AnswerValue{}); !errors.Is(err, game.ErrVoteRejected) {
		t.Errorf("empty vote error = %v", err)
	}
	if err := m.HandleTaskDecided(models.TaskDecidedPayload{PointID: "T0"}); !errors.Is(err, game.ErrStaleTask) {
		t.Errorf("stale decision error = %v", err)
	}
	if m.State() != StateTask {
		t.Errorf("stale decision moved state to %s", m.State())
	}
}

func TestMachineRevote(t *testing.T) {
	m := NewMachine("a1")
	m.HandleOpenTask(openT("T1"))
	_, _ = m.SubmitVote(models.Text("x"))
	if _, err := m.SubmitVote(models.Text("y")); err != nil {
		t.Fatalf("re-vote error = %v", err)
	}
	if v := m.View(); !v.MyVote.Equal(models.Text("y")) || v.State != StateWaiting {
		t.Errorf("view = %+v", v)
	}
}

func TestMachineOpenTaskPreempts(t *testing.T) {
	tests := []struct {
		name  string
		setup func(m *Machine)
	}{
		{"from waiting", func(m *Machine) { _, _ = m.SubmitVote(models.Text("x")) }},
		{"from result", func(m *Machine) {
			_, _ = m.SubmitVote(models.Text("x"))
			_ = m.HandleTaskDecided(models.TaskDecidedPayload{PointID: "T1"})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMachine("a1")
			m.HandleOpenTask(openT("T1"))
			tt.setup(m)

			m.HandleOpenTask(openT("T2"))
			v := m.View()
			if v.State != StateTask || v.Task.PointID != "T2" || v.MyVote != nil || v.Result != nil {
				t.Errorf("view = %+v", v)
			}
		})
	}
}

func TestMachineDuplicateOpenIgnored(t *testing.T) {
	m := NewMachine("a1")
	m.HandleOpenTask(openT("T1"))
	_, _ = m.SubmitVote(models.Text("x"))
	m.HandleOpenTask(openT("T1"))
	if v := m.View(); v.State != StateWaiting || v.MyVote == nil {
		t.Errorf("duplicate open reset the vote: %+v", v)
	}
}

func TestMachineStats(t *testing.T) {
	m := NewMachine("a1")
	rounds := []models.TaskDecidedPayload{
		{PointID: "T1", IsCorrect: true, PointsAwarded: 50},
		{PointID: "T2", IsCorrect: false},
		{PointID: "T3", IsCorrect: true, AlreadyTaken: true},
		{PointID: "T4", IsCorrect: true, PointsAwarded: 20},
		{PointID: "T5", IsCorrect: true, PointsAwarded: -40},
	}
	for _, r := range rounds {
		m.HandleOpenTask(openT(r.PointID))
		if err := m.HandleTaskDecided(r); err != nil {
			t.Fatal(err)
		}
		if err := m.Acknowledge(); err != nil {
			t.Fatal(err)
		}
	}
	want := models.PlayerStats{CorrectCount: 3, IncorrectCount: 1, TotalAttempted: 5, PointsEarned: 70}
	if s := m.Stats(); s != want {
		t.Errorf("stats = %+v, want %+v", s, want)
	}
}

func TestMachineResync(t *testing.T) {
	m := NewMachine("a1")
	m.HandleOpenTask(openT("T1"))
	_, _ = m.SubmitVote(models.Text("x"))

	open := openT("T1")
	m.Resync(&open)
	if v := m.View(); v.State != StateWaiting || v.MyVote == nil || v.MyVote.String() != "x" {
		t.Errorf("resync with same task = %+v, want waiting on x", v)
	}
	// the hub replays the open task after the resync
	m.HandleOpenTask(open)
	if v := m.View(); v.State != StateWaiting || v.MyVote == nil {
		t.Errorf("replayed task after resync = %+v, want the vote kept", v)
	}

	next := openT("T2")
	m.Resync(&next)
	if v := m.View(); v.State != StateTask || v.Task.PointID != "T2" {
		t.Errorf("resync with new task = %+v", v)
	}

	m.Resync(nil)
	if m.State() != StateLobby {
		t.Errorf("resync with no task = %s, want lobby", m.State())
	}
}

func TestSessionRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	messages := make(chan realtime.Message, 8)
	actions := make(chan Action)
	sent := make(chan realtime.Message, 1)
	views := make(chan View, 16)

	s := &Session{
		Machine: NewMachine("a2"),
		GameID:  "g1",
		TeamID:  "A",
		Sender: SenderFunc(func(_ context.Context, msg realtime.Message) error {
			sent <- msg
			return nil
		}),
		OnChange: func(v View) { views <- v },
	}
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, messages, actions) }()

	now := time.Now()
	open := realtime.NewOpenTask("g1", "A", "a1", openT("T1"), now)
	messages <- open
	messages <- open // redelivered
	if v := <-views; v.State != StateTask {
		t.Fatalf("view = %+v", v)
	}

	actions <- Vote{Answer: models.Numeric(3)}
	msg := <-sent
	if msg.Kind != realtime.KindVote || msg.Vote.DeviceID != "a2" || !msg.Vote.Answer.Equal(models.Numeric(3)) {
		t.Errorf("sent = %+v", msg)
	}
	if v := <-views; v.State != StateWaiting {
		t.Fatalf("view = %+v", v)
	}

	messages <- realtime.NewTaskDecided("g1", "A", "a1", models.TaskDecidedPayload{PointID: "T1", IsCorrect: true, PointsAwarded: 10}, now)
	if v := <-views; v.State != StateResult || v.Stats.PointsEarned != 10 {
		t.Fatalf("view = %+v", v)
	}

	close(messages)
	if err := <-done; !errors.Is(err, game.ErrTransportDisconnected) {
		t.Errorf("Run() = %v, want ErrTransportDisconnected", err)
	}
}

func TestSessionSendFailure(t *testing.T) {
	messages := make(chan realtime.Message, 1)
	actions := make(chan Action, 1)
	s := &Session{
		Machine: NewMachine("a2"),
		Sender: SenderFunc(func(context.Context, realtime.Message) error {
			return errors.New("broken pipe")
		}),
	}
	messages <- realtime.NewOpenTask("g1", "A", "a1", openT("T1"), time.Now())

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background(), messages, actions) }()
	waitState(t, s.Machine, StateTask)
	actions <- Vote{Answer: models.Text("x")}

	select {
	case err := <-done:
		if !errors.Is(err, game.ErrTransportDisconnected) {
			t.Errorf("Run() = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run() did not return")
	}
}

func TestSessionStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{Machine: NewMachine("a2")}
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, make(chan realtime.Message), nil) }()
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v, want context.Canceled", err)
	}
}

func waitState(t *testing.T, m *Machine, want State) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for m.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("state = %s, want %s", m.State(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
