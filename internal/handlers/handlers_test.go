package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aaronzipp/scavenger-hunt/internal/coordinator"
	"github.com/aaronzipp/scavenger-hunt/internal/game"
	"github.com/aaronzipp/scavenger-hunt/internal/models"
	"github.com/aaronzipp/scavenger-hunt/internal/realtime"
	"github.com/aaronzipp/scavenger-hunt/internal/rooms"
	"github.com/aaronzipp/scavenger-hunt/internal/sse"
	"github.com/aaronzipp/scavenger-hunt/internal/store"
	"github.com/aaronzipp/scavenger-hunt/internal/ws"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store  *store.MemoryStore
	ctx    *Context
	router http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := store.NewMemoryStore()
	g := game.InitializeEliminationGame(models.Game{
		ID:     "g1",
		Name:   "Old Town",
		Status: models.StatusActive,
		Points: []models.Point{
			{ID: "T1", Title: "Fountain", Location: models.Location{Lat: 47.37, Lng: 8.54},
				Task: models.Task{Type: models.TaskText, Question: "Name?", CorrectAnswer: models.Text("x"), Points: 50}},
			{ID: "T2", Title: "Clock", Task: models.Task{Type: models.TaskNumber, CorrectAnswer: models.Numeric(12), Points: 20}},
		},
	}, []models.Team{
		{ID: "A", Name: "Alpha", CaptainDeviceID: "a1", Members: []models.Member{{DeviceID: "a1"}, {DeviceID: "a2"}}},
		{ID: "B", Name: "Bravo", CaptainDeviceID: "b1", Members: []models.Member{{DeviceID: "b1"}}},
	})
	if _, err := s.Create(context.Background(), g); err != nil {
		t.Fatal(err)
	}
	clock := func() time.Time { return testNow }
	reg := rooms.NewRegistry(rooms.Config{Store: s, Clock: clock})
	t.Cleanup(reg.Close)
	hctx := &Context{Store: s, Rooms: reg, Clock: clock, PublicURL: "https://hunt.example.com"}
	return &fixture{store: s, ctx: hctx, router: hctx.Router()}
}

func (f *fixture) do(t *testing.T, method, path, device string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	if device != "" {
		req.Header.Set("X-Device-ID", device)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestCreateAndGetGame(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/games", "", map[string]any{
		"id":   "g2",
		"name": "  Harbour ",
		"mode": "elimination",
		"points": []map[string]any{
			{"id": "P1", "task": map[string]any{"type": "text", "correctAnswer": "anchor", "points": 10}},
		},
		"teams": []map[string]any{{"id": "red"}, {"id": "blue"}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body)
	}
	snap := decode[store.Snapshot](t, rec)
	if snap.Game.Name != "Harbour" || snap.Version != 1 {
		t.Errorf("created = %+v", snap)
	}
	if snap.Game.TeamColors["blue"] != game.ColorFor(1) {
		t.Errorf("blue color = %q", snap.Game.TeamColors["blue"])
	}

	if rec := f.do(t, http.MethodPost, "/api/games", "", map[string]any{"id": "g2", "name": "dup"}); rec.Code != http.StatusConflict {
		t.Errorf("duplicate create status = %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/api/games", "", map[string]any{"name": ""}); rec.Code != http.StatusBadRequest {
		t.Errorf("nameless create status = %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/api/games/nope", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing game status = %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/api/games", "", nil)
	list := decode[[]gameSummary](t, rec)
	if len(list) != 2 {
		t.Errorf("listed %d games, want 2", len(list))
	}
}

func TestVisiblePointsWithholdAnswers(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.Update(context.Background(), "g1", func(g models.Game) (models.Game, error) {
		return game.CaptureTask(g, "T1", "B")
	})
	if err != nil {
		t.Fatal(err)
	}

	rec := f.do(t, http.MethodGet, "/api/games/g1/teams/A/points", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	type visible struct {
		Points []models.Point `json:"points"`
	}
	body := decode[visible](t, rec)
	if len(body.Points) != 1 || body.Points[0].ID != "T2" {
		t.Fatalf("team A sees %+v, want only T2", body.Points)
	}
	if !body.Points[0].Task.CorrectAnswer.IsZero() {
		t.Error("correct answer leaked")
	}

	if rec := f.do(t, http.MethodGet, "/api/games/g1/teams/Z/points", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown team status = %d", rec.Code)
	}
}

func TestTaskLifecycle(t *testing.T) {
	f := newFixture(t)

	if rec := f.do(t, http.MethodPost, "/api/games/g1/teams/A/task", "a2", openTaskRequest{PointID: "T1"}); rec.Code != http.StatusForbidden {
		t.Errorf("non-captain open status = %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/api/games/g1/teams/A/task", "", openTaskRequest{PointID: "T1"}); rec.Code != http.StatusBadRequest {
		t.Errorf("anonymous open status = %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/api/games/g1/teams/A/task", "a1", openTaskRequest{PointID: "T9"}); rec.Code != http.StatusNotFound {
		t.Errorf("unknown point open status = %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/api/games/g1/teams/A/task", "a1", openTaskRequest{PointID: "T1"}); rec.Code != http.StatusOK {
		t.Fatalf("open status = %d: %s", rec.Code, rec.Body)
	}
	if rec := f.do(t, http.MethodPost, "/api/games/g1/teams/A/task", "a1", openTaskRequest{PointID: "T2"}); rec.Code != http.StatusConflict {
		t.Errorf("second open status = %d", rec.Code)
	}

	room, _ := f.ctx.Rooms.Lookup("g1", "A")
	for _, v := range []struct{ device, answer string }{{"a1", "x"}, {"a2", "x"}} {
		if err := room.Coordinator.CastVote(context.Background(), v.device, "T1", models.Text(v.answer)); err != nil {
			t.Fatal(err)
		}
	}

	status := decode[taskStatus](t, f.do(t, http.MethodGet, "/api/games/g1/teams/A/task", "a1", nil))
	if status.State != "open" || len(status.Votes) != 2 {
		t.Errorf("status = %+v", status)
	}
	if status.Suggested == nil || !*status.Suggested {
		t.Error("consensus x should be suggested correct")
	}

	if rec := f.do(t, http.MethodPost, "/api/games/g1/teams/A/task/close", "a1", nil); rec.Code != http.StatusOK {
		t.Errorf("close status = %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/api/games/g1/teams/A/task/decide", "a1", decideRequest{PointID: "T2", IsCorrect: true}); rec.Code != http.StatusConflict {
		t.Errorf("stale decide status = %d", rec.Code)
	}
	rec := f.do(t, http.MethodPost, "/api/games/g1/teams/A/task/decide", "a1", decideRequest{PointID: "T1", IsCorrect: true, PointsAwarded: -40})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("negative award status = %d: %s", rec.Code, rec.Body)
	}
	if e := decode[errorResponse](t, rec); e.Code != "invalid_verdict" {
		t.Errorf("negative award code = %q", e.Code)
	}
	if room.Coordinator.State() != "deciding" {
		t.Errorf("state after rejected verdict = %s", room.Coordinator.State())
	}
	rec = f.do(t, http.MethodPost, "/api/games/g1/teams/A/task/decide", "a1", decideRequest{PointID: "T1", IsCorrect: true})
	if rec.Code != http.StatusOK {
		t.Fatalf("decide status = %d: %s", rec.Code, rec.Body)
	}
	decided := decode[models.TaskDecidedPayload](t, rec)
	if !decided.IsCorrect || decided.PointsAwarded != 50 {
		t.Errorf("decided = %+v", decided)
	}

	board := decode[leaderboardResponse](t, f.do(t, http.MethodGet, "/api/games/g1/leaderboard", "", nil))
	if board.Standings[0].Team.ID != "A" || board.Standings[0].CaptureCount != 1 || board.Remaining != 1 {
		t.Errorf("leaderboard = %+v", board)
	}

	if rec := f.do(t, http.MethodPost, "/api/games/g1/teams/B/task", "b1", openTaskRequest{PointID: "T1"}); rec.Code != http.StatusConflict {
		t.Errorf("open captured point status = %d", rec.Code)
	}
}

func TestIncorrectDecisionStartsCooldown(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/games/g1/teams/B/task", "b1", openTaskRequest{PointID: "T2"})
	if rec := f.do(t, http.MethodPost, "/api/games/g1/teams/B/task/decide", "b1", decideRequest{PointID: "T2"}); rec.Code != http.StatusOK {
		t.Fatalf("decide status = %d", rec.Code)
	}

	cd := decode[cooldownResponse](t, f.do(t, http.MethodGet, "/api/games/g1/teams/B/cooldowns/T2", "", nil))
	if !cd.OnCooldown || cd.RemainingSeconds != 120 {
		t.Errorf("cooldown = %+v", cd)
	}
	cd = decode[cooldownResponse](t, f.do(t, http.MethodGet, "/api/games/g1/teams/A/cooldowns/T2", "", nil))
	if cd.OnCooldown {
		t.Error("cooldown leaked to another team")
	}
	if rec := f.do(t, http.MethodPost, "/api/games/g1/teams/B/task", "b1", openTaskRequest{PointID: "T2"}); rec.Code != http.StatusConflict {
		t.Errorf("reopen during cooldown status = %d", rec.Code)
	}
}

func TestBombs(t *testing.T) {
	f := newFixture(t)
	origin := models.Location{Lat: 0, Lng: 0}

	if rec := f.do(t, http.MethodPost, "/api/games/g1/bombs", "", placeBombRequest{TeamID: "A", Location: origin, DurationSeconds: 45}); rec.Code != http.StatusBadRequest {
		t.Errorf("bad duration status = %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/api/games/g1/bombs", "", placeBombRequest{TeamID: "Z", Location: origin, DurationSeconds: 60}); rec.Code != http.StatusNotFound {
		t.Errorf("unknown team status = %d", rec.Code)
	}
	rec := f.do(t, http.MethodPost, "/api/games/g1/bombs", "", placeBombRequest{TeamID: "A", Location: origin, DurationSeconds: 60})
	if rec.Code != http.StatusCreated {
		t.Fatalf("place status = %d: %s", rec.Code, rec.Body)
	}
	bomb := decode[models.Bomb](t, rec)
	if !bomb.DetonatesAt.Equal(testNow.Add(time.Minute)) {
		t.Errorf("detonates at %v", bomb.DetonatesAt)
	}

	active := decode[[]models.Bomb](t, f.do(t, http.MethodGet, "/api/games/g1/bombs", "", nil))
	if len(active) != 1 {
		t.Errorf("active bombs = %d", len(active))
	}

	tests := []struct {
		name     string
		loc      *models.Location
		inDanger bool
	}{
		{"inside radius", &models.Location{Lat: 0, Lng: 0.00027}, true},
		{"outside radius", &models.Location{Lat: 0, Lng: 0.001}, false},
		{"no location fix", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decode[dangerResponse](t, f.do(t, http.MethodPost, "/api/games/g1/danger", "", dangerRequest{Location: tt.loc}))
			if got.InDanger != tt.inDanger {
				t.Errorf("inDanger = %v, want %v", got.InDanger, tt.inDanger)
			}
			if got.LocationUnavailable != (tt.loc == nil) {
				t.Errorf("locationUnavailable = %v", got.LocationUnavailable)
			}
		})
	}
}

func TestJoinAndLeaveTeam(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/games/g1/teams/B/members", "", joinRequest{DeviceID: "b2", Name: "Bea"})
	if rec.Code != http.StatusOK {
		t.Fatalf("join status = %d: %s", rec.Code, rec.Body)
	}
	if team := decode[models.Team](t, rec); team.ActiveMemberCount() != 2 {
		t.Errorf("team B active = %d", team.ActiveMemberCount())
	}
	if rec := f.do(t, http.MethodPost, "/api/games/g1/teams/B/members", "", joinRequest{DeviceID: "a2", Name: "Spy"}); rec.Code != http.StatusConflict {
		t.Errorf("join second team status = %d", rec.Code)
	}

	rec = f.do(t, http.MethodDelete, "/api/games/g1/teams/B/members/b1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("leave status = %d", rec.Code)
	}
	team := decode[models.Team](t, rec)
	if team.CaptainDeviceID != "b2" {
		t.Errorf("captain after leave = %q, want b2", team.CaptainDeviceID)
	}
	if rec := f.do(t, http.MethodDelete, "/api/games/g1/teams/B/members/zz", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown member leave status = %d", rec.Code)
	}
}

func TestStartEliminationResets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.store.Update(ctx, "g1", func(g models.Game) (models.Game, error) {
		return game.CaptureTask(g, "T1", "A")
	}); err != nil {
		t.Fatal(err)
	}
	room, err := f.ctx.Rooms.Get(ctx, "g1", "A")
	if err != nil {
		t.Fatal(err)
	}
	sub := room.Hub.Subscribe("a1")

	rec := f.do(t, http.MethodPost, "/api/games/g1/elimination", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	snap := decode[store.Snapshot](t, rec)
	if len(snap.Game.CapturedTasks) != 0 || snap.Game.Status != models.StatusActive {
		t.Errorf("game after restart = %+v", snap.Game)
	}
	if _, ok := <-sub.C; ok {
		t.Error("live room survived the restart")
	}
}

func TestTeamQR(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/games/g1/teams/A/qr", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("body is not a PNG")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got, want := f.ctx.joinURL(req, "g1", "A"), "wss://hunt.example.com/ws/games/g1/teams/A"; got != want {
		t.Errorf("joinURL = %q, want %q", got, want)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{store.ErrNotFound, http.StatusNotFound},
		{game.ErrAlreadyCaptured, http.StatusConflict},
		{&game.StaleTaskError{Want: "T1", Got: "T2"}, http.StatusConflict},
		{game.ErrInvalidBombDuration, http.StatusBadRequest},
		{errNoDevice, http.StatusBadRequest},
		{coordinator.ErrInvalidVerdict, http.StatusBadRequest},
		{io.EOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestWebSocketDevice(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.router)
	t.Cleanup(srv.Close)
	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/games/g1/teams/A"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := ws.Dial(ctx, base+"?device=b1", realtime.JSONCodec{}); err == nil {
		t.Error("device from another team connected")
	}

	conn, err := ws.Dial(ctx, base+"?device=a2&codec=msgpack", realtime.MsgpackCodec{})
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if rec := f.do(t, http.MethodPost, "/api/games/g1/teams/A/task", "a1", openTaskRequest{PointID: "T1"}); rec.Code != http.StatusOK {
		t.Fatalf("open status = %d", rec.Code)
	}

	select {
	case msg := <-conn.Messages():
		if msg.Kind != realtime.KindOpenTask || msg.PointID() != "T1" {
			t.Fatalf("first message = %+v", msg)
		}
		if !msg.OpenTask.Task.CorrectAnswer.IsZero() {
			t.Errorf("member received the answer %v", msg.OpenTask.Task.CorrectAnswer)
		}
	case <-ctx.Done():
		t.Fatal("no open_task received")
	}

	vote := realtime.NewVote("g1", "A", models.VotePayload{PointID: "T1", Answer: models.Text("x")}, testNow)
	if err := conn.Send(ctx, vote); err != nil {
		t.Fatal(err)
	}
	for {
		select {
		case msg := <-conn.Messages():
			if msg.Kind == realtime.KindVoteProgress && msg.VoteProgress.VotesReceived == 1 {
				return
			}
		case <-ctx.Done():
			t.Fatal("no vote progress received")
		}
	}
}

func TestSSEObserver(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.router)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/sse/games/g1/teams/A", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	lines := bufio.NewScanner(resp.Body)

	waitFor := func(event string) {
		t.Helper()
		for lines.Scan() {
			if lines.Text() == "event: "+event {
				return
			}
		}
		t.Fatalf("stream ended before %q: %v", event, lines.Err())
	}

	waitFor(sse.EventSnapshot)
	waitFor(sse.EventLeaderboard)

	f.do(t, http.MethodPost, "/api/games/g1/teams/A/task", "a1", openTaskRequest{PointID: "T1"})
	f.do(t, http.MethodPost, "/api/games/g1/teams/A/task/decide", "a1", decideRequest{PointID: "T1", IsCorrect: true})

	waitFor(string(realtime.KindOpenTask))
	waitFor(string(realtime.KindTaskDecided))
	waitFor(sse.EventLeaderboard)
	if !lines.Scan() || !strings.Contains(lines.Text(), `"captureCount":1`) {
		t.Errorf("refreshed leaderboard = %q", lines.Text())
	}
}

func TestScoreboardPage(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/games/g1/scoreboard", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("scoreboard status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q", ct)
	}
	body := rec.Body.String()
	for _, want := range []string{"<title>Old Town</title>", "Alpha (2)", "Bravo (1)"} {
		if !strings.Contains(body, want) {
			t.Errorf("scoreboard missing %q", want)
		}
	}
	if rec := f.do(t, http.MethodGet, "/games/nope/scoreboard", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing game status = %d", rec.Code)
	}
}

func TestOpenTaskForMember(t *testing.T) {
	f := newFixture(t)
	path := "/api/games/g1/teams/A/task/open"

	if rec := f.do(t, http.MethodGet, path, "a2", nil); rec.Code != http.StatusNoContent {
		t.Errorf("before any room status = %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/api/games/g1/teams/A/task", "a1", openTaskRequest{PointID: "T1"}); rec.Code != http.StatusOK {
		t.Fatalf("open status = %d", rec.Code)
	}

	rec := f.do(t, http.MethodGet, path, "a2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("member status = %d: %s", rec.Code, rec.Body)
	}
	if strings.Contains(rec.Body.String(), `"correctAnswer":"x"`) {
		t.Errorf("member view carries the answer: %s", rec.Body)
	}
	if open := decode[models.OpenTaskPayload](t, rec); open.PointID != "T1" || open.Task.Points != 50 {
		t.Errorf("open = %+v", open)
	}

	tests := []struct {
		name   string
		device string
		want   int
	}{
		{"no device", "", http.StatusBadRequest},
		{"other team", "b1", http.StatusNotFound},
	}
	for _, tt := range tests {
		if rec := f.do(t, http.MethodGet, path, tt.device, nil); rec.Code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.name, rec.Code, tt.want)
		}
	}

	if rec := f.do(t, http.MethodPost, "/api/games/g1/teams/A/task/decide", "a1", decideRequest{PointID: "T1"}); rec.Code != http.StatusOK {
		t.Fatalf("decide status = %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, path, "a2", nil); rec.Code != http.StatusNoContent {
		t.Errorf("after decision status = %d", rec.Code)
	}
}
