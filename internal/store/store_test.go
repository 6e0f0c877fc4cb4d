package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aaronzipp/scavenger-hunt/internal/game"
	"github.com/aaronzipp/scavenger-hunt/internal/models"
)

func seedGame() models.Game {
	g := models.Game{
		ID:   "g1",
		Name: "Harbour",
		Points: []models.Point{
			{ID: "T1", Title: "Crane", Location: models.Location{Lat: 53.54, Lng: 9.98},
				Task: models.Task{Type: models.TaskText, CorrectAnswer: models.Text("x"), Points: 50}},
			{ID: "T2", Title: "Lighthouse",
				Task: models.Task{Type: models.TaskCheckbox, Options: []string{"a", "b"}, CorrectAnswer: models.MultiChoice("a", "b"), Points: 20}},
		},
	}
	teams := make([]models.Team, 8)
	for i := range teams {
		teams[i] = models.Team{ID: fmt.Sprintf("team-%d", i)}
	}
	return game.InitializeEliminationGame(g, teams)
}

func openTempSQLite(t *testing.T) *SQLStore {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "hunt.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": openTempSQLite(t),
	}
}

func TestStoreCreateGet(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			created, err := s.Create(ctx, seedGame())
			if err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			if created.Version != 1 {
				t.Errorf("Version = %d, want 1", created.Version)
			}
			if _, err := s.Create(ctx, seedGame()); !errors.Is(err, ErrExists) {
				t.Errorf("duplicate Create() error = %v, want ErrExists", err)
			}

			got, err := s.Get(ctx, "g1")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if got.Game.Name != "Harbour" || len(got.Game.Points) != 2 || len(got.Game.Teams) != 8 {
				t.Errorf("Get() = %+v", got.Game)
			}
			task := got.Game.Points[1].Task
			if !task.CorrectAnswer.Equal(models.MultiChoice("b", "a")) {
				t.Errorf("CorrectAnswer = %v", task.CorrectAnswer)
			}

			if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestStoreUpdate(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Create(ctx, seedGame()); err != nil {
				t.Fatal(err)
			}

			snap, err := s.Update(ctx, "g1", func(g models.Game) (models.Game, error) {
				return game.CaptureTask(g, "T1", "team-0")
			})
			if err != nil {
				t.Fatalf("Update() error = %v", err)
			}
			if snap.Version != 2 || snap.Game.CapturedTasks["T1"] != "team-0" {
				t.Errorf("Update() = v%d %v", snap.Version, snap.Game.CapturedTasks)
			}

			_, err = s.Update(ctx, "g1", func(g models.Game) (models.Game, error) {
				return game.CaptureTask(g, "T1", "team-1")
			})
			if !errors.Is(err, game.ErrAlreadyCaptured) {
				t.Fatalf("second capture error = %v, want ErrAlreadyCaptured", err)
			}

			got, _ := s.Get(ctx, "g1")
			if got.Version != 2 {
				t.Errorf("failed mutator bumped version to %d", got.Version)
			}
			if err := game.ValidateCaptureCounts(got.Game); err != nil {
				t.Error(err)
			}

			if _, err := s.Update(ctx, "missing", func(g models.Game) (models.Game, error) { return g, nil }); !errors.Is(err, ErrNotFound) {
				t.Errorf("Update(missing) error = %v", err)
			}
		})
	}
}

func TestStoreConcurrentCapture(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Create(ctx, seedGame()); err != nil {
				t.Fatal(err)
			}

			var (
				wg       sync.WaitGroup
				mu       sync.Mutex
				wins     int
				rejected int
			)
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func(team string) {
					defer wg.Done()
					_, err := s.Update(ctx, "g1", func(g models.Game) (models.Game, error) {
						return game.CaptureTask(g, "T1", team)
					})
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						wins++
					case errors.Is(err, game.ErrAlreadyCaptured):
						rejected++
					default:
						t.Errorf("unexpected error: %v", err)
					}
				}(fmt.Sprintf("team-%d", i))
			}
			wg.Wait()

			if wins != 1 || rejected != 7 {
				t.Errorf("wins = %d, rejected = %d; want 1 and 7", wins, rejected)
			}
			got, _ := s.Get(ctx, "g1")
			if err := game.ValidateCaptureCounts(got.Game); err != nil {
				t.Error(err)
			}
			total := 0
			for _, n := range got.Game.TeamCaptureCount {
				total += n
			}
			if total != 1 {
				t.Errorf("total captures = %d, want 1", total)
			}
		})
	}
}

func TestSQLStoreRetriesLostRace(t *testing.T) {
	ctx := context.Background()
	s := openTempSQLite(t)
	if _, err := s.Create(ctx, seedGame()); err != nil {
		t.Fatal(err)
	}

	calls := 0
	snap, err := s.Update(ctx, "g1", func(g models.Game) (models.Game, error) {
		calls++
		if calls == 1 {
			// another writer lands between our read and write
			if _, err := s.Update(ctx, "g1", func(g models.Game) (models.Game, error) {
				return game.CaptureTask(g, "T2", "team-3")
			}); err != nil {
				t.Fatalf("inner Update() error = %v", err)
			}
		}
		return game.CaptureTask(g, "T1", "team-0")
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("mutator calls = %d, want 2", calls)
	}
	if snap.Version != 3 {
		t.Errorf("Version = %d, want 3", snap.Version)
	}
	if snap.Game.CapturedTasks["T1"] != "team-0" || snap.Game.CapturedTasks["T2"] != "team-3" {
		t.Errorf("CapturedTasks = %v", snap.Game.CapturedTasks)
	}
}

func TestSQLStoreGivesUp(t *testing.T) {
	ctx := context.Background()
	s := openTempSQLite(t)
	s.maxAttempts = 2
	if _, err := s.Create(ctx, seedGame()); err != nil {
		t.Fatal(err)
	}

	_, err := s.Update(ctx, "g1", func(g models.Game) (models.Game, error) {
		if _, err := s.db.ExecContext(ctx, `UPDATE games SET version = version + 1 WHERE id = ?`, "g1"); err != nil {
			t.Fatal(err)
		}
		return g, nil
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("error = %v, want ErrConflict", err)
	}
}

func TestStoreList(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for _, id := range []string{"a", "b"} {
				g := seedGame()
				g.ID = id
				if _, err := s.Create(ctx, g); err != nil {
					t.Fatal(err)
				}
			}
			all, err := s.List(ctx)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(all) != 2 {
				t.Errorf("len(List()) = %d, want 2", len(all))
			}
		})
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hunt.db")
	for i := 0; i < 2; i++ {
		s, err := OpenSQLite(context.Background(), path)
		if err != nil {
			t.Fatalf("open #%d: %v", i+1, err)
		}
		_ = s.Close()
	}
}

func TestOpen(t *testing.T) {
	if _, err := OpenSQLite(context.Background(), ""); err == nil {
		t.Error("expected error for empty path")
	}
	if _, err := Open(context.Background(), "oracle", "x"); err == nil {
		t.Error("expected error for unknown type")
	}
	s, err := Open(context.Background(), "memory", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*MemoryStore); !ok {
		t.Errorf("Open(memory) = %T", s)
	}
}

func TestRebind(t *testing.T) {
	q := "UPDATE games SET data = ? WHERE id = ? AND version = ?"
	if got := dialectSQLite.rebind(q); got != q {
		t.Errorf("sqlite rebind changed query: %s", got)
	}
	want := "UPDATE games SET data = $1 WHERE id = $2 AND version = $3"
	if got := dialectPostgres.rebind(q); got != want {
		t.Errorf("postgres rebind = %s", got)
	}
}

func TestExtractUpMigration(t *testing.T) {
	got := extractUpMigration("-- +migrate Up\nCREATE TABLE x;\n-- +migrate Down\nDROP TABLE x;")
	if got != "\nCREATE TABLE x;\n" {
		t.Errorf("extractUpMigration() = %q", got)
	}
}
