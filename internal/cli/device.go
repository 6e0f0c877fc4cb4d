package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/aaronzipp/scavenger-hunt/internal/game"
	"github.com/aaronzipp/scavenger-hunt/internal/models"
	"github.com/aaronzipp/scavenger-hunt/internal/player"
	"github.com/aaronzipp/scavenger-hunt/internal/realtime"
	"github.com/aaronzipp/scavenger-hunt/internal/ws"
)

const reconnectDelay = time.Second

func newDeviceCommand(a *app) *cobra.Command {
	var (
		deviceID  string
		codecName string
		retries   int
	)
	cmd := &cobra.Command{
		Use:   "device JOIN_URL",
		Short: "Play as a team member from the terminal",
		Long: `Connects to a team channel as one device and shows its screen.

JOIN_URL is the address in the team's QR code, for example
ws://localhost:8080/ws/games/old-town/teams/A

Type "vote <answer>" to answer the open task (numbers are numeric answers,
comma separated values pick several choices), "ack" to dismiss a result and
"quit" to leave.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := realtime.CodecByName(codecName)
			if err != nil {
				return err
			}
			target, gameID, teamID, err := deviceURL(args[0], deviceID, codec.Name())
			if err != nil {
				return err
			}
			taskURL, err := openTaskURL(args[0])
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			actions := readActions(ctx, cmd.InOrStdin(), cancel)

			out := cmd.OutOrStdout()
			machine := player.NewMachine(deviceID)
			for attempt := 0; ; attempt++ {
				err := a.runDevice(ctx, target, taskURL, gameID, teamID, machine, codec, actions, out)
				if ctx.Err() != nil {
					return nil
				}
				if !errors.Is(err, game.ErrTransportDisconnected) || attempt >= retries {
					return err
				}
				fmt.Fprintf(out, "disconnected, reconnecting (%d/%d)\n", attempt+1, retries)
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(reconnectDelay):
				}
			}
		},
	}
	cmd.Flags().StringVar(&deviceID, "device", "", "device id registered on the team roster")
	cmd.Flags().StringVar(&codecName, "codec", "json", "wire codec: json or msgpack")
	cmd.Flags().IntVar(&retries, "retries", 5, "reconnect attempts after the connection drops")
	_ = cmd.MarkFlagRequired("device")
	return cmd
}

func (a *app) runDevice(ctx context.Context, target, taskURL, gameID, teamID string, m *player.Machine, codec realtime.Codec, actions <-chan player.Action, out io.Writer) error {
	conn, err := ws.Dial(ctx, target, codec)
	if err != nil {
		return fmt.Errorf("%w: %v", game.ErrTransportDisconnected, err)
	}
	defer conn.Close()
	fmt.Fprintf(out, "connected to %s/%s as %s\n", gameID, teamID, m.DeviceID())

	// subscribed first, so a decision after this read still arrives
	open, err := fetchOpenTask(ctx, taskURL, m.DeviceID())
	if err != nil {
		return fmt.Errorf("%w: %v", game.ErrTransportDisconnected, err)
	}
	m.Resync(open)

	s := &player.Session{
		Machine:  m,
		GameID:   gameID,
		TeamID:   teamID,
		Sender:   conn,
		Logger:   a.logger,
		OnChange: func(v player.View) { renderView(out, v) },
	}
	renderView(out, m.View())
	return s.Run(ctx, conn.Messages(), actions)
}

// deviceURL adds the device and codec to a join URL and extracts the game
// and team from its path.
func deviceURL(join, deviceID, codec string) (target, gameID, teamID string, err error) {
	u, err := url.Parse(join)
	if err != nil {
		return "", "", "", fmt.Errorf("join url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	n := len(parts)
	if n < 5 || parts[n-5] != "ws" || parts[n-4] != "games" || parts[n-2] != "teams" {
		return "", "", "", fmt.Errorf("join url %q: want .../ws/games/{game}/teams/{team}", join)
	}
	q := u.Query()
	q.Set("device", deviceID)
	q.Set("codec", codec)
	u.RawQuery = q.Encode()
	return u.String(), parts[n-3], parts[n-1], nil
}

// openTaskURL maps a join URL onto the member task endpoint next to it
func openTaskURL(join string) (string, error) {
	u, err := url.Parse(join)
	if err != nil {
		return "", fmt.Errorf("join url: %w", err)
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	n := len(parts)
	if n < 5 || parts[n-5] != "ws" {
		return "", fmt.Errorf("join url %q: want .../ws/games/{game}/teams/{team}", join)
	}
	parts[n-5] = "api"
	u.Path = "/" + strings.Join(append(parts, "task", "open"), "/")
	u.RawQuery = ""
	return u.String(), nil
}

// fetchOpenTask asks the server which task the team has open. nil means none.
func fetchOpenTask(ctx context.Context, taskURL, deviceID string) (*models.OpenTaskPayload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, taskURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Device-ID", deviceID)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusNoContent:
		return nil, nil
	case http.StatusOK:
		var open models.OpenTaskPayload
		if err := json.NewDecoder(resp.Body).Decode(&open); err != nil {
			return nil, fmt.Errorf("decode open task: %w", err)
		}
		return &open, nil
	default:
		return nil, fmt.Errorf("open task: %s", resp.Status)
	}
}

// readActions turns input lines into player actions. End of input or
// "quit" calls stop.
func readActions(ctx context.Context, r io.Reader, stop context.CancelFunc) <-chan player.Action {
	actions := make(chan player.Action)
	go func() {
		defer stop()
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			cmd, rest, _ := strings.Cut(line, " ")
			var a player.Action
			switch strings.ToLower(cmd) {
			case "quit", "exit":
				return
			case "ack":
				a = player.Ack{}
			case "vote":
				a = player.Vote{Answer: parseAnswer(rest)}
			default:
				continue
			}
			select {
			case actions <- a:
			case <-ctx.Done():
				return
			}
		}
	}()
	return actions
}

func parseAnswer(s string) models.AnswerValue {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") {
		var choices []string
		for _, c := range strings.Split(s, ",") {
			if c = strings.TrimSpace(c); c != "" {
				choices = append(choices, c)
			}
		}
		return models.MultiChoice(choices...)
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return models.Numeric(n)
	}
	return models.Text(s)
}

func renderView(w io.Writer, v player.View) {
	stats := fmt.Sprintf("%d correct, %d points", v.Stats.CorrectCount, v.Stats.PointsEarned)
	switch v.State {
	case player.StateLobby:
		fmt.Fprintf(w, "[lobby] waiting for the captain (%s)\n", stats)
	case player.StateTask:
		fmt.Fprintf(w, "[task] %s: %s", v.Task.Title, v.Task.Task.Question)
		if len(v.Task.Task.Options) > 0 {
			fmt.Fprintf(w, " [%s]", strings.Join(v.Task.Task.Options, ", "))
		}
		fmt.Fprintln(w)
	case player.StateWaiting:
		fmt.Fprintf(w, "[waiting] voted %q, %d/%d votes in\n", v.MyVote.String(), v.Progress.VotesReceived, v.Progress.ActiveMemberCount)
	case player.StateResult:
		r := v.Result
		switch {
		case r.AlreadyTaken:
			fmt.Fprintf(w, "[result] another team captured %s first (%s)\n", r.PointID, stats)
		case r.IsCorrect:
			fmt.Fprintf(w, "[result] correct, +%d (%s)\n", r.PointsAwarded, stats)
		default:
			fmt.Fprintf(w, "[result] incorrect, retry in %s (%s)\n", game.CooldownDuration, stats)
		}
	}
}
