package render

import (
	htmlpkg "html"
	"sort"
	"strconv"
	"strings"

	"github.com/aaronzipp/scavenger-hunt/internal/game"
	"github.com/aaronzipp/scavenger-hunt/internal/models"
)

// MemberList generates HTML for a team's roster
func MemberList(team models.Team) string {
	members := getMemberList(team.Members)
	var b strings.Builder
	b.WriteString(`<h3>`)
	b.WriteString(htmlpkg.EscapeString(team.Name))
	b.WriteString(` (`)
	b.WriteString(strconv.Itoa(team.ActiveMemberCount()))
	b.WriteString(`)</h3><ul class="player-list">`)
	for _, m := range members {
		if m.Retired {
			continue
		}
		b.WriteString(`<li class="player-item"><span class="player-name">`)
		b.WriteString(htmlpkg.EscapeString(m.Name))
		b.WriteString(`</span>`)
		if team.IsCaptain(m.DeviceID) {
			b.WriteString(` <span class="badge-pill">captain</span>`)
		}
		b.WriteString(`</li>`)
	}
	b.WriteString(`</ul>`)
	return b.String()
}

// ScoreTable generates HTML for the elimination leaderboard
func ScoreTable(standings []game.Standing) string {
	if len(standings) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(`<h2>Standings</h2><table class="score-table" aria-label="Standings sorted by captures"><thead><tr><th>#</th><th>Team</th><th aria-sort="descending" title="Sorted by captures (desc)">Captures ↓</th><th>Points held</th></tr></thead><tbody>`)
	for i, s := range standings {
		b.WriteString(`<tr><td>`)
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(`</td><td class="score-player"><span class="team-swatch" style="background:`)
		b.WriteString(htmlpkg.EscapeString(s.Color))
		b.WriteString(`"></span>`)
		b.WriteString(htmlpkg.EscapeString(s.Team.Name))
		b.WriteString(`</td><td><span class="badge-pill badge-win">`)
		b.WriteString(strconv.Itoa(s.CaptureCount))
		b.WriteString(`</span></td><td>`)
		b.WriteString(htmlpkg.EscapeString(strings.Join(s.CapturedTasks, ", ")))
		b.WriteString(`</td></tr>`)
	}
	b.WriteString(`</tbody></table>`)
	return b.String()
}

// VoteCount generates HTML for vote progress on the open task
func VoteCount(p models.VoteProgressPayload) string {
	var b strings.Builder
	b.WriteString(`<p class="ready-count">`)
	b.WriteString(strconv.Itoa(p.VotesReceived))
	b.WriteString(`/`)
	b.WriteString(strconv.Itoa(p.ActiveMemberCount))
	b.WriteString(` players have voted</p>`)
	return b.String()
}

// Scoreboard renders a standalone page with the standings and every roster
func Scoreboard(g models.Game, standings []game.Standing) string {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1"><title>`)
	b.WriteString(htmlpkg.EscapeString(g.Name))
	b.WriteString(`</title></head><body><main><h1>`)
	b.WriteString(htmlpkg.EscapeString(g.Name))
	b.WriteString(`</h1>`)
	b.WriteString(ScoreTable(standings))
	b.WriteString(`<section class="teams">`)
	for _, t := range g.Teams {
		b.WriteString(MemberList(t))
	}
	b.WriteString(`</section></main></body></html>`)
	return b.String()
}

// getMemberList returns members sorted by name
func getMemberList(members []models.Member) []models.Member {
	list := append([]models.Member(nil), members...)
	sort.SliceStable(list, func(i, j int) bool { return strings.ToLower(list[i].Name) < strings.ToLower(list[j].Name) })
	return list
}
