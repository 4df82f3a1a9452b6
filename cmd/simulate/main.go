// Command simulate plays bot-only games on an in-memory store and prints
// the standings.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/pterm/pterm"

	"SobeSobe/internal/bots"
	"SobeSobe/internal/game/manager"
	"SobeSobe/internal/game/store"
	"SobeSobe/internal/game/table"
	"SobeSobe/internal/matchmaker"
	"SobeSobe/internal/utils"
	"SobeSobe/internal/websocket"
)

// countingHub 统计事件数量，不做投递
type countingHub struct {
	mu     sync.Mutex
	events map[string]int
}

func (h *countingHub) BroadcastToPlayers(_ []string, msg websocket.OutgoingMessage) {
	h.SendToPlayer("", msg)
}

func (h *countingHub) SendToPlayer(_ string, msg websocket.OutgoingMessage) {
	h.mu.Lock()
	h.events[msg.Event]++
	h.mu.Unlock()
}

type seatStats struct {
	wins   int
	points int
}

func main() {
	games := flag.Int("games", 20, "number of games")
	players := flag.Int("players", 4, "players per game (2-5)")
	seed := flag.Int64("seed", 1, "bot seed")
	blind := flag.Float64("blind", 0.1, "chance the party player picks hearts blind")
	startingPoints := flag.Int("points", table.DefaultRules().StartingPoints, "starting points")
	verbose := flag.Bool("v", false, "log engine activity")
	flag.Parse()

	rules := table.DefaultRules()
	rules.StartingPoints = *startingPoints
	if *players < rules.MinPlayers || *players > rules.MaxPlayers {
		pterm.Error.Printfln("players must be between %d and %d", rules.MinPlayers, rules.MaxPlayers)
		os.Exit(2)
	}

	var out io.Writer = io.Discard
	if *verbose {
		out = os.Stderr
	}
	logger, err := utils.NewLogger(out, "debug")
	if err != nil {
		log.Fatal(err)
	}

	hub := &countingHub{events: make(map[string]int)}
	mgr := manager.NewGameManager(store.NewMemoryStore(), hub, rules, logger)
	defer mgr.Close()

	bot := bots.New(*seed)
	bot.BlindRate = *blind

	ctx := context.Background()
	stats := make([]seatStats, *players)
	rounds := 0
	bar, _ := pterm.DefaultProgressbar.WithTotal(*games).WithTitle("Playing").Start()
	for i := 0; i < *games; i++ {
		room := &matchmaker.Room{ID: fmt.Sprintf("sim-%d", i), Seats: *players}
		for s := 0; s < *players; s++ {
			room.Players = append(room.Players, fmt.Sprintf("bot-%d", s))
		}
		if err := mgr.StartRoom(room); err != nil {
			pterm.Fatal.Println(err)
		}
		eng, err := mgr.Engine(ctx, room.ID)
		if err != nil {
			pterm.Fatal.Println(err)
		}
		g, err := bot.Play(ctx, eng, room.Players[0])
		if err != nil {
			pterm.Fatal.Printfln("game %s: %v", room.ID, err)
		}

		for _, p := range g.Players {
			stats[p.Position].points += p.Points
			if p.ID == g.WinnerPlayerID {
				stats[p.Position].wins++
			}
		}
		scores, err := eng.Scores(ctx)
		if err != nil {
			pterm.Fatal.Println(err)
		}
		seen := make(map[string]bool)
		for _, s := range scores {
			if s.RoundID != "" && !seen[s.RoundID] {
				seen[s.RoundID] = true
				rounds++
			}
		}
		bar.Increment()
	}

	data := pterm.TableData{{"Seat", "Wins", "Win %", "Avg final points"}}
	for pos, s := range stats {
		data = append(data, []string{
			strconv.Itoa(pos),
			strconv.Itoa(s.wins),
			fmt.Sprintf("%.1f", 100*float64(s.wins)/float64(*games)),
			fmt.Sprintf("%.2f", float64(s.points)/float64(*games)),
		})
	}
	pterm.DefaultSection.Println("Standings by seat")
	if err := pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Render(); err != nil {
		log.Fatal(err)
	}
	pterm.Info.Printfln("%d games, %d scored rounds, %.1f rounds per game", *games, rounds, float64(rounds)/float64(*games))
	hub.mu.Lock()
	defer hub.mu.Unlock()
	pterm.Info.Printfln("%d trumps picked, %d cards played", hub.events["trump_selected"], hub.events["card_played"])
}
