package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"

	"github.com/gorilla/websocket"

	"mentorsim.ai/internal/protocol"
	"mentorsim.ai/internal/sim/model"
)

func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name     = flag.String("name", "bot", "player name")
		token    = flag.String("token", "", "auth token")
		quarters = flag.Int("quarters", 8, "quarters to play before exiting")
		roster   = flag.Int("roster", 3, "students to keep on the roster")
		seed     = flag.Int64("seed", 1, "bot rng seed")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		PlayerName:      *name,
	}
	if *token != "" {
		hello.Auth = &protocol.HelloAuth{Token: *token}
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	p := &player{rnd: rand.New(rand.NewSource(*seed)), roster: *roster}
	pending := ""
	played := 0
	for {
		select {
		case <-stop:
			return
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			logger.Printf("WELCOME player_id=%s mentor=%s now=%s", w.PlayerID, w.Mentor, w.Now)

		case protocol.TypeAck:
			var ack protocol.AckMsg
			if err := json.Unmarshal(msg, &ack); err != nil {
				continue
			}
			if ack.AckFor == pending {
				pending = ""
			}
			if !ack.Accepted {
				logger.Printf("command %s rejected: %s %s", ack.AckFor, ack.Code, ack.Message)
			}

		case protocol.TypeReport:
			var r protocol.ReportMsg
			if err := json.Unmarshal(msg, &r); err != nil {
				continue
			}
			played++
			logger.Printf("settled %s: progress=%d accepted=%d rejected=%d upkeep=%d decisions=%d",
				r.Report.Quarter, len(r.Report.Progress), r.Report.Accepted, r.Report.Rejected, r.Report.Upkeep, len(r.Report.Decisions))
			if played >= *quarters {
				return
			}

		case protocol.TypeState:
			if pending != "" {
				continue
			}
			var s protocol.StateMsg
			if err := json.Unmarshal(msg, &s); err != nil || s.Settling {
				continue
			}
			cmd := p.next(s.State)
			cmd.Type = protocol.TypeCommand
			cmd.ProtocolVersion = protocol.Version
			if err := conn.WriteJSON(cmd); err != nil {
				logger.Printf("send CMD: %v", err)
				return
			}
			pending = cmd.ID
		}
	}
}

// player is a simple autoplay policy.
type player struct {
	rnd    *rand.Rand
	roster int
	seq    int
}

func (p *player) id() string {
	p.seq++
	return fmt.Sprintf("bot_%d", p.seq)
}

// next picks one command for st: fill the roster, answer the active
// decision, start a project for idle students, then end the quarter.
func (p *player) next(st model.State) protocol.CommandMsg {
	if len(st.Students) < p.roster {
		return protocol.CommandMsg{ID: p.id(), Command: protocol.CmdRecruit, Name: fmt.Sprintf("Student %d", p.seq+1), StudentType: model.StudentPhD}
	}
	if len(st.Backlog) > 0 {
		d := st.Backlog[0]
		opt := d.Options[p.rnd.Intn(len(d.Options))]
		return protocol.CommandMsg{ID: p.id(), Command: protocol.CmdChoose, DecisionID: d.ID, OptionID: opt.ID}
	}
	if idle := idleStudents(st); len(idle) > 0 {
		return protocol.CommandMsg{ID: p.id(), Command: protocol.CmdStartProject, Title: fmt.Sprintf("Project %d", len(st.Projects)+1), Category: "general", StudentIDs: idle}
	}
	return protocol.CommandMsg{ID: p.id(), Command: protocol.CmdEndQuarter}
}

func idleStudents(st model.State) []string {
	busy := map[string]bool{}
	for _, pr := range st.Projects {
		if pr.Completed {
			continue
		}
		for _, id := range pr.AssignedStudentIDs {
			busy[id] = true
		}
	}
	var idle []string
	for _, s := range st.Students {
		if !busy[s.ID] {
			idle = append(idle, s.ID)
		}
	}
	return idle
}
