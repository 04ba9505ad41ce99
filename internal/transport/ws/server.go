// Package ws serves one session to websocket clients: HELLO/WELCOME, then
// CMD in and ACK/STATE/REPORT out.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"mentorsim.ai/internal/protocol"
	"mentorsim.ai/internal/sim/model"
	"mentorsim.ai/internal/sim/session"
)

// Hooks let the host persist what the server does. Both run on the
// goroutine that handled the command.
type Hooks struct {
	// OnSettled runs after a successful END_QUARTER with the committed state.
	OnSettled func(ctx context.Context, r session.Report, st model.State)
	// OnCommand runs after every CMD with its outcome.
	OnCommand func(playerID string, cmd protocol.CommandMsg, err error)
}

type Config struct {
	Digests protocol.CatalogDigests
	// Token, when set, must match HELLO.auth.token.
	Token    string
	MaxQueue int
	Hooks    Hooks
}

type Server struct {
	sess *session.Session
	cfg  Config
	log  *log.Logger

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[chan []byte]struct{}
	seq     atomic.Uint64
}

func NewServer(sess *session.Session, cfg Config, logger *log.Logger) *Server {
	if cfg.MaxQueue <= 0 {
		cfg.MaxQueue = 16
	}
	return &Server{
		sess:    sess,
		cfg:     cfg,
		log:     logger,
		clients: map[chan []byte]struct{}{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		playerID, ok := s.handshake(conn)
		if !ok {
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		out := make(chan []byte, s.cfg.MaxQueue)
		s.mu.Lock()
		s.clients[out] = struct{}{}
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			delete(s.clients, out)
			s.mu.Unlock()
		}()
		s.send(out, s.stateMsg())

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(5 * time.Minute))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil || base.Type != protocol.TypeCommand {
				continue
			}
			var cmd protocol.CommandMsg
			_ = json.Unmarshal(msg, &cmd)
			if err := protocol.ValidateCommand(msg); err != nil {
				s.send(out, s.ack(cmd.ID, protocol.ErrProtoBadRequest, err.Error(), ""))
				continue
			}
			if cmd.ProtocolVersion != protocol.Version {
				s.send(out, s.ack(cmd.ID, protocol.ErrProtoBadRequest, "bad protocol_version", ""))
				continue
			}
			if cmd.Command == protocol.CmdEndQuarter {
				// Settlement can take a while on narrative calls; keep reading
				// so the client sees E_BUSY for a second request.
				go s.endQuarter(context.WithoutCancel(ctx), playerID, out, cmd)
				continue
			}
			entity, err := s.apply(cmd)
			s.finish(playerID, out, cmd, entity, err)
		}
		s.logf("player %s disconnected", playerID)
	}
}

func (s *Server) handshake(conn *websocket.Conn) (playerID string, ok bool) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", false
	}
	if err := protocol.ValidateHello(msg); err != nil {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return "", false
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", false
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return "", false
	}
	if s.cfg.Token != "" {
		token := ""
		if hello.Auth != nil {
			token = strings.TrimSpace(hello.Auth.Token)
		}
		if token != s.cfg.Token {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad token"), time.Now().Add(time.Second))
			return "", false
		}
	}
	if hello.PlayerName == "" {
		hello.PlayerName = "player"
	}

	st := s.sess.State()
	playerID = "p_" + uuid.NewString()
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		PlayerID:        playerID,
		Mentor:          st.Mentor.Name,
		Now:             st.Now,
		Catalogs:        s.cfg.Digests,
	}
	if err := writeJSON(conn, welcome); err != nil {
		return "", false
	}
	s.logf("player %s (%s) joined at %s", playerID, hello.PlayerName, st.Now)
	return playerID, true
}

func (s *Server) endQuarter(ctx context.Context, playerID string, out chan []byte, cmd protocol.CommandMsg) {
	report, err := s.sess.EndQuarter(ctx)
	if err == nil && s.cfg.Hooks.OnSettled != nil {
		s.cfg.Hooks.OnSettled(ctx, report, s.sess.State())
	}
	s.finish(playerID, out, cmd, "", err)
	if err == nil {
		s.broadcast(mustJSON(protocol.ReportMsg{Type: protocol.TypeReport, ProtocolVersion: protocol.Version, Report: report}))
	}
}

func (s *Server) finish(playerID string, out chan []byte, cmd protocol.CommandMsg, entity string, err error) {
	if s.cfg.Hooks.OnCommand != nil {
		s.cfg.Hooks.OnCommand(playerID, cmd, err)
	}
	if err != nil {
		s.send(out, s.ack(cmd.ID, CodeFor(err), err.Error(), ""))
		if errors.Is(err, session.ErrSettlementFailed) {
			// The failure entry is in the game log.
			s.broadcast(s.stateMsg())
		}
		return
	}
	s.send(out, s.ack(cmd.ID, "", "", entity))
	s.broadcast(s.stateMsg())
}

// apply runs every command except END_QUARTER. It returns the id of any
// entity the command created.
func (s *Server) apply(cmd protocol.CommandMsg) (string, error) {
	switch cmd.Command {
	case protocol.CmdChoose:
		_, err := s.sess.ChooseOption(context.Background(), cmd.DecisionID, cmd.OptionID)
		return "", err
	case protocol.CmdRecruit:
		c := s.sess.Candidate(cmd.Name)
		if cmd.StudentType != "" {
			c.Type = cmd.StudentType
		}
		stu, err := s.sess.Recruit(c)
		return stu.ID, err
	case protocol.CmdDismiss:
		return "", s.sess.Dismiss(cmd.StudentID)
	case protocol.CmdAssignMentor:
		return "", s.sess.AssignMentor(cmd.StudentID, cmd.MentorID)
	case protocol.CmdClearMentor:
		return "", s.sess.ClearMentor(cmd.StudentID)
	case protocol.CmdWhip:
		return "", s.sess.Whip(cmd.StudentID)
	case protocol.CmdComfort:
		return "", s.sess.Comfort(cmd.StudentID)
	case protocol.CmdStartProject:
		p, err := s.sess.StartProject(cmd.Title, cmd.Category, cmd.StudentIDs)
		return p.ID, err
	case protocol.CmdAssignProject:
		return "", s.sess.AssignProject(cmd.ProjectID, cmd.StudentIDs)
	case protocol.CmdApplyGrant:
		g, err := s.sess.ApplyGrant(cmd.GrantType, cmd.StudentIDs)
		return g.ID, err
	case protocol.CmdAssignGrant:
		return "", s.sess.AssignGrant(cmd.GrantID, cmd.StudentIDs)
	}
	return "", fmt.Errorf("%w: unknown command %q", session.ErrInvalid, cmd.Command)
}

// CodeFor maps a session error to its wire code.
func CodeFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, session.ErrSettling):
		return protocol.ErrBusy
	case errors.Is(err, session.ErrNotFound):
		return protocol.ErrNotFound
	case errors.Is(err, session.ErrAlreadyCared):
		return protocol.ErrConflict
	case errors.Is(err, session.ErrInvalid):
		return protocol.ErrBadRequest
	case errors.Is(err, session.ErrSettlementFailed):
		return protocol.ErrSettlementFailed
	}
	return protocol.ErrInternal
}

func (s *Server) ack(id, code, msg, entity string) []byte {
	return mustJSON(protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		AckFor:          id,
		Accepted:        code == "",
		Code:            code,
		Message:         msg,
		Now:             s.sess.Now(),
		EntityID:        entity,
	})
}

func (s *Server) stateMsg() []byte {
	return mustJSON(protocol.StateMsg{
		Type:            protocol.TypeState,
		ProtocolVersion: protocol.Version,
		Seq:             s.seq.Add(1),
		Settling:        s.sess.Settling(),
		State:           s.sess.State(),
	})
}

// send drops b when the client is not keeping up; the next STATE
// supersedes it.
func (s *Server) send(out chan []byte, b []byte) {
	select {
	case out <- b:
	default:
	}
}

func (s *Server) broadcast(b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for out := range s.clients {
		s.send(out, b)
	}
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
