package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sk2233/spineview/internal/logging"
	"github.com/sk2233/spineview/internal/sched"
)

// Commander applies remote commands. It is only called on the scheduler
// goroutine. A command that is not applied, such as an animation change while
// the previous switch settles, returns an error and is rejected to the sender.
type Commander interface {
	SetPlaying(playing bool)
	SetAnimation(id, name string) error
	SetScale(id string, scale float32) error
}

type Server struct {
	hub            *Hub
	sched          *sched.Scheduler
	commander      Commander
	allowedOrigins map[string]bool
	allowedHosts   map[string]bool
	log            *logging.Logger
}

func NewServer(hub *Hub, s *sched.Scheduler, commander Commander, allowedOrigins []string, log *logging.Logger) *Server {
	if log == nil {
		log = logging.NopLogger()
	}
	res := &Server{
		hub:            hub,
		sched:          s,
		commander:      commander,
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
		log:            log.WithComponent("control"),
	}
	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		res.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			res.allowedHosts[parsed.Host] = true
		}
	}
	return res
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWS)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade error", "remote", r.RemoteAddr, "error", err)
		return
	}

	s.log.Info("websocket client connected", "remote", r.RemoteAddr)
	c := s.hub.AddClient(conn)

	go func() {
		defer func() {
			s.hub.RemoveClient(c)
			s.log.Info("websocket client disconnected", "remote", r.RemoteAddr)
		}()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			s.receive(c, data)
		}
	}()
}

// receive validates one command on the read goroutine and hands it to the
// scheduler.
func (s *Server) receive(c *client, data []byte) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		s.reject(c, fmt.Errorf("invalid command: %w", err))
		return
	}
	if err := validate(cmd); err != nil {
		s.reject(c, err)
		return
	}
	s.sched.Post(func() {
		if err := s.dispatch(cmd); err != nil {
			s.reject(c, err)
		}
	})
}

func validate(cmd Command) error {
	switch cmd.Type {
	case CmdPlay, CmdPause:
		return nil
	case CmdAnimation:
		if cmd.Session == "" || cmd.Name == "" {
			return errors.New("animation command needs session and name")
		}
		return nil
	case CmdScale:
		if cmd.Session == "" {
			return errors.New("scale command needs session")
		}
		if cmd.Scale <= 0 {
			return fmt.Errorf("invalid scale %v", cmd.Scale)
		}
		return nil
	}
	return fmt.Errorf("unknown command %q", cmd.Type)
}

func (s *Server) dispatch(cmd Command) error {
	s.log.Debug("command", "type", string(cmd.Type), "session", cmd.Session)
	switch cmd.Type {
	case CmdPlay:
		s.commander.SetPlaying(true)
	case CmdPause:
		s.commander.SetPlaying(false)
	case CmdAnimation:
		return s.commander.SetAnimation(cmd.Session, cmd.Name)
	case CmdScale:
		return s.commander.SetScale(cmd.Session, cmd.Scale)
	}
	return nil
}

func (s *Server) reject(c *client, err error) {
	s.log.Warn("command rejected", "error", err)
	s.hub.sendTo(c, WSMessage{Type: MsgError, Payload: ErrorPayload{Message: err.Error()}})
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(s.allowedOrigins) > 0 {
		if s.allowedOrigins[origin] {
			return true
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			return s.allowedHosts[parsed.Host]
		}
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
	}
	host := parsed.Hostname()
	if parsed.Host == r.Host {
		return true
	}
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

// ListenAndServe serves the control endpoint on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("control server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("control server: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("control server shutdown: %w", err)
	}
	return nil
}
