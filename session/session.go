// Package session translates one engine connection's ipc messages into
// fleet command operations.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/nstehr/armada/armada-core/command"
	"github.com/nstehr/armada/armada-core/ipc"
	"github.com/nstehr/armada/armada-core/model"
	"github.com/nstehr/armada/armada-core/notify"
	"github.com/nstehr/armada/armada-core/orders"
)

// ErrRateLimited is reported when a connection sends faster than allowed.
var ErrRateLimited = errors.New("rate limited")

// Options wires a session to the shared core.
type Options struct {
	Registry *command.Registry
	// Dispatcher, when set, pushes notifications about the session's empire
	// back over the connection.
	Dispatcher *notify.Dispatcher
	Clock      *Clock
	// RateLimit is requests per second; zero or less disables limiting.
	RateLimit float64
	RateBurst int
}

// Session owns one engine connection.
type Session struct {
	Conn *ipc.Connection

	ctx      context.Context
	reg      *command.Registry
	disp     *notify.Dispatcher
	clock    *Clock
	limiter  *rate.Limiter
	validate *validator.Validate

	mu     sync.Mutex
	empire string
	route  string
}

func New(ctx context.Context, conn *ipc.Connection, opts Options) (*Session, error) {
	if opts.Registry == nil {
		return nil, errors.New("session needs a registry")
	}
	v, err := newValidator()
	if err != nil {
		return nil, err
	}
	if opts.Clock == nil {
		opts.Clock = &Clock{}
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), max(1, opts.RateBurst))
	}
	return &Session{
		Conn:     conn,
		ctx:      ctx,
		reg:      opts.Registry,
		disp:     opts.Dispatcher,
		clock:    opts.Clock,
		limiter:  limiter,
		validate: v,
	}, nil
}

// Register installs a handler for every request type on the connection.
func (s *Session) Register() {
	handlers := map[string]ipc.Handler{
		ipc.TypeHello:           s.HandleHello,
		ipc.TypeRegisterFleet:   s.HandleRegisterFleet,
		ipc.TypeFleetDestroyed:  s.HandleFleetDestroyed,
		ipc.TypeIssueOrder:      s.HandleIssueOrder,
		ipc.TypeCancelOrder:     s.HandleCancelOrder,
		ipc.TypeSetFormation:    s.HandleSetFormation,
		ipc.TypeBreakFormation:  s.HandleBreakFormation,
		ipc.TypeStartEngagement: s.HandleStartEngagement,
		ipc.TypeTick:            s.HandleTick,
		ipc.TypeTacticalStatus:  s.HandleTacticalStatus,
	}
	for t, h := range handlers {
		s.Conn.RegisterHandler(t, s.limited(h))
	}
}

// Serve registers handlers and blocks until the connection ends.
func (s *Session) Serve() {
	s.Register()
	defer s.Close()
	s.Conn.ReadLoop()
}

// Close stops notification pushes for this session.
func (s *Session) Close() {
	s.mu.Lock()
	route := s.route
	s.route = ""
	s.mu.Unlock()
	if route != "" && s.disp != nil {
		s.disp.Unregister(route)
	}
}

func (s *Session) Empire() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.empire
}

func (s *Session) limited(h ipc.Handler) ipc.Handler {
	return func(env ipc.Envelope) (*ipc.Envelope, error) {
		if !s.limiter.Allow() {
			slog.Warn("request dropped", "type", env.Type, "empire", s.Empire(), "error", ErrRateLimited)
			return ack(ErrRateLimited.Error(), "")
		}
		return h(env)
	}
}

// decode unmarshals and validates a request. A non-empty message means the
// request was rejected.
func (s *Session) decode(env ipc.Envelope, v any) string {
	if err := env.Decode(v); err != nil {
		return err.Error()
	}
	if err := s.validate.Struct(v); err != nil {
		return describe(err)
	}
	return ""
}

// HandleHello completes the handshake so the engine knows the bridge is ready.
func (s *Session) HandleHello(env ipc.Envelope) (*ipc.Envelope, error) {
	var hello ipc.HelloMessage
	if msg := s.decode(env, &hello); msg != "" {
		return ack(msg, "")
	}

	for i := range hello.Sectors {
		grid := hello.Sectors[i]
		s.reg.SetSector(&grid)
	}

	s.Close()
	s.mu.Lock()
	s.empire = hello.Empire
	s.mu.Unlock()
	s.Conn.SetEmpire(hello.Empire)

	if s.disp != nil {
		route := fmt.Sprintf("session:%s:%s", hello.Empire, uuid.NewString())
		s.disp.Register(route, notify.ForEmpire(hello.Empire), s.push)
		s.mu.Lock()
		s.route = route
		s.mu.Unlock()
	}
	slog.Info("empire identified", "empire", hello.Empire, "sectors", len(hello.Sectors))
	return ack("", "")
}

// push forwards a notification to the engine.
func (s *Session) push(_ context.Context, n notify.Notification) error {
	return s.Conn.Send(ipc.TypeNotification, n)
}

func (s *Session) HandleRegisterFleet(env ipc.Envelope) (*ipc.Envelope, error) {
	var cmd ipc.RegisterFleetCommand
	if msg := s.decode(env, &cmd); msg != "" {
		return ack(msg, "")
	}
	if cmd.Fleet.EmpireID == "" {
		cmd.Fleet.EmpireID = s.Empire()
	}
	if err := s.reg.Initialize(cmd.Fleet, cmd.Now); err != nil {
		return ack(err.Error(), "")
	}
	slog.Info("fleet registered", "fleet", cmd.Fleet.ID, "empire", cmd.Fleet.EmpireID, "ships", len(cmd.Fleet.Ships))
	return ack("", cmd.Fleet.ID)
}

func (s *Session) HandleFleetDestroyed(env ipc.Envelope) (*ipc.Envelope, error) {
	var cmd ipc.FleetDestroyedCommand
	if msg := s.decode(env, &cmd); msg != "" {
		return ack(msg, "")
	}
	if !s.reg.Remove(cmd.FleetID, cmd.Now) {
		return ack(fmt.Sprintf("%s: %s", command.ErrUnknownFleet, cmd.FleetID), "")
	}
	return ack("", cmd.FleetID)
}

func (s *Session) HandleIssueOrder(env ipc.Envelope) (*ipc.Envelope, error) {
	var cmd ipc.IssueOrderCommand
	if msg := s.decode(env, &cmd); msg != "" {
		return orderResult(cmd.FleetID, false, msg)
	}
	req := orders.Request{
		Kind:              model.OrderKind(cmd.Kind),
		Priority:          model.OrderPriority(cmd.Priority),
		Target:            cmd.Target,
		Parameters:        cmd.Parameters,
		Preconditions:     cmd.Preconditions,
		Postconditions:    cmd.Postconditions,
		ParentID:          cmd.ParentOrderID,
		IsRepeating:       cmd.IsRepeating,
		MaxRepeats:        cmd.MaxRepeats,
		EstimatedDuration: cmd.EstimatedDuration,
	}
	ok, msg := s.reg.IssueOrder(cmd.FleetID, req, cmd.Now)
	return orderResult(cmd.FleetID, ok, msg)
}

func (s *Session) HandleCancelOrder(env ipc.Envelope) (*ipc.Envelope, error) {
	var cmd ipc.CancelOrderCommand
	if msg := s.decode(env, &cmd); msg != "" {
		return orderResult(cmd.FleetID, false, msg)
	}
	if !s.reg.CancelOrder(cmd.FleetID, cmd.OrderID, cmd.Now) {
		return orderResult(cmd.FleetID, false, "order not found or already finished")
	}
	return orderResult(cmd.FleetID, true, cmd.OrderID)
}

func (s *Session) HandleSetFormation(env ipc.Envelope) (*ipc.Envelope, error) {
	var cmd ipc.SetFormationCommand
	if msg := s.decode(env, &cmd); msg != "" {
		return orderResult(cmd.FleetID, false, msg)
	}
	ok, msg := s.reg.SetFormation(cmd.FleetID, cmd.TemplateID, cmd.Now)
	return orderResult(cmd.FleetID, ok, msg)
}

func (s *Session) HandleBreakFormation(env ipc.Envelope) (*ipc.Envelope, error) {
	var cmd ipc.BreakFormationCommand
	if msg := s.decode(env, &cmd); msg != "" {
		return orderResult(cmd.FleetID, false, msg)
	}
	if !s.reg.BreakFormation(cmd.FleetID, cmd.Now) {
		return orderResult(cmd.FleetID, false, "fleet has no formation")
	}
	return orderResult(cmd.FleetID, true, "")
}

func (s *Session) HandleStartEngagement(env ipc.Envelope) (*ipc.Envelope, error) {
	var cmd ipc.StartEngagementCommand
	if msg := s.decode(env, &cmd); msg != "" {
		return ack(msg, "")
	}
	id, err := s.reg.StartEngagement(cmd.Attackers, cmd.Defenders, cmd.Now)
	if err != nil {
		return ack(err.Error(), "")
	}
	return ack("", id)
}

func (s *Session) HandleTick(env ipc.Envelope) (*ipc.Envelope, error) {
	var cmd ipc.TickCommand
	if msg := s.decode(env, &cmd); msg != "" {
		return ack(msg, "")
	}
	s.clock.Set(cmd.Now)
	res, err := s.reg.Tick(s.ctx, cmd.DT, cmd.Now, cmd.Fleets)
	if err != nil {
		return ack(err.Error(), "")
	}
	if len(res.Failed) > 0 {
		slog.Warn("fleet ticks rolled back", "fleets", res.Failed, "now", cmd.Now)
	}
	reply, err := ipc.NewEnvelope(ipc.TypeTickResult, ipc.TickResultMessage{
		Failed:      res.Failed,
		Engagements: res.Engagements,
	})
	if err != nil {
		return nil, err
	}
	return &reply, nil
}

func (s *Session) HandleTacticalStatus(env ipc.Envelope) (*ipc.Envelope, error) {
	var cmd ipc.TacticalStatusCommand
	var out ipc.TacticalStatusResultMessage
	if msg := s.decode(env, &cmd); msg != "" {
		out.Error = msg
	} else if st, err := s.reg.TacticalStatus(cmd.FleetID); err != nil {
		out.Error = err.Error()
	} else {
		out.Status = st
	}
	reply, err := ipc.NewEnvelope(ipc.TypeTacticalStatusResult, out)
	if err != nil {
		return nil, err
	}
	return &reply, nil
}

// ack replies ok when msg is empty and error otherwise.
func ack(msg, id string) (*ipc.Envelope, error) {
	a := ipc.AckMessage{Status: ipc.StatusOK, ID: id}
	if msg != "" {
		a = ipc.AckMessage{Status: ipc.StatusError, Message: msg}
	}
	env, err := ipc.NewEnvelope(ipc.TypeAck, a)
	if err != nil {
		return nil, err
	}
	return &env, nil
}

func orderResult(fleetID string, accepted bool, msg string) (*ipc.Envelope, error) {
	env, err := ipc.NewEnvelope(ipc.TypeOrderResult, ipc.OrderResultMessage{
		FleetID:  fleetID,
		Accepted: accepted,
		Message:  msg,
	})
	if err != nil {
		return nil, err
	}
	return &env, nil
}
