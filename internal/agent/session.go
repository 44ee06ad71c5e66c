package agent

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"paicode/internal/history"
	"paicode/internal/logging"
	"paicode/internal/ui"
	"paicode/internal/workspace"
)

// contextWindow is how many past interactions feed conversation prompts.
const contextWindow = 5

// Session is the interactive read-eval loop. It owns the interaction
// ring and delegates each request to the controller.
type Session struct {
	id         string
	version    string
	ws         *workspace.Workspace
	controller *Controller
	cancel     *CancelToken
	printer    *ui.Printer
	store      *history.Store

	in   *bufio.Reader
	ring []Interaction
}

// SessionConfig wires a Session.
type SessionConfig struct {
	Version    string
	Workspace  *workspace.Workspace
	Controller *Controller
	Cancel     *CancelToken
	Printer    *ui.Printer
	Store      *history.Store // optional
	Input      io.Reader
}

// NewSession creates a Session with a fresh session ID.
func NewSession(cfg SessionConfig) *Session {
	return &Session{
		id:         uuid.NewString(),
		version:    cfg.Version,
		ws:         cfg.Workspace,
		controller: cfg.Controller,
		cancel:     cfg.Cancel,
		printer:    cfg.Printer,
		store:      cfg.Store,
		in:         bufio.NewReader(cfg.Input),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Run executes the interactive loop until exit, quit, or EOF.
func (s *Session) Run(ctx context.Context) error {
	logging.Session("session %s started in %s", s.id, s.ws.Root())
	s.printer.Banner(s.version, s.ws.Root())

	if s.store != nil {
		if err := s.store.StartSession(s.id, s.ws.Root()); err != nil {
			logging.SessionError("failed to start history session: %v", err)
		} else {
			s.controller.SetHistory(s.store, s.id)
			defer func() {
				if err := s.store.EndSession(s.id); err != nil {
					logging.SessionError("failed to end history session: %v", err)
				}
			}()
		}
	}

	for {
		fmt.Print(s.printer.Prompt(s.ws.Root()))

		line, err := s.in.ReadString('\n')
		if err == io.EOF {
			s.printer.Mutedf("bye")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}

		request := strings.TrimSpace(line)
		if request == "" {
			continue
		}
		if request == "exit" || request == "quit" {
			s.printer.Mutedf("bye")
			return nil
		}

		// A cancellation signalled while idle applies to nothing;
		// drop it instead of killing the next request.
		s.cancel.Observe()

		report := s.controller.Run(ctx, request, s.recent(2))
		s.render(report)
		s.remember(request, report)
	}
}

// recent returns up to n most recent interactions, oldest first.
func (s *Session) recent(n int) []Interaction {
	if len(s.ring) < n {
		n = len(s.ring)
	}
	return s.ring[len(s.ring)-n:]
}

// remember appends to the interaction ring, keeping the newest
// contextWindow entries.
func (s *Session) remember(request string, report *TaskReport) {
	response := report.Reply
	if response == "" {
		response = report.Summary
	}
	s.ring = append(s.ring, Interaction{Request: request, Response: response})
	if len(s.ring) > contextWindow {
		s.ring = s.ring[len(s.ring)-contextWindow:]
	}
}

// render prints a task report.
func (s *Session) render(report *TaskReport) {
	switch report.State {
	case StateCancelled:
		s.printer.Warnf("cancelled; changes already applied were kept")
		return
	case StateFailed:
		if report.Err != nil {
			s.printer.Errorf("%v", report.Err)
		} else {
			s.printer.Errorf("task failed")
		}
	}

	if report.Intent == "conversation" {
		if report.Reply != "" {
			s.printer.Plainf("%s", report.Reply)
		}
		return
	}

	if report.Ack != "" {
		s.printer.Mutedf("%s", report.Ack)
	}

	if report.Plan != nil {
		var b strings.Builder
		b.WriteString(report.Plan.Analysis)
		for _, step := range report.Plan.Steps() {
			fmt.Fprintf(&b, "\n%d. %s %s", step.StepNumber, step.Action, step.Target)
		}
		s.printer.Panel("Plan", b.String())
	}

	for _, phase := range report.Phases {
		for _, o := range phase.Outcomes {
			if o.Result.OK {
				s.printer.Successf("%s", o.Line)
			} else {
				s.printer.Errorf("%s: %s", o.Line, o.Result.Message)
			}
		}
		if phase.Truncated > 0 {
			s.printer.Warnf("phase %d: %d command(s) beyond the batch limit were not executed", phase.Phase, phase.Truncated)
		}
		if !phase.Passed {
			s.printer.Warnf("phase %d: success rate %.0f%% below threshold; remaining phases skipped, no rollback performed",
				phase.Phase, phase.SuccessRate*100)
		}
	}

	if report.Summary != "" {
		s.printer.Panel("Summary", report.Summary)
	}
	if report.Suggestion != "" {
		s.printer.Infof("next: %s", report.Suggestion)
	}
}
