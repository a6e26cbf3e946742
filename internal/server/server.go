// Package server wires the record agent's components together.
//
// This is the composition root: it opens the record store and the side log,
// builds the dispatcher and the tool catalog on top of them, and registers
// tools, prompts and resources on the MCP server. No business logic lives
// here.
package server

import (
	"fmt"

	"github.com/mark3labs/mcp-go/server"

	"github.com/HendryAvila/recordpilot/internal/dispatch"
	"github.com/HendryAvila/recordpilot/internal/logging"
	"github.com/HendryAvila/recordpilot/internal/prompts"
	"github.com/HendryAvila/recordpilot/internal/records"
	"github.com/HendryAvila/recordpilot/internal/resources"
	"github.com/HendryAvila/recordpilot/internal/sidelog"
	"github.com/HendryAvila/recordpilot/internal/tools"
)

// Name is the MCP server name.
const Name = "recordpilot"

// Version is set at build time via ldflags.
var Version = "dev"

// Options locate the stores and name the person being assisted.
type Options struct {
	Store      records.Config
	SideLogDir string
	Owner      string
	Log        *logging.Logger
}

// Backend holds the shared collaborators behind every surface: the MCP
// server, the HTTP API and the terminal chat all run on one Backend.
type Backend struct {
	Store      *records.Store
	Side       *sidelog.Log
	Dispatcher *dispatch.Dispatcher
	Tools      *tools.Registry
}

var (
	openStore   = records.New
	openSideLog = sidelog.New
)

// Open opens the stores and builds the tool catalog. The returned cleanup
// closes the record store; it is always non-nil.
func Open(opts Options) (*Backend, func(), error) {
	log := opts.Log
	if log == nil {
		log = logging.Nop()
	}

	store, err := openStore(opts.Store)
	if err != nil {
		return nil, noop, fmt.Errorf("opening record store: %w", err)
	}
	cleanup := func() {
		if err := store.Close(); err != nil {
			log.Warn("Record store close failed", "error", err)
		}
	}

	dir := opts.SideLogDir
	if dir == "" {
		dir = opts.Store.DataDir
	}
	side, err := openSideLog(dir)
	if err != nil {
		cleanup()
		return nil, noop, fmt.Errorf("opening side log: %w", err)
	}

	d := dispatch.New(store, log)
	b := &Backend{
		Store:      store,
		Side:       side,
		Dispatcher: d,
		Tools:      tools.Catalog(tools.Deps{Dispatcher: d, Calendar: store, Side: side}),
	}
	log.Info("Record store ready", "path", store.Path(), "tools", len(b.Tools.Names()))
	return b, cleanup, nil
}

// New opens a Backend and creates the MCP server around it.
func New(opts Options) (*server.MCPServer, func(), error) {
	b, cleanup, err := Open(opts)
	if err != nil {
		return nil, noop, err
	}
	return NewMCP(b, opts.Owner), cleanup, nil
}

// NewMCP creates the MCP server for an open Backend.
func NewMCP(b *Backend, owner string) *server.MCPServer {
	s := server.NewMCPServer(
		Name,
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Tools ---

	for _, t := range b.Tools.Tools() {
		s.AddTool(t.Definition(), t.Handle)
	}

	// --- Prompts ---

	copilot := prompts.NewCopilotPrompt(owner)
	s.AddPrompt(copilot.Definition(), copilot.Handle)

	briefing := prompts.NewBriefingPrompt()
	s.AddPrompt(briefing.Definition(), briefing.Handle)

	// --- Resources ---

	h := resources.NewHandler(b.Store, b.Side)
	s.AddResource(h.SchemaResource(), h.HandleSchema)
	s.AddResource(h.StatsResource(), h.HandleStats)
	s.AddResource(h.RemindersResource(), h.HandleReminders)

	return s
}

func noop() {}

func serverInstructions() string {
	return `You have access to recordpilot, a personal records store: clients, goals,
projects, tasks, milestones, assets, briefings, meeting transcripts and users, plus
a log of thoughts and reminders.

## Working with records
- Search by name (search_records_by_name) before creating or updating by name.
- Closed fields only accept the values listed in records://schema.
- State what you are about to change and wait for the user's yes before calling
  create_record, update_record or delete_record.
- When a result has "requires_confirmation" or "requires_field_confirmation", ask
  the user its "message". On yes, call the matching confirm_* tool with the pending
  data from the result; on no, drop it.
- Dates are YYYY-MM-DD or YYYY-MM-DD HH:MM:SS. Call get_current_datetime before
  resolving "tomorrow" or "next Friday".

## Useful entry points
- The "copilot" prompt primes you with the full field catalog.
- The "morning-briefing" prompt and get_morning_briefing summarize the day.
- records://stats and records://reminders/today are cheap context.`
}
