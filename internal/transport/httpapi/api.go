// Package httpapi serves the relay's HTTP endpoints.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/bft-labs/obsrelay/internal/app"
	"github.com/bft-labs/obsrelay/internal/domain"
	"github.com/bft-labs/obsrelay/internal/ports"
)

// DefaultBotPort is used when keyServer carries no port.
const DefaultBotPort = 25565

// maxBody bounds every request body.
const maxBody = 1 << 20

// Bot is the bot surface used by the API.
type Bot interface {
	Start(opts ports.BotOptions) error
	Stop() error
	Online() bool
	Status() app.BotStatus
}

// Relay queues a chat command for the bot.
type Relay interface {
	Relay(command string) time.Duration
}

// StreamEvents turns stream events into chatbox lines.
type StreamEvents interface {
	Handle(ev app.StreamEvent) (string, error)
}

// Describer publishes the catalog.
type Describer interface {
	Describe() []domain.OperationInfo
}

// StateSource reports the OBS session state.
type StateSource interface {
	State() domain.SessionState
}

// Deps are the services behind the API. Nil members disable their routes.
type Deps struct {
	Bot     Bot
	Relay   Relay
	Events  StreamEvents
	State   ports.StateStore
	Catalog Describer
	Session StateSource
	Logger  ports.Logger
}

// API is the HTTP handler set.
type API struct {
	deps Deps
	mux  *http.ServeMux
}

// New builds the API and its routes.
func New(deps Deps) *API {
	a := &API{deps: deps, mux: http.NewServeMux()}
	a.routes()
	return a
}

// Mount adds another handler, such as the WebSocket hub.
func (a *API) Mount(pattern string, h http.Handler) {
	a.mux.Handle(pattern, h)
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

func (a *API) routes() {
	a.mux.HandleFunc("GET /healthz", a.health)
	if a.deps.Catalog != nil {
		a.mux.HandleFunc("GET /api/operations", a.operations)
	}
	if a.deps.Bot != nil && a.deps.Relay != nil {
		a.mux.HandleFunc("POST /receive", a.receiveCommand)
	}
	if a.deps.State != nil {
		a.mux.HandleFunc("POST /state", a.saveState)
		a.mux.HandleFunc("POST /guardarEstado", a.saveState)
		a.mux.HandleFunc("GET /state", a.loadState)
	}
	if a.deps.Events != nil {
		a.mux.HandleFunc("POST /events", a.streamEvent)
		a.mux.HandleFunc("POST /receive1", a.streamEvent)
	}
	if a.deps.Bot != nil {
		a.mux.HandleFunc("POST /bot", a.bot)
		a.mux.HandleFunc("POST /create", a.bot)
		a.mux.HandleFunc("POST /api/disconnect", a.disconnectBot)
	}
}

type message struct {
	Message   string         `json:"message"`
	Text      string         `json:"text,omitempty"`
	DelayMs   *int64         `json:"delayMs,omitempty"`
	BotStatus *app.BotStatus `json:"botStatus,omitempty"`
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok"}
	if a.deps.Session != nil {
		state := a.deps.Session.State()
		body["obs"] = state
		body["connected"] = state == domain.StateConnected
	}
	if a.deps.Bot != nil {
		body["bot"] = a.deps.Bot.Status()
	}
	writeJSON(w, http.StatusOK, body)
}

func (a *API) operations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.deps.Catalog.Describe())
}

func (a *API) receiveCommand(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ReplacedCommand json.RawMessage `json:"replacedCommand"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	command := rawText(req.ReplacedCommand)
	if command == "" {
		a.fail(w, fmt.Errorf("%w: replacedCommand is required", domain.ErrInvalidArgument))
		return
	}
	if !a.deps.Bot.Online() {
		writeJSON(w, http.StatusOK, message{Message: "no bot to send the command"})
		return
	}
	delay := a.deps.Relay.Relay(command).Milliseconds()
	writeJSON(w, http.StatusOK, message{Message: "received", DelayMs: &delay})
}

func (a *API) saveState(w http.ResponseWriter, r *http.Request) {
	var req struct {
		State json.RawMessage `json:"state"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	if err := a.deps.State.SaveState(r.Context(), req.State); err != nil {
		a.fail(w, err)
		return
	}
	a.deps.Logger.Info("ui state saved", ports.Int("bytes", len(req.State)))
	writeJSON(w, http.StatusOK, message{Message: "state saved"})
}

func (a *API) loadState(w http.ResponseWriter, r *http.Request) {
	state, err := a.deps.State.LoadState(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]json.RawMessage{"state": state})
}

func (a *API) streamEvent(w http.ResponseWriter, r *http.Request) {
	var ev app.StreamEvent
	if !a.decode(w, r, &ev) {
		return
	}
	text, err := a.deps.Events.Handle(ev)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, message{Message: "received", Text: text})
}

type botRequest struct {
	EventType string `json:"eventType"`
	Data      struct {
		KeyBot      string `json:"keyBot"`
		KeyServer   string `json:"keyServer"`
		InitCommand string `json:"initCommand"`
		LegacyInit  string `json:"Initcommand"`
	} `json:"data"`
}

func (a *API) bot(w http.ResponseWriter, r *http.Request) {
	var req botRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.EventType != "createBot" {
		a.stopBot(w)
		return
	}

	opts, err := botOptions(req)
	if err != nil {
		a.fail(w, err)
		return
	}
	if err := a.deps.Bot.Start(opts); err != nil {
		// The supervisor keeps retrying in the background.
		a.deps.Logger.Warn("bot start failed", ports.Err(err))
	}
	st := a.deps.Bot.Status()
	writeJSON(w, http.StatusOK, message{Message: "bot created", BotStatus: &st})
}

func (a *API) disconnectBot(w http.ResponseWriter, r *http.Request) {
	a.stopBot(w)
}

func (a *API) stopBot(w http.ResponseWriter) {
	err := a.deps.Bot.Stop()
	if err != nil && !errors.Is(err, domain.ErrBotNotRunning) {
		a.fail(w, err)
		return
	}
	st := a.deps.Bot.Status()
	writeJSON(w, http.StatusOK, message{Message: "bot disconnected", BotStatus: &st})
}

func botOptions(req botRequest) (ports.BotOptions, error) {
	if req.Data.KeyBot == "" || req.Data.KeyServer == "" {
		return ports.BotOptions{}, fmt.Errorf("%w: keyBot and keyServer are required", domain.ErrInvalidArgument)
	}
	host, port := req.Data.KeyServer, DefaultBotPort
	if h, p, err := net.SplitHostPort(req.Data.KeyServer); err == nil {
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 || n > 65535 {
			return ports.BotOptions{}, fmt.Errorf("%w: bad port in %q", domain.ErrInvalidArgument, req.Data.KeyServer)
		}
		host, port = h, n
	}
	initCmd := req.Data.InitCommand
	if initCmd == "" {
		initCmd = req.Data.LegacyInit
	}
	return ports.BotOptions{Username: req.Data.KeyBot, Host: host, Port: port, InitCommand: initCmd}, nil
}

func (a *API) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		a.fail(w, fmt.Errorf("%w: %w", domain.ErrInvalidArgument, err))
		return false
	}
	return true
}

func (a *API) fail(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch domain.ErrorCode(err) {
	case domain.CodeInvalidArgument, domain.CodeMissingParams:
		status = http.StatusBadRequest
	case domain.CodeBotUnavailable, domain.CodeNotConnected, domain.CodeConnectionUnavailable:
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		a.deps.Logger.Error("request failed", ports.Err(err))
	}
	writeJSON(w, status, map[string]any{"error": domain.NewErrorPayload(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// rawText accepts a JSON string or number.
func rawText(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		return n.String()
	}
	return ""
}
