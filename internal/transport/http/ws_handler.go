package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"mente-maestra/internal/app"
	"mente-maestra/internal/domain"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WSHandler upgrades HTTP requests to websockets and attaches each connection
// to a game driver: role=tv runs the orchestrator, role=player the participant.
type WSHandler struct {
	rooms     *app.RoomService
	sessions  *app.SessionService
	questions *app.QuestionService
	answers   *app.AnswerService
	archive   app.ScoreArchive
	devices   app.DeviceStateStore
	settings  domain.GameSettings
	upgrader  websocket.Upgrader
}

func NewWSHandler(rooms *app.RoomService, sessions *app.SessionService, questions *app.QuestionService, answers *app.AnswerService, archive app.ScoreArchive, devices app.DeviceStateStore, settings domain.GameSettings) *WSHandler {
	return &WSHandler{
		rooms:     rooms,
		sessions:  sessions,
		questions: questions,
		answers:   answers,
		archive:   archive,
		devices:   devices,
		settings:  settings,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Option string `json:"option"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// ServeWS dispatches on the role query parameter. A tv connection drives the
// whole game for its room; a player connection joins and answers.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("roomId")
	role := r.URL.Query().Get("role")
	if roomID == "" || role == "" {
		http.Error(w, "missing roomId or role", http.StatusBadRequest)
		return
	}

	switch role {
	case "tv":
		h.serveTv(w, r, roomID)
	case "player":
		h.servePlayer(w, r, roomID)
	default:
		http.Error(w, "role must be tv or player", http.StatusBadRequest)
	}
}

func (h *WSHandler) serveTv(w http.ResponseWriter, r *http.Request, roomID string) {
	hostID := r.URL.Query().Get("hostId")
	if hostID == "" {
		hostID = uuid.NewString()
	}
	deviceKey := r.URL.Query().Get("deviceKey")
	if deviceKey == "" {
		deviceKey = "tv:" + hostID
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	driver := app.NewTvDriver(hostID, roomID, deviceKey, h.rooms, h.sessions, h.questions, h.answers, h.devices, h.settings)
	h.runDriver(conn, driver.Events(), driver.Run, nil)
}

func (h *WSHandler) servePlayer(w http.ResponseWriter, r *http.Request, roomID string) {
	q := r.URL.Query()
	user := domain.User{
		ID:       q.Get("userId"),
		Document: q.Get("document"),
		Username: q.Get("name"),
		Avatar:   q.Get("avatar"),
	}
	if user.ID == "" || user.Username == "" {
		http.Error(w, "missing userId or name", http.StatusBadRequest)
		return
	}
	deviceKey := q.Get("deviceKey")
	if deviceKey == "" {
		deviceKey = "player:" + user.ID
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	driver := app.NewPlayerDriver(user, roomID, deviceKey, h.rooms, h.sessions, h.answers, h.archive, h.devices, h.settings)
	h.runDriver(conn, driver.Events(), driver.Run, driver.SubmitAnswer)
}

// runDriver owns the connection lifecycle: one writer goroutine serializes all
// outbound frames, the driver runs until the game ends or the socket drops, and
// the read loop feeds player answers in. submit == nil for the tv role.
func (h *WSHandler) runDriver(conn *websocket.Conn, events <-chan app.Event, run func(context.Context) error, submit func(string)) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	send := make(chan outboundMessage, 16)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	runDone := make(chan error, 1)
	go func() {
		runDone <- run(ctx)
	}()

	eventsDone := make(chan struct{})
	go func() {
		defer close(eventsDone)
		for ev := range events {
			select {
			case send <- outboundMessage{Type: string(ev.Type), Payload: ev}:
			case <-writerDone:
				return
			}
		}
	}()

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			var inbound inboundMessage
			if err := conn.ReadJSON(&inbound); err != nil {
				return
			}
			switch inbound.Type {
			case "answer":
				if submit == nil {
					continue
				}
				var payload answerPayload
				if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
					log.Printf("ws: invalid answer payload: %v", err)
					continue
				}
				submit(payload.Option)
			}
		}
	}()

	select {
	case err := <-runDone:
		if err != nil && ctx.Err() == nil {
			log.Printf("driver stopped: %v", err)
		}
	case <-readDone:
		// Socket dropped; stop the driver. A waiting player leaves, a tv
		// mid-game leaves the session stuck for the admin cleanup.
		cancel()
		<-runDone
	}

	<-eventsDone
	close(send)
	<-writerDone
}
