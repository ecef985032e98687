package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"mente-maestra/internal/domain"
)

// EventType tags the updates a driver pushes to its attached client.
type EventType string

const (
	EventSession EventType = "session"
	EventAnswers EventType = "answers"
	EventPodium  EventType = "podium"
	EventRoom    EventType = "room"
	EventError   EventType = "error"
)

// Event is one driver-to-client update. Exactly one payload field is set,
// matching Type.
type Event struct {
	Type      EventType                       `json:"type"`
	Session   *domain.SessionWithParticipants `json:"session,omitempty"`
	Answers   []domain.ParticipantAnswer      `json:"answers,omitempty"`
	Count     int                             `json:"count,omitempty"`
	Podium    []domain.PodiumEntry            `json:"podium,omitempty"`
	Questions []domain.Question               `json:"questions,omitempty"`
	Room      *domain.Room                    `json:"room,omitempty"`
	Message   string                          `json:"message,omitempty"`
}

// TvDriver is the orchestrating client: the single writer for session status
// and question progression. It reserves a room, fills a session, and walks the
// state machine waiting -> countdown -> question -> feedback (looping) ->
// podium -> ended, releasing the room at the end.
//
// If the driver dies mid-game the session stays stuck at its last status until
// an admin runs the bulk cleanup; there is deliberately no automatic recovery.
type TvDriver struct {
	hostID    string
	roomID    string
	deviceKey string

	rooms     *RoomService
	sessions  *SessionService
	questions *QuestionService
	answers   *AnswerService
	devices   DeviceStateStore
	settings  domain.GameSettings

	events chan Event
}

func NewTvDriver(hostID, roomID, deviceKey string, rooms *RoomService, sessions *SessionService, questions *QuestionService, answers *AnswerService, devices DeviceStateStore, settings domain.GameSettings) *TvDriver {
	return &TvDriver{
		hostID:    hostID,
		roomID:    roomID,
		deviceKey: deviceKey,
		rooms:     rooms,
		sessions:  sessions,
		questions: questions,
		answers:   answers,
		devices:   devices,
		settings:  settings,
		events:    make(chan Event, 16),
	}
}

// Events carries session/answer/podium updates for the attached display.
// Closed when Run returns.
func (d *TvDriver) Events() <-chan Event { return d.events }

// Run drives one complete game. It blocks until the game ends, the room or
// session disappears, or ctx is cancelled.
func (d *TvDriver) Run(ctx context.Context) error {
	defer close(d.events)

	if err := d.rooms.Reserve(ctx, d.roomID); err != nil {
		return fmt.Errorf("reserve room: %w", err)
	}
	if d.devices != nil {
		if err := d.devices.SetCurrentRoom(ctx, d.deviceKey, d.roomID); err != nil {
			log.Printf("tv %s: persist room pointer: %v", d.hostID, err)
		}
	}

	session, err := d.sessions.FindOrCreate(ctx, d.roomID, d.hostID, d.settings.MaxPlayers)
	if err != nil {
		return fmt.Errorf("find or create session: %w", err)
	}

	sessionCh, cancelSession, err := d.sessions.Subscribe(ctx, d.roomID, session.ID)
	if err != nil {
		return fmt.Errorf("subscribe session: %w", err)
	}
	defer cancelSession()

	roomCh, cancelRoom, err := d.rooms.SubscribeRoom(ctx, d.roomID)
	if err != nil {
		return fmt.Errorf("subscribe room: %w", err)
	}
	defer cancelRoom()

	loop := &tvLoop{driver: d, sessionID: session.ID}
	defer loop.disarm()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case snap, ok := <-roomCh:
			if !ok {
				return errors.New("room subscription closed")
			}
			if snap.Room == nil {
				// Forced release: drop the cached pointer and stop writing.
				d.clearDevicePointer(ctx)
				d.emit(Event{Type: EventError, Message: "room no longer exists"})
				return domain.ErrRoomNotFound
			}
			d.emit(Event{Type: EventRoom, Room: snap.Room})

		case snap, ok := <-sessionCh:
			if !ok {
				return errors.New("session subscription closed")
			}
			if snap.Session == nil {
				d.clearDevicePointer(ctx)
				d.emit(Event{Type: EventError, Message: "session was removed"})
				return domain.ErrSessionNotFound
			}
			d.emit(Event{Type: EventSession, Session: snap.Session})
			if err := loop.observe(ctx, snap.Session); err != nil {
				return err
			}

		case answers, ok := <-loop.answersCh():
			if !ok {
				continue
			}
			d.emit(Event{Type: EventAnswers, Answers: answers, Count: len(answers)})
			if err := loop.observeAnswers(ctx, answers); err != nil {
				return err
			}

		case <-loop.timerCh():
			done, err := loop.timerFired(ctx)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
	}
}

func (d *TvDriver) emit(ev Event) {
	select {
	case d.events <- ev:
	default:
		// Drop the oldest pending event so a slow display never stalls the game.
		select {
		case <-d.events:
		default:
		}
		d.events <- ev
	}
}

func (d *TvDriver) clearDevicePointer(ctx context.Context) {
	if d.devices == nil {
		return
	}
	if err := d.devices.ClearCurrentRoom(ctx, d.deviceKey); err != nil {
		log.Printf("tv %s: clear room pointer: %v", d.hostID, err)
	}
}

// tvLoop holds the per-phase timer and answer subscription. The timer is
// disarmed and recreated on every phase change so a stale fire from the
// previous question can never double-advance the machine.
type tvLoop struct {
	driver    *TvDriver
	sessionID string

	current *domain.SessionWithParticipants

	armedStatus domain.SessionStatus
	armedIndex  int
	timer       *time.Timer

	answers       <-chan []domain.ParticipantAnswer
	cancelAnswers func()
	answersIndex  int
}

func (l *tvLoop) timerCh() <-chan time.Time {
	if l.timer == nil {
		return nil
	}
	return l.timer.C
}

func (l *tvLoop) answersCh() <-chan []domain.ParticipantAnswer {
	return l.answers
}

func (l *tvLoop) disarm() {
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	if l.cancelAnswers != nil {
		l.cancelAnswers()
		l.cancelAnswers = nil
		l.answers = nil
	}
}

// observe reacts to a fresh session snapshot, arming whatever the new phase
// needs. Re-observing the same phase (participant churn, counter updates)
// leaves the armed timer alone.
func (l *tvLoop) observe(ctx context.Context, snap *domain.SessionWithParticipants) error {
	l.current = snap
	d := l.driver

	if snap.Status == domain.StatusWaiting {
		if snap.JoinedCount >= snap.MaxPlayers && snap.IsOpenToJoin {
			return l.startGame(ctx)
		}
		return nil
	}

	if snap.Status == l.armedStatus && snap.CurrentQuestionIndex == l.armedIndex {
		return nil
	}
	l.disarm()
	l.armedStatus = snap.Status
	l.armedIndex = snap.CurrentQuestionIndex

	switch snap.Status {
	case domain.StatusCountdown:
		l.timer = time.NewTimer(d.settings.Countdown)
	case domain.StatusQuestion:
		answersCh, cancel, err := d.answers.SubscribeQuestionAnswers(ctx, d.roomID, l.sessionID, snap.CurrentQuestionID)
		if err != nil {
			return fmt.Errorf("subscribe answers: %w", err)
		}
		l.answers = answersCh
		l.cancelAnswers = cancel
		l.answersIndex = snap.CurrentQuestionIndex
		l.timer = time.NewTimer(d.settings.TimeLimit)
	case domain.StatusFeedback:
		l.timer = time.NewTimer(d.settings.FeedbackDwell)
	case domain.StatusPodium:
		if err := l.emitPodium(ctx); err != nil {
			log.Printf("tv %s: build podium: %v", d.hostID, err)
		}
		l.timer = time.NewTimer(d.settings.PodiumDwell)
	}
	return nil
}

// startGame is the waiting->countdown transition: pick the question sequence
// once, close the session to joins, and start the countdown.
func (l *tvLoop) startGame(ctx context.Context) error {
	d := l.driver
	if _, err := d.questions.SelectForSession(ctx, d.roomID, l.sessionID, d.hostID, d.settings.Questions); err != nil {
		if errors.Is(err, domain.ErrQuestionsAlreadySelected) {
			return nil
		}
		return fmt.Errorf("select questions: %w", err)
	}
	_, err := d.sessions.UpdateAsHost(ctx, d.roomID, l.sessionID, d.hostID, func(sess *domain.GameSession) {
		started := time.Now()
		sess.Status = domain.StatusCountdown
		sess.IsOpenToJoin = false
		sess.StartedAt = &started
	})
	if err != nil {
		return fmt.Errorf("start countdown: %w", err)
	}
	return nil
}

// observeAnswers cuts the question short once every expected participant has
// submitted. The status write is what actually gates navigation for everyone.
func (l *tvLoop) observeAnswers(ctx context.Context, answers []domain.ParticipantAnswer) error {
	if l.current == nil || l.current.Status != domain.StatusQuestion {
		return nil
	}
	if l.answersIndex != l.current.CurrentQuestionIndex {
		return nil
	}
	if len(answers) >= l.current.MaxPlayers && len(answers) > 0 {
		return l.toFeedback(ctx)
	}
	return nil
}

func (l *tvLoop) timerFired(ctx context.Context) (done bool, err error) {
	l.timer = nil
	if l.current == nil {
		return false, nil
	}
	d := l.driver

	switch l.armedStatus {
	case domain.StatusCountdown:
		_, err := d.sessions.UpdateAsHost(ctx, d.roomID, l.sessionID, d.hostID, func(sess *domain.GameSession) {
			startAt := time.Now()
			sess.Status = domain.StatusQuestion
			sess.QuestionStartAt = &startAt
		})
		return false, err

	case domain.StatusQuestion:
		return false, l.toFeedback(ctx)

	case domain.StatusFeedback:
		_, err := d.questions.Advance(ctx, d.roomID, l.sessionID, d.hostID)
		if errors.Is(err, domain.ErrQuestionsExhausted) {
			_, err = d.sessions.UpdateAsHost(ctx, d.roomID, l.sessionID, d.hostID, func(sess *domain.GameSession) {
				sess.Status = domain.StatusPodium
			})
		}
		return false, err

	case domain.StatusPodium:
		_, err := d.sessions.UpdateAsHost(ctx, d.roomID, l.sessionID, d.hostID, func(sess *domain.GameSession) {
			finished := time.Now()
			sess.Status = domain.StatusEnded
			sess.FinishedAt = &finished
		})
		if err != nil {
			return false, err
		}
		if err := d.rooms.Release(ctx, d.roomID); err != nil {
			return false, fmt.Errorf("release room: %w", err)
		}
		return true, nil
	}
	return false, nil
}

func (l *tvLoop) toFeedback(ctx context.Context) error {
	d := l.driver
	_, err := d.sessions.UpdateAsHost(ctx, d.roomID, l.sessionID, d.hostID, func(sess *domain.GameSession) {
		sess.Status = domain.StatusFeedback
	})
	return err
}

// emitPodium recomputes standings from the full answer history and resolves
// the played sequence for the recap. Nothing extra is persisted on the
// session; totals are always derived on read.
func (l *tvLoop) emitPodium(ctx context.Context) error {
	d := l.driver
	all, err := d.answers.AllAnswers(ctx, d.roomID, l.sessionID)
	if err != nil {
		return err
	}
	played, err := d.questions.SelectedQuestions(ctx, l.current.SelectedQuestionIDs)
	if err != nil {
		return err
	}
	podium := BuildPodium(l.current.Participants, all)
	d.emit(Event{Type: EventPodium, Podium: podium, Questions: played})
	return nil
}
