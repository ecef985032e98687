package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"mente-maestra/internal/domain"
)

// PlayerDriver is a tablet-role client: it discovers the room's open session
// (polling until one exists, then subscribing), joins as a participant, and
// submits exactly one answer per question. It never writes session status;
// its local time-limit timer is advisory and only triggers the null answer.
type PlayerDriver struct {
	user      domain.User
	roomID    string
	deviceKey string

	rooms    *RoomService
	sessions *SessionService
	answers  *AnswerService
	archive  ScoreArchive
	devices  DeviceStateStore
	settings domain.GameSettings

	events      chan Event
	submissions chan string

	participant domain.Participant
	sessionID   string
}

func NewPlayerDriver(user domain.User, roomID, deviceKey string, rooms *RoomService, sessions *SessionService, answers *AnswerService, archive ScoreArchive, devices DeviceStateStore, settings domain.GameSettings) *PlayerDriver {
	return &PlayerDriver{
		user:        user,
		roomID:      roomID,
		deviceKey:   deviceKey,
		rooms:       rooms,
		sessions:    sessions,
		answers:     answers,
		archive:     archive,
		devices:     devices,
		settings:    settings,
		events:      make(chan Event, 16),
		submissions: make(chan string, 1),
	}
}

// Events carries session and podium updates for the attached device.
// Closed when Run returns.
func (d *PlayerDriver) Events() <-chan Event { return d.events }

// SubmitAnswer feeds the player's selection for the current question into the
// driver. Extra submissions while one is pending are dropped; the single-shot
// guard in the loop makes later ones for the same question no-ops anyway.
func (d *PlayerDriver) SubmitAnswer(option string) {
	select {
	case d.submissions <- option:
	default:
	}
}

// Run plays one game for this user. It blocks until the session ends, the
// room or session disappears, or ctx is cancelled; on cancellation while the
// session is still waiting, it leaves so the slot reopens.
func (d *PlayerDriver) Run(ctx context.Context) error {
	defer close(d.events)

	session, err := d.discoverSession(ctx)
	if err != nil {
		return err
	}
	d.sessionID = session.ID

	participant, err := d.sessions.Join(ctx, d.roomID, session.ID, d.user)
	if err != nil {
		d.emit(Event{Type: EventError, Message: err.Error()})
		return err
	}
	d.participant = participant
	defer d.leaveIfWaiting()

	if d.devices != nil {
		if err := d.devices.SetCurrentRoom(ctx, d.deviceKey, d.roomID); err != nil {
			log.Printf("player %s: persist room pointer: %v", d.user.ID, err)
		}
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

	loop := &playerLoop{driver: d, answeredIndex: -1}
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
				d.clearDevicePointer(ctx)
				d.emit(Event{Type: EventError, Message: "room no longer exists"})
				return domain.ErrRoomNotFound
			}

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
			done, err := loop.observe(ctx, snap.Session)
			if err != nil {
				return err
			}
			if done {
				return nil
			}

		case option := <-d.submissions:
			if err := loop.submit(ctx, option); err != nil {
				d.emit(Event{Type: EventError, Message: err.Error()})
			}

		case <-loop.timerCh():
			if err := loop.timeUp(ctx); err != nil {
				d.emit(Event{Type: EventError, Message: err.Error()})
			}
		}
	}
}

// discoverSession is the two-phase discovery protocol: poll until a session
// exists, then the caller switches to the steady-state subscription.
func (d *PlayerDriver) discoverSession(ctx context.Context) (domain.GameSession, error) {
	session, err := d.sessions.FindCurrent(ctx, d.roomID)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, domain.ErrSessionNotFound) {
		return domain.GameSession{}, err
	}

	ticker := time.NewTicker(d.settings.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return domain.GameSession{}, ctx.Err()
		case <-ticker.C:
			session, err := d.sessions.FindCurrent(ctx, d.roomID)
			if err == nil {
				return session, nil
			}
			if !errors.Is(err, domain.ErrSessionNotFound) {
				return domain.GameSession{}, err
			}
		}
	}
}

// leaveIfWaiting backs the participant out when the driver unwinds before the
// game started. Leaving twice is a reported error, not a crash.
func (d *PlayerDriver) leaveIfWaiting() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	session, err := d.sessions.FindCurrent(ctx, d.roomID)
	if err != nil || session.ID != d.sessionID || session.Status != domain.StatusWaiting {
		return
	}
	if err := d.sessions.Leave(ctx, d.roomID, d.sessionID, d.user.ID); err != nil {
		if !errors.Is(err, domain.ErrNotParticipant) {
			log.Printf("player %s: leave session: %v", d.user.ID, err)
		}
	}
}

func (d *PlayerDriver) emit(ev Event) {
	select {
	case d.events <- ev:
	default:
		select {
		case <-d.events:
		default:
		}
		d.events <- ev
	}
}

func (d *PlayerDriver) clearDevicePointer(ctx context.Context) {
	if d.devices == nil {
		return
	}
	if err := d.devices.ClearCurrentRoom(ctx, d.deviceKey); err != nil {
		log.Printf("player %s: clear room pointer: %v", d.user.ID, err)
	}
}

// playerLoop tracks the per-question local state: which question is live, when
// it started, and whether this player already answered it.
type playerLoop struct {
	driver *PlayerDriver

	current       *domain.SessionWithParticipants
	questionIndex int
	questionStart time.Time
	answeredIndex int
	archived      bool

	timer *time.Timer
}

func (l *playerLoop) timerCh() <-chan time.Time {
	if l.timer == nil {
		return nil
	}
	return l.timer.C
}

func (l *playerLoop) disarm() {
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
}

func (l *playerLoop) observe(ctx context.Context, snap *domain.SessionWithParticipants) (done bool, err error) {
	prev := l.current
	l.current = snap
	d := l.driver

	switch snap.Status {
	case domain.StatusQuestion:
		newQuestion := prev == nil || prev.Status != domain.StatusQuestion || prev.CurrentQuestionIndex != snap.CurrentQuestionIndex
		if newQuestion {
			// Fresh question: restart the advisory input timer.
			l.disarm()
			l.questionIndex = snap.CurrentQuestionIndex
			l.questionStart = time.Now()
			if snap.QuestionStartAt != nil {
				l.questionStart = *snap.QuestionStartAt
			}
			l.timer = time.NewTimer(d.settings.TimeLimit)
		}
	case domain.StatusPodium:
		l.disarm()
		if !l.archived {
			l.archived = true
			if err := l.archiveResult(ctx); err != nil {
				log.Printf("player %s: archive result: %v", d.user.ID, err)
			}
		}
	case domain.StatusEnded:
		l.disarm()
		return true, nil
	default:
		l.disarm()
	}
	return false, nil
}

func (l *playerLoop) submit(ctx context.Context, option string) error {
	if l.current == nil || l.current.Status != domain.StatusQuestion {
		return nil
	}
	if l.answeredIndex == l.questionIndex {
		return nil
	}
	l.answeredIndex = l.questionIndex
	l.disarm()

	d := l.driver
	elapsed := time.Since(l.questionStart)
	answer, err := d.answers.Submit(ctx, d.roomID, d.sessionID, l.driver.participant.ID, l.current.CurrentQuestionID, option, elapsed)
	if err != nil {
		return err
	}
	d.emit(Event{Type: EventAnswers, Answers: []domain.ParticipantAnswer{answer}, Count: 1})
	return nil
}

// timeUp writes the null answer for the current question: no selection, zero
// score, never correct.
func (l *playerLoop) timeUp(ctx context.Context) error {
	l.timer = nil
	if l.current == nil || l.current.Status != domain.StatusQuestion {
		return nil
	}
	if l.answeredIndex == l.questionIndex {
		return nil
	}
	l.answeredIndex = l.questionIndex

	d := l.driver
	answer, err := d.answers.SubmitTimeUp(ctx, d.roomID, d.sessionID, d.participant.ID, l.current.CurrentQuestionID)
	if err != nil {
		return err
	}
	d.emit(Event{Type: EventAnswers, Answers: []domain.ParticipantAnswer{answer}, Count: 1})
	return nil
}

// archiveResult persists this player's final standing once the podium shows.
func (l *playerLoop) archiveResult(ctx context.Context) error {
	d := l.driver
	if d.archive == nil {
		return nil
	}
	all, err := d.answers.AllAnswers(ctx, d.roomID, d.sessionID)
	if err != nil {
		return err
	}
	podium := BuildPodium(l.current.Participants, all)
	d.emit(Event{Type: EventPodium, Podium: podium})

	for _, entry := range podium {
		if entry.Participant.ID != d.participant.ID {
			continue
		}
		_, err := d.archive.SaveScore(ctx, domain.UserScore{
			UserID:         d.user.ID,
			UserDocument:   d.user.Document,
			RoomID:         d.roomID,
			SessionID:      d.sessionID,
			TotalScore:     entry.TotalScore,
			Position:       entry.Position,
			TotalTimeMs:    entry.TotalTimeMs,
			CorrectAnswers: entry.CorrectAnswers,
		})
		return err
	}
	return nil
}
