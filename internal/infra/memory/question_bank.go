package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"mente-maestra/internal/domain"
	"golang.org/x/sync/singleflight"
)

// BankLoader fetches the question bank from a backing store (e.g., Postgres).
type BankLoader interface {
	LoadBank(ctx context.Context) ([]domain.Question, error)
}

// QuestionBank caches the full question bank with TTL to avoid repeated
// backing-store hits. Lookups by id are pure in-memory once the bank is loaded.
type QuestionBank struct {
	loader BankLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	questions []domain.Question
	byID      map[string]domain.Question
	expiresAt time.Time
}

func NewQuestionBank(loader BankLoader, ttl time.Duration) *QuestionBank {
	return &QuestionBank{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		byID:   make(map[string]domain.Question),
	}
}

func (b *QuestionBank) Bank(ctx context.Context) ([]domain.Question, error) {
	now := b.clock()

	b.mu.RLock()
	if len(b.questions) > 0 && b.expiresAt.After(now) {
		questions := b.questions
		b.mu.RUnlock()
		return questions, nil
	}
	b.mu.RUnlock()

	result, err, _ := b.sf.Do("bank", func() (interface{}, error) {
		now := b.clock()
		b.mu.RLock()
		if len(b.questions) > 0 && b.expiresAt.After(now) {
			questions := b.questions
			b.mu.RUnlock()
			return questions, nil
		}
		b.mu.RUnlock()

		questions, err := b.loader.LoadBank(ctx)
		if err != nil {
			return nil, err
		}

		byID := make(map[string]domain.Question, len(questions))
		for _, q := range questions {
			byID[q.ID] = q
		}

		b.mu.Lock()
		b.questions = questions
		b.byID = byID
		b.expiresAt = now.Add(b.ttlWithJitter())
		b.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (b *QuestionBank) GetQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	if _, err := b.Bank(ctx); err != nil {
		return domain.Question{}, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if q, ok := b.byID[questionID]; ok {
		return q, nil
	}
	return domain.Question{}, domain.ErrQuestionNotFound
}

func (b *QuestionBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(b.ttl) / 10
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}

// StaticBankLoader serves a fixed in-memory bank (useful for tests/demos).
type StaticBankLoader struct {
	questions []domain.Question
}

func NewStaticBankLoader(questions []domain.Question) *StaticBankLoader {
	return &StaticBankLoader{questions: questions}
}

func (l *StaticBankLoader) LoadBank(_ context.Context) ([]domain.Question, error) {
	return l.questions, nil
}
