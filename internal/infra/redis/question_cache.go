package redis

import (
	"context"
	"math/rand"
	"sort"
	"sync/atomic"
	"time"

	"mente-maestra/internal/domain"
	"mente-maestra/internal/infra/memory"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// QuestionCache caches the question bank in Redis (hash per question) and falls
// back to a loader on cache miss.
// Each question is stored as: HSET question:{id} topic prompt a b c d answer
// The bank membership is stored as: SADD questionbank:ids {id}
type QuestionCache struct {
	client    *redis.Client
	loader    memory.BankLoader
	ttl       time.Duration
	sf        singleflight.Group
	rnd       *rand.Rand
	suspended atomic.Bool
}

func NewQuestionCache(client *redis.Client, loader memory.BankLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Suspend stops cache writes; reads fall through to the loader if Redis has no
// data. Subscriptions and game state are unaffected.
func (c *QuestionCache) Suspend() { c.suspended.Store(true) }

// Resume re-enables cache writes.
func (c *QuestionCache) Resume() { c.suspended.Store(false) }

func (c *QuestionCache) Bank(ctx context.Context) ([]domain.Question, error) {
	if !c.suspended.Load() {
		if bank, err := c.readBank(ctx); err == nil && len(bank) > 0 {
			return bank, nil
		}
	}

	result, err, _ := c.sf.Do("bank", func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if !c.suspended.Load() {
			if bank, err := c.readBank(ctx); err == nil && len(bank) > 0 {
				return bank, nil
			}
		}

		bank, err := c.loader.LoadBank(ctx)
		if err != nil {
			return nil, err
		}
		c.fillCache(ctx, bank)
		return bank, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (c *QuestionCache) GetQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	if !c.suspended.Load() {
		fields, err := c.client.HGetAll(ctx, c.questionKey(questionID)).Result()
		if err == nil && len(fields) > 0 {
			return questionFromFields(questionID, fields), nil
		}
	}

	bank, err := c.Bank(ctx)
	if err != nil {
		return domain.Question{}, err
	}
	for _, q := range bank {
		if q.ID == questionID {
			return q, nil
		}
	}
	return domain.Question{}, domain.ErrQuestionNotFound
}

func (c *QuestionCache) readBank(ctx context.Context) ([]domain.Question, error) {
	ids, err := c.client.SMembers(ctx, c.idsKey()).Result()
	if err != nil || len(ids) == 0 {
		return nil, err
	}

	pipe := c.client.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(ids))
	for _, id := range ids {
		cmds[id] = pipe.HGetAll(ctx, c.questionKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	questions := make([]domain.Question, 0, len(ids))
	for _, id := range ids {
		fields, err := cmds[id].Result()
		if err != nil || len(fields) == 0 {
			// partial expiry; treat as a miss so the loader refills
			return nil, nil
		}
		questions = append(questions, questionFromFields(id, fields))
	}
	sort.Slice(questions, func(i, j int) bool { return questions[i].ID < questions[j].ID })
	return questions, nil
}

func (c *QuestionCache) fillCache(ctx context.Context, bank []domain.Question) {
	if c.suspended.Load() {
		return
	}
	ttl := c.ttlWithJitter()
	pipe := c.client.Pipeline()
	for _, q := range bank {
		key := c.questionKey(q.ID)
		pipe.HSet(ctx, key,
			"topic", q.Topic,
			"prompt", q.Prompt,
			"a", q.Options.A,
			"b", q.Options.B,
			"c", q.Options.C,
			"d", q.Options.D,
			"answer", q.Answer,
		)
		pipe.SAdd(ctx, c.idsKey(), q.ID)
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
	}
	if ttl > 0 {
		pipe.Expire(ctx, c.idsKey(), ttl)
	}
	_, _ = pipe.Exec(ctx)
}

func (c *QuestionCache) questionKey(id string) string {
	return "question:" + id
}

func (c *QuestionCache) idsKey() string {
	return "questionbank:ids"
}

func questionFromFields(id string, fields map[string]string) domain.Question {
	return domain.Question{
		ID:     id,
		Topic:  fields["topic"],
		Prompt: fields["prompt"],
		Options: domain.QuestionOptions{
			A: fields["a"],
			B: fields["b"],
			C: fields["c"],
			D: fields["d"],
		},
		Answer: fields["answer"],
	}
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
