package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	presenceIndexKey = "callrelay:sessions:active"
	presenceTTL      = 24 * time.Hour
	opTimeout        = 2 * time.Second
	queueSize        = 1024
)

// presence key: callrelay:session:<id>:active
func presenceKey(sessionID string) string { return "callrelay:session:" + sessionID + ":active" }

type presenceEvent struct {
	sessionID string
	active    bool
}

// Presence mirrors session liveness into Redis so operators and other
// services can see which sessions are live. It is write-only: the in-process
// registry stays authoritative and nothing is read back on startup.
//
// Presence implements registry.Observer. Events are queued and applied by a
// single worker, so registry locks never wait on Redis.
type Presence struct {
	client *redis.Client
	log    *zap.Logger

	events    chan presenceEvent
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewPresence(client *redis.Client, log *zap.Logger) *Presence {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Presence{
		client: client,
		log:    log,
		events: make(chan presenceEvent, queueSize),
		done:   make(chan struct{}),
	}
	p.wg.Add(1)
	go p.run()
	return p
}

func (p *Presence) SessionStarted(sessionID string) {
	p.enqueue(presenceEvent{sessionID: sessionID, active: true})
}

func (p *Presence) SessionEnded(sessionID string) {
	p.enqueue(presenceEvent{sessionID: sessionID, active: false})
}

func (p *Presence) enqueue(ev presenceEvent) {
	select {
	case <-p.done:
		return
	default:
	}

	select {
	case p.events <- ev:
	default:
		p.log.Warn("presence queue full, dropping update",
			zap.String("session", ev.sessionID),
			zap.Bool("active", ev.active))
	}
}

func (p *Presence) run() {
	defer p.wg.Done()
	for {
		select {
		case ev := <-p.events:
			p.apply(ev)
		case <-p.done:
			for {
				select {
				case ev := <-p.events:
					p.apply(ev)
				default:
					return
				}
			}
		}
	}
}

func (p *Presence) apply(ev presenceEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if ev.active {
			pipe.Set(ctx, presenceKey(ev.sessionID), time.Now().UTC().Unix(), presenceTTL)
			pipe.SAdd(ctx, presenceIndexKey, ev.sessionID)
			return nil
		}
		pipe.Del(ctx, presenceKey(ev.sessionID))
		pipe.SRem(ctx, presenceIndexKey, ev.sessionID)
		return nil
	})
	if err != nil {
		p.log.Warn("failed to mirror session presence",
			zap.String("session", ev.sessionID),
			zap.Bool("active", ev.active),
			zap.Error(err))
	}
}

// Reset clears entries left behind by a previous process. A fresh process
// has no live sessions.
func (p *Presence) Reset(ctx context.Context) error {
	members, err := p.client.SMembers(ctx, presenceIndexKey).Result()
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(members)+1)
	for _, id := range members {
		keys = append(keys, presenceKey(id))
	}
	keys = append(keys, presenceIndexKey)
	return p.client.Del(ctx, keys...).Err()
}

// Active lists the mirrored live sessions.
func (p *Presence) Active(ctx context.Context) ([]string, error) {
	return p.client.SMembers(ctx, presenceIndexKey).Result()
}

// Close stops the worker after applying queued updates.
func (p *Presence) Close() {
	p.closeOnce.Do(func() { close(p.done) })
	p.wg.Wait()
}
