package data

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stake-plus/landvote/src/governance"
)

const (
	noncePrefix  = "nonce:"
	nonceTTL     = 5 * time.Minute
	streamEvents = "landvote.events"
	streamMaxLen = 10000
)

func MustRedis(url string) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	return redis.NewClient(opt)
}

func SetNonce(ctx context.Context, rdb *redis.Client, addr, nonce string) error {
	return rdb.Set(ctx, noncePrefix+addr, nonce, nonceTTL).Err()
}

func GetAndDelNonce(ctx context.Context, rdb *redis.Client, addr string) (string, error) {
	return rdb.GetDel(ctx, noncePrefix+addr).Result()
}

// StreamPublisher appends governance events to a capped redis stream so other
// services can follow proposal activity.
type StreamPublisher struct {
	rdb    *redis.Client
	stream string
}

// NewStreamPublisher publishes to the default landvote.events stream.
func NewStreamPublisher(rdb *redis.Client) *StreamPublisher {
	return &StreamPublisher{rdb: rdb, stream: streamEvents}
}

func (p *StreamPublisher) Publish(ctx context.Context, ev governance.Event) error {
	_, err := p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: StreamValues(ev),
	}).Result()
	return err
}

// StreamValues flattens an event into redis stream fields.
func StreamValues(ev governance.Event) map[string]interface{} {
	payload, _ := json.Marshal(ev)
	return map[string]interface{}{
		"kind":        string(ev.Kind),
		"proposal_id": ev.ProposalID,
		"region":      ev.Region,
		"status":      string(ev.Status),
		"actor":       ev.Actor,
		"choice":      string(ev.Choice),
		"at":          ev.At.UTC().Format(time.RFC3339Nano),
		"payload":     string(payload),
	}
}
