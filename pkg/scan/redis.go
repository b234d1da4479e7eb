package scan

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"

	"github.com/radioscan-network/radioscan/pkg/util"
)

// RedisSink mirrors scan results into Redis so dashboards and follow-up
// tooling can query the latest run without parsing CSV files. Redis being
// down must not kill a long batch run, so write failures are logged and
// swallowed.
type RedisSink struct {
	client *redis.Client
	runID  string
}

// NewRedisSink connects to the Redis instance at addr.
func NewRedisSink(addr, runID string) *RedisSink {
	return &RedisSink{
		client: redis.NewClient(&redis.Options{
			Addr: addr,
			DB:   0,
		}),
		runID: runID,
	}
}

func (s *RedisSink) key(parts ...string) string {
	key := "radioscan:" + s.runID
	for _, part := range parts {
		key += ":" + part
	}
	return key
}

func (s *RedisSink) WriteBatch(ctx context.Context, batch int, results []DeviceResult) error {
	for _, res := range results {
		key := s.key("radio", res.Addr)
		fields := map[string]interface{}{
			"family":   string(res.Family),
			"model":    res.Model,
			"name":     res.Name,
			"sn":       res.Serial,
			"sw":       res.Software,
			"error":    res.Error,
			"batch":    strconv.Itoa(batch),
			"commands": strconv.Itoa(len(res.Commands)),
			"metrics":  strconv.Itoa(len(res.Metrics)),
		}
		if err := s.client.HSet(ctx, key, fields).Err(); err != nil {
			util.Warnf("redis write for %s failed: %v", res.Addr, err)
			return nil
		}
		if err := s.client.SAdd(ctx, s.key("radios"), res.Addr).Err(); err != nil {
			util.Warnf("redis index for %s failed: %v", res.Addr, err)
			return nil
		}
		for i, e := range res.Errors {
			field := fmt.Sprintf("%s:%d", res.Addr, i)
			if err := s.client.HSet(ctx, s.key("errors"), field, e).Err(); err != nil {
				util.Warnf("redis error log for %s failed: %v", res.Addr, err)
				return nil
			}
		}
	}
	return nil
}

func (s *RedisSink) Close() error {
	return s.client.Close()
}
