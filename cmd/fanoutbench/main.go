package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/d60-Lab/fanline/internal/cache"
)

// Measures the pipelined fan-out write (ZADD + trim + EXPIRE per follower)
// against single-follower pushes, and the ZREVRANGE read path, on a real redis.
func main() {
	ctx := context.Background()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	if err := client.Ping(ctx).Err(); err != nil {
		panic(fmt.Sprintf("redis unreachable at %s: %v", addr, err))
	}

	followers := envInt("FOLLOWERS", 5000)
	repeat := envInt("REPEAT", 50)
	timelineSize := envInt("TIMELINE_SIZE", 100)

	timelines := cache.NewTimelineCache(client, timelineSize, 7*24*time.Hour, time.Minute)

	ids := make([]string, followers)
	for i := range ids {
		ids[i] = uuid.NewString()
	}

	singles := make([]time.Duration, 0, repeat)
	for i := 0; i < repeat; i++ {
		st := time.Now()
		if err := timelines.Push(ctx, ids[:1], uuid.NewString(), time.Now()); err != nil {
			panic(err)
		}
		singles = append(singles, time.Since(st))
	}

	fanouts := make([]time.Duration, 0, repeat)
	for i := 0; i < repeat; i++ {
		st := time.Now()
		if err := timelines.Push(ctx, ids, uuid.NewString(), time.Now()); err != nil {
			panic(err)
		}
		fanouts = append(fanouts, time.Since(st))
	}

	reads := make([]time.Duration, 0, repeat*10)
	for i := 0; i < repeat*10; i++ {
		st := time.Now()
		if _, err := timelines.Range(ctx, ids[i%followers], 0, int64(timelineSize-1)); err != nil {
			panic(err)
		}
		reads = append(reads, time.Since(st))
	}

	fmt.Printf("FOLLOWERS=%d REPEAT=%d TIMELINE_SIZE=%d\n", followers, repeat, timelineSize)
	fmt.Printf("Single-follower push:   avg=%v p95=%v p99=%v\n", avg(singles), pct(singles, 0.95), pct(singles, 0.99))
	fmt.Printf("Fan-out %d followers: avg=%v p95=%v p99=%v\n", followers, avg(fanouts), pct(fanouts, 0.95), pct(fanouts, 0.99))
	fmt.Printf("Timeline page read:     avg=%v p95=%v p99=%v\n", avg(reads), pct(reads, 0.95), pct(reads, 0.99))
}

func envInt(name string, def int) int {
	if s := os.Getenv(name); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			return v
		}
	}
	return def
}

func avg(vs []time.Duration) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	var sum time.Duration
	for _, v := range vs {
		sum += v
	}
	return sum / time.Duration(len(vs))
}

func pct(vs []time.Duration, p float64) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), vs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
