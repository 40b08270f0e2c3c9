package utils

import (
	"context"
	"sync"
	"time"
)

var (
	stateStore   = map[string]time.Time{}
	stateStoreMu sync.Mutex
)

// SaveState stores an OAuth state token with TTL to mitigate CSRF.
func SaveState(ctx context.Context, state string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := rc.Set(ctx, "oauth:state:"+state, "1", ttl).Err(); err == nil {
			return
		}
	}
	// in-memory fallback is single-instance only
	stateStoreMu.Lock()
	defer stateStoreMu.Unlock()
	now := time.Now()
	for k, exp := range stateStore {
		if now.After(exp) {
			delete(stateStore, k)
		}
	}
	stateStore[state] = now.Add(ttl)
}

// ConsumeState validates and removes a state token. Each state can be consumed once.
func ConsumeState(ctx context.Context, state string) bool {
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if v, err := rc.GetDel(ctx, "oauth:state:"+state).Result(); err == nil {
			return v != ""
		}
	}
	stateStoreMu.Lock()
	exp, ok := stateStore[state]
	if ok {
		delete(stateStore, state)
	}
	stateStoreMu.Unlock()
	return ok && time.Now().Before(exp)
}
