package ranking

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/karten-melder/internal/cache"
	"github.com/jonboulle/clockwork"
)

// CacheObserver is notified about ranking cache lookups
type CacheObserver interface {
	IncrementCacheHit()
	IncrementCacheMiss()
}

// RankingCache stores computed rankings as JSON with a TTL.
// Results computed before the last InvalidateAll are never stored.
type RankingCache struct {
	cache    *cache.Cache
	observer CacheObserver

	mu         sync.Mutex
	generation uint64
}

// NewRankingCache creates a new ranking cache
func NewRankingCache(ttl time.Duration, clock clockwork.Clock, observer CacheObserver) *RankingCache {
	return &RankingCache{
		cache:    cache.NewCacheWithClock(ttl, clock),
		observer: observer,
	}
}

func cityRankingKey(days, limit int) string {
	return fmt.Sprintf("cities:%d:%d", days, limit)
}

func cityNumbersKey(city string) string {
	return "numbers:" + strings.ToLower(city)
}

func phoneStatsKey(phone string) string {
	return "phone:" + NormalizePhone(phone)
}

func (rc *RankingCache) load(key string, dst any) bool {
	data, found := rc.cache.Get(key)
	if !found {
		if rc.observer != nil {
			rc.observer.IncrementCacheMiss()
		}
		return false
	}

	if err := json.Unmarshal(data, dst); err != nil {
		slog.Error("Failed to unmarshal cached ranking", "error", err, "key", key)
		rc.cache.Delete(key)
		return false
	}

	if rc.observer != nil {
		rc.observer.IncrementCacheHit()
	}
	slog.Debug("Ranking cache hit", "key", key)
	return true
}

// Generation identifies the current cache contents. Read it before loading
// the reports a ranking is computed from.
func (rc *RankingCache) Generation() uint64 {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.generation
}

func (rc *RankingCache) store(generation uint64, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		slog.Error("Failed to marshal ranking for cache", "error", err, "key", key)
		return
	}

	rc.mu.Lock()
	defer rc.mu.Unlock()
	if generation != rc.generation {
		slog.Debug("Dropping ranking computed before invalidation", "key", key)
		return
	}
	rc.cache.Set(key, data)
}

// GetCityRanking retrieves a cached city ranking
func (rc *RankingCache) GetCityRanking(days, limit int) ([]CityStat, bool) {
	var stats []CityStat
	ok := rc.load(cityRankingKey(days, limit), &stats)
	return stats, ok
}

// SetCityRanking caches a city ranking
func (rc *RankingCache) SetCityRanking(generation uint64, days, limit int, stats []CityStat) {
	rc.store(generation, cityRankingKey(days, limit), stats)
}

// GetCityNumbers retrieves the cached number ranking for city
func (rc *RankingCache) GetCityNumbers(city string) ([]NumberStat, bool) {
	var stats []NumberStat
	ok := rc.load(cityNumbersKey(city), &stats)
	return stats, ok
}

// SetCityNumbers caches the number ranking for city
func (rc *RankingCache) SetCityNumbers(generation uint64, city string, stats []NumberStat) {
	rc.store(generation, cityNumbersKey(city), stats)
}

// GetPhoneStats retrieves cached stats for phone
func (rc *RankingCache) GetPhoneStats(phone string) (PhoneStat, bool) {
	var stat PhoneStat
	ok := rc.load(phoneStatsKey(phone), &stat)
	return stat, ok
}

// SetPhoneStats caches stats for phone
func (rc *RankingCache) SetPhoneStats(generation uint64, phone string, stat PhoneStat) {
	rc.store(generation, phoneStatsKey(phone), stat)
}

// InvalidateAll drops every cached ranking and starts a new generation
func (rc *RankingCache) InvalidateAll() {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.generation++
	rc.cache.Clear()
	slog.Debug("Ranking cache invalidated")
}

// GetStats returns cache statistics
func (rc *RankingCache) GetStats() map[string]interface{} {
	return rc.cache.Stats()
}

// Close stops the underlying cache cleanup
func (rc *RankingCache) Close() {
	rc.cache.Close()
}
