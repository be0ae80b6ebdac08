package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const leaderboardDateFormat = "02.01.2006 15:04"

// LeaderboardEntry is a user's best finished quiz.
type LeaderboardEntry struct {
	UserID      int64   `json:"user_id"`
	DisplayName string  `json:"display_name"`
	Score       float64 `json:"score"`
	Correct     int     `json:"correct"`
	Total       int     `json:"total"`
	Date        string  `json:"date"`
}

// better reports whether a ranks above b.
func (a LeaderboardEntry) better(b LeaderboardEntry) bool {
	if a.Score == b.Score {
		return a.Correct > b.Correct
	}
	return a.Score > b.Score
}

type LeaderboardService interface {
	// AddEntry records a finished quiz and reports whether it is the user's new best.
	AddEntry(ctx context.Context, entry LeaderboardEntry) (bool, error)
	GetTop(ctx context.Context, limit int) ([]LeaderboardEntry, error)
	// GetUserPosition returns the 1-based rank of the user, or -1 when absent.
	GetUserPosition(ctx context.Context, userID int64) (int, *LeaderboardEntry, error)
}

func stampEntry(entry LeaderboardEntry, now time.Time) LeaderboardEntry {
	entry.Score = RoundScore(entry.Score)
	if entry.Date == "" {
		entry.Date = now.Format(leaderboardDateFormat)
	}
	return entry
}

// MemoryLeaderboardService keeps the leaderboard in memory (lost on restart).
type MemoryLeaderboardService struct {
	mu      sync.RWMutex
	entries []LeaderboardEntry
}

func NewMemoryLeaderboardService() *MemoryLeaderboardService {
	return &MemoryLeaderboardService{
		entries: make([]LeaderboardEntry, 0),
	}
}

func (ms *MemoryLeaderboardService) AddEntry(_ context.Context, entry LeaderboardEntry) (bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	newEntry := stampEntry(entry, time.Now())
	for i, existing := range ms.entries {
		if existing.UserID == entry.UserID {
			if newEntry.better(existing) {
				ms.entries[i] = newEntry
				return true, nil
			}
			return false, nil
		}
	}

	ms.entries = append(ms.entries, newEntry)
	return true, nil
}

func (ms *MemoryLeaderboardService) GetTop(_ context.Context, limit int) ([]LeaderboardEntry, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return ms.sortedLocked(limit), nil
}

func (ms *MemoryLeaderboardService) sortedLocked(limit int) []LeaderboardEntry {
	sorted := make([]LeaderboardEntry, len(ms.entries))
	copy(sorted, ms.entries)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].better(sorted[j])
	})

	if limit <= 0 || limit > len(sorted) {
		limit = len(sorted)
	}
	return sorted[:limit]
}

func (ms *MemoryLeaderboardService) GetUserPosition(_ context.Context, userID int64) (int, *LeaderboardEntry, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	for i, entry := range ms.sortedLocked(0) {
		if entry.UserID == userID {
			return i + 1, &entry, nil
		}
	}
	return -1, nil, nil
}

// RedisLeaderboardService ranks users in a sorted set; per-user details live in a hash.
type RedisLeaderboardService struct {
	redis  *redis.Client
	prefix string
}

func NewRedisLeaderboardService(client *redis.Client, prefix string) *RedisLeaderboardService {
	if prefix == "" {
		prefix = "quiz:lb"
	}
	return &RedisLeaderboardService{redis: client, prefix: prefix}
}

func (rs *RedisLeaderboardService) rankKey() string {
	return rs.prefix + ":rank"
}

func (rs *RedisLeaderboardService) metaKey(userID int64) string {
	return fmt.Sprintf("%s:meta:%d", rs.prefix, userID)
}

func (rs *RedisLeaderboardService) AddEntry(ctx context.Context, entry LeaderboardEntry) (bool, error) {
	newEntry := stampEntry(entry, time.Now())
	member := strconv.FormatInt(entry.UserID, 10)

	// GT only ever raises a stored score; CH makes the reply count updates as well as inserts.
	changed, err := rs.redis.ZAddArgs(ctx, rs.rankKey(), redis.ZAddArgs{
		GT:      true,
		Ch:      true,
		Members: []redis.Z{{Score: newEntry.Score, Member: member}},
	}).Result()
	if err != nil {
		return false, fmt.Errorf("update leaderboard rank: %w", err)
	}
	if changed == 0 {
		return false, nil
	}

	err = rs.redis.HSet(ctx, rs.metaKey(entry.UserID), map[string]interface{}{
		"display_name": newEntry.DisplayName,
		"correct":      newEntry.Correct,
		"total":        newEntry.Total,
		"date":         newEntry.Date,
	}).Err()
	if err != nil {
		return true, fmt.Errorf("update leaderboard metadata: %w", err)
	}
	return true, nil
}

func (rs *RedisLeaderboardService) GetTop(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	results, err := rs.redis.ZRevRangeWithScores(ctx, rs.rankKey(), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch leaderboard: %w", err)
	}

	entries := make([]LeaderboardEntry, 0, len(results))
	for _, z := range results {
		member, _ := z.Member.(string)
		userID, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			continue
		}
		entry, err := rs.readMeta(ctx, userID)
		if err != nil {
			return nil, err
		}
		entry.Score = z.Score
		entries = append(entries, entry)
	}
	return entries, nil
}

func (rs *RedisLeaderboardService) GetUserPosition(ctx context.Context, userID int64) (int, *LeaderboardEntry, error) {
	member := strconv.FormatInt(userID, 10)
	rank, err := rs.redis.ZRevRank(ctx, rs.rankKey(), member).Result()
	if errors.Is(err, redis.Nil) {
		return -1, nil, nil
	}
	if err != nil {
		return -1, nil, fmt.Errorf("fetch leaderboard rank: %w", err)
	}
	score, err := rs.redis.ZScore(ctx, rs.rankKey(), member).Result()
	if err != nil {
		return -1, nil, fmt.Errorf("fetch leaderboard score: %w", err)
	}
	entry, err := rs.readMeta(ctx, userID)
	if err != nil {
		return -1, nil, err
	}
	entry.Score = score
	return int(rank) + 1, &entry, nil
}

func (rs *RedisLeaderboardService) readMeta(ctx context.Context, userID int64) (LeaderboardEntry, error) {
	fields, err := rs.redis.HGetAll(ctx, rs.metaKey(userID)).Result()
	if err != nil {
		return LeaderboardEntry{}, fmt.Errorf("fetch leaderboard metadata: %w", err)
	}
	correct, _ := strconv.Atoi(fields["correct"])
	total, _ := strconv.Atoi(fields["total"])
	return LeaderboardEntry{
		UserID:      userID,
		DisplayName: fields["display_name"],
		Correct:     correct,
		Total:       total,
		Date:        fields["date"],
	}, nil
}
