package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// UserSessionKey returns the cache key for a user's login session.
func (r *CacheKeyStruct) UserSessionKey(userID string) string {
	return fmt.Sprintf("login:%s", userID)
}

// ContestPayloadKey returns the cache key for a contest document.
func (r *CacheKeyStruct) ContestPayloadKey(contestID string) string {
	return fmt.Sprintf("contest:%s:payload", contestID)
}

// ContestStartKey returns the cache key for a contest's start time (Unix seconds).
func (r *CacheKeyStruct) ContestStartKey(contestID string) string {
	return fmt.Sprintf("contest:%s:start", contestID)
}

// ContestDurationKey returns the cache key for a contest's duration in minutes.
func (r *CacheKeyStruct) ContestDurationKey(contestID string) string {
	return fmt.Sprintf("contest:%s:duration", contestID)
}

// ContestLeaderboardKey returns the cache key for a contest leaderboard.
func (r *CacheKeyStruct) ContestLeaderboardKey(contestID string) string {
	return fmt.Sprintf("contest:%s:leaderboard", contestID)
}

// ProblemPayloadKey returns the cache key for a problem document.
func (r *CacheKeyStruct) ProblemPayloadKey(shortID string) string {
	return fmt.Sprintf("problem:%s:payload", shortID)
}

// ContestMonitorChannel returns the Redis PubSub channel for a contest's
// live proctoring feed.
func (r *CacheKeyStruct) ContestMonitorChannel(contestID string) string {
	return fmt.Sprintf("contest:%s:monitor", contestID)
}

var CacheKey = NewCacheKeyStruct()
