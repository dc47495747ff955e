package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// UserSessionKey returns the cache key for a user's login session (JTI).
func (r *CacheKeyStruct) UserSessionKey(userID int) string {
	return fmt.Sprintf("login:%d", userID)
}

// SessionAnswersKey returns the cache key for a session's answer hash.
func (r *CacheKeyStruct) SessionAnswersKey(sessionID string) string {
	return fmt.Sprintf("session:%s:answers", sessionID)
}

// SessionStateKey returns the cache key for a session's hot state hash
// (status, accumulated time, suspicion score, fired latches).
func (r *CacheKeyStruct) SessionStateKey(sessionID string) string {
	return fmt.Sprintf("session:%s:state", sessionID)
}

// SessionLastBeatKey returns the cache key for a session's last heartbeat time.
func (r *CacheKeyStruct) SessionLastBeatKey(sessionID string) string {
	return fmt.Sprintf("session:%s:last_beat", sessionID)
}

// SessionLastEventKey returns the per-type debounce key for security events.
func (r *CacheKeyStruct) SessionLastEventKey(sessionID, eventType string) string {
	return fmt.Sprintf("session:%s:last_event:%s", sessionID, eventType)
}

// AssessmentPayloadKey returns the cache key for an assessment's question payload.
func (r *CacheKeyStruct) AssessmentPayloadKey(assessmentID string) string {
	return fmt.Sprintf("assessment:%s:payload", assessmentID)
}

// AssessmentSettingsKey returns the cache key for an assessment's anti-cheat settings.
func (r *CacheKeyStruct) AssessmentSettingsKey(assessmentID string) string {
	return fmt.Sprintf("assessment:%s:anticheat", assessmentID)
}

// AssessmentMonitorChannel returns the Redis PubSub channel for the live monitor.
func (r *CacheKeyStruct) AssessmentMonitorChannel(assessmentID string) string {
	return fmt.Sprintf("assessment:%s:monitor", assessmentID)
}

// ReviewQueueChannel returns the Redis PubSub channel notified when a
// session gets flagged for manual review.
func (r *CacheKeyStruct) ReviewQueueChannel() string {
	return "review:flagged"
}

var CacheKey = NewCacheKeyStruct()
