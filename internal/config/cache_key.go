package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// StudentSessionKey returns the cache key for a student's login session
func (r *CacheKeyStruct) StudentSessionKey(studentID int) string {
	return fmt.Sprintf("login:%d", studentID)
}

// AttemptHeartbeatKey returns the cache key holding an attempt's last heartbeat
func (r *CacheKeyStruct) AttemptHeartbeatKey(attemptID string) string {
	return fmt.Sprintf("attempt:%s:last_heartbeat", attemptID)
}

// StudentActiveAttemptKey returns the cache key for a student's active attempt on an exam
func (r *CacheKeyStruct) StudentActiveAttemptKey(examID string, studentID int) string {
	return fmt.Sprintf("student:%d:exam:%s:active_attempt", studentID, examID)
}

// ExamAnswerKeyKey returns the cache key for an exam's grading answer key
func (r *CacheKeyStruct) ExamAnswerKeyKey(examID string) string {
	return fmt.Sprintf("exam:%s:answer_key", examID)
}

var CacheKey = NewCacheKeyStruct()
