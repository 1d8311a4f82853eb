package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// CandidateSessionKey returns the cache key for a candidate's login session.
func (r *CacheKeyStruct) CandidateSessionKey(userID int64) string {
	return fmt.Sprintf("login:%d", userID)
}

// PaperContentKey returns the cache key for a paper variant's candidate-safe
// content payload.
func (r *CacheKeyStruct) PaperContentKey(groupID int64, papersNo int32) string {
	return fmt.Sprintf("paper:%d:%d:content", groupID, papersNo)
}

// SubmitLockKey returns the cache key used to serialize submit attempts for
// one examinee.
func (r *CacheKeyStruct) SubmitLockKey(batchID, userID int64) string {
	return fmt.Sprintf("batch:%d:user:%d:submit_lock", batchID, userID)
}

var CacheKey = NewCacheKeyStruct()
