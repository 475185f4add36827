package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// UserSessionKey returns the cache key for a user's login session.
func (r *CacheKeyStruct) UserSessionKey(userID int) string {
	return fmt.Sprintf("login:%d", userID)
}

// DepartmentsKey returns the cache key for the distinct-department list.
func (r *CacheKeyStruct) DepartmentsKey() string {
	return "classes:departments"
}

// RosterChannel returns the Redis PubSub channel name carrying roster
// changes for a class.
func (r *CacheKeyStruct) RosterChannel(courseNumber string) string {
	return fmt.Sprintf("class:%s:roster", courseNumber)
}

var CacheKey = NewCacheKeyStruct()
