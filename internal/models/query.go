package models

import "time"

// EventQuery represents query parameters for filtering disruption events
type EventQuery struct {
	IDs        []string    `json:"ids"`
	MessageIDs []uint64    `json:"message_ids"`
	Kinds      []EventKind `json:"kinds"`
	Routes     []string    `json:"routes"`
	Since      time.Time   `json:"since"`
	Until      time.Time   `json:"until"`
	Limit      int         `json:"limit"`
	Offset     int         `json:"offset"`
}

// Matches checks if an event matches the query criteria.
// Since and Until bound the posting time.
func (q EventQuery) Matches(e DisruptionEvent) bool {
	if len(q.IDs) > 0 && !contains(q.IDs, e.ID) {
		return false
	}
	if len(q.MessageIDs) > 0 && !contains(q.MessageIDs, e.MessageID) {
		return false
	}
	if len(q.Kinds) > 0 && !contains(q.Kinds, e.Kind) {
		return false
	}
	if len(q.Routes) > 0 && !contains(q.Routes, e.Route) {
		return false
	}
	if !q.Since.IsZero() && e.PostedAt.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && e.PostedAt.After(q.Until) {
		return false
	}
	return true
}

func contains[T comparable](slice []T, item T) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
