package models

import "encoding/json"

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// ListResource names an admin list view backed by the membership service.
type ListResource string

const (
	ResourceUsers    ListResource = "users"
	ResourceEvents   ListResource = "events"
	ResourceMessages ListResource = "messages"
	ResourceAudit    ListResource = "audit-trails"
)

// ListPage is a generic page of admin list rows. Items stays as raw JSON:
// the gateway passes rows through untouched apart from pagination and
// filtering.
type ListPage struct {
	Items      []json.RawMessage `json:"items"`
	Pagination Pagination        `json:"pagination"`
}
