package audit

import "time"

// Event is one security-relevant action.
type Event struct {
	Actor      string    `json:"actor"`
	Action     string    `json:"action"`
	Target     string    `json:"target,omitempty"`
	Outcome    string    `json:"outcome"`
	RemoteAddr string    `json:"remote_addr,omitempty"`
	At         time.Time `json:"at"`
}

// Actions recorded by the service.
const (
	ActionLoginSucceeded      = "auth.login.succeeded"
	ActionLoginFailed         = "auth.login.failed"
	ActionPrincipalRegistered = "auth.principal.registered"
	ActionRolesAssigned       = "auth.principal.roles_assigned"
	ActionPrincipalDisabled   = "auth.principal.disabled"
	ActionPrincipalEnabled    = "auth.principal.enabled"
	ActionPrincipalDeleted    = "auth.principal.deleted"
)

// Outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// TimelineFilters narrows a timeline query. Zero values match everything.
type TimelineFilters struct {
	From     time.Time
	To       time.Time
	Actor    string
	Action   string
	Page     int
	PageSize int
}

// PagingInfo describes the page returned by Timeline.
type PagingInfo struct {
	Page     int  `json:"page"`
	HasNext  bool `json:"has_next"`
	PageSize int  `json:"page_size"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}

// Result is one page of the audit timeline.
type Result struct {
	Rows   []Event    `json:"rows"`
	Paging PagingInfo `json:"paging"`
}
