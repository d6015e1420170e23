package cw4group

import "errors"

// AdminResponse is the reply to admin; Admin is nil when the group has none
type AdminResponse struct {
	Admin *string `json:"admin"`
}

// TotalWeightResponse is the reply to total_weight
type TotalWeightResponse struct {
	Weight uint64 `json:"weight"`
}

// Member is one group member
type Member struct {
	Addr   string `json:"addr"`
	Weight uint64 `json:"weight"`
}

// ListMembersResponse is the reply to list_members
type ListMembersResponse struct {
	Members []Member `json:"members"`
}

// Validate rejects members without an address, which would break paging
func (r *ListMembersResponse) Validate() error {
	if r.Members == nil {
		return errors.New("members missing")
	}
	for _, m := range r.Members {
		if m.Addr == "" {
			return errors.New("member without addr")
		}
	}
	return nil
}

// MemberResponse is the reply to member; Weight is nil for non-members
type MemberResponse struct {
	Weight *uint64 `json:"weight"`
}

// HooksResponse is the reply to hooks
type HooksResponse struct {
	Hooks []string `json:"hooks"`
}

type listMembersArgs struct {
	StartAfter string `json:"start_after,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

type memberArgs struct {
	Addr     string  `json:"addr"`
	AtHeight *uint64 `json:"at_height,omitempty"`
}
