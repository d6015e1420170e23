// Package cw4group reads cw4-group membership contracts through the cache.
package cw4group

import (
	"context"

	"daoquery/internal/cache"
	"daoquery/internal/contracts"
	"daoquery/internal/paginate"
	"daoquery/internal/querier"
)

// ListMembersLimit is the page size used when listing every member
const ListMembersLimit = 10

// Selectors are the cached queries of one cw4-group contract
type Selectors struct {
	base contracts.Base
}

// New creates selectors for the group at params
func New(c *cache.Cache, params querier.Params) (*Selectors, error) {
	base, err := contracts.NewBase(c, params)
	if err != nil {
		return nil, err
	}
	return &Selectors{base: base}, nil
}

// Admin returns the group admin
func (s *Selectors) Admin(ctx context.Context) (AdminResponse, error) {
	return contracts.Query[AdminResponse](ctx, s.base, "admin", contracts.Empty{})
}

// TotalWeight returns the sum of member weights
func (s *Selectors) TotalWeight(ctx context.Context) (TotalWeightResponse, error) {
	return contracts.Query[TotalWeightResponse](ctx, s.base, "total_weight", contracts.Empty{})
}

// ListMembers returns one page of members after startAfter
func (s *Selectors) ListMembers(ctx context.Context, startAfter string, limit int) (ListMembersResponse, error) {
	return contracts.Query[ListMembersResponse](ctx, s.base, "list_members", listMembersArgs{
		StartAfter: startAfter,
		Limit:      limit,
	})
}

// Member returns the weight of addr, optionally at a past height
func (s *Selectors) Member(ctx context.Context, addr string, atHeight *uint64) (MemberResponse, error) {
	return contracts.Query[MemberResponse](ctx, s.base, "member", memberArgs{
		Addr:     addr,
		AtHeight: atHeight,
	})
}

// Hooks returns the registered membership change hooks
func (s *Selectors) Hooks(ctx context.Context) (HooksResponse, error) {
	return contracts.Query[HooksResponse](ctx, s.base, "hooks", contracts.Empty{})
}

// ListAllMembers walks list_members with ListMembersLimit
func (s *Selectors) ListAllMembers(ctx context.Context) (ListMembersResponse, error) {
	return s.ListAllMembersWithLimit(ctx, ListMembersLimit)
}

// ListAllMembersWithLimit walks list_members using pages of limit members.
// Each page is an ordinary cached query, so a repeated walk is served
// from the cache.
func (s *Selectors) ListAllMembersWithLimit(ctx context.Context, limit int) (ListMembersResponse, error) {
	list := func(ctx context.Context, cursor string, limit int) (paginate.Page[Member], error) {
		resp, err := s.ListMembers(ctx, cursor, limit)
		if err != nil {
			return paginate.Page[Member]{}, err
		}
		return paginate.CursorFrom(resp.Members, func(m Member) string { return m.Addr }), nil
	}

	members, err := paginate.CollectAll(ctx, list, limit)
	if err != nil {
		return ListMembersResponse{}, err
	}
	return ListMembersResponse{Members: members}, nil
}
