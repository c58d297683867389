// Package kernel is the boundary to the messaging kernel that built-in actions
// query. Dispatch never sees it; only action implementations do.
package kernel

import (
	"context"
	"strconv"
)

// Group is a chat group as exposed to remote callers.
type Group struct {
	ID             int64  `json:"group_id" yaml:"group_id"`
	Name           string `json:"group_name" yaml:"group_name"`
	MemberCount    int    `json:"member_count" yaml:"member_count"`
	MaxMemberCount int    `json:"max_member_count" yaml:"max_member_count"`
}

// GroupAPI lists the groups the kernel knows about.
type GroupAPI interface {
	Groups(ctx context.Context) ([]Group, error)
}

// FindGroup looks a group up by the canonical decimal form of its ID, so
// 42, int64(42) and "42" all match the same group.
func FindGroup(ctx context.Context, api GroupAPI, id string) (Group, bool, error) {
	groups, err := api.Groups(ctx)
	if err != nil {
		return Group{}, false, err
	}
	for _, g := range groups {
		if strconv.FormatInt(g.ID, 10) == id {
			return g, true, nil
		}
	}
	return Group{}, false, nil
}
