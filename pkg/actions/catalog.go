package actions

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/aretw0/switchboard/pkg/kernel"
	"github.com/aretw0/switchboard/pkg/schema"
	"github.com/aretw0/switchboard/pkg/status"
)

// ProtocolVersion is reported by get_version_info.
const ProtocolVersion = "v11"

// Built-in action names.
const (
	Ping           = "ping"
	GetVersionInfo = "get_version_info"
	GetGroupInfo   = "get_group_info"
	GetGroupList   = "get_group_list"
	GetStatus      = "get_status"
)

// Deps are the collaborators the built-in actions call into.
type Deps struct {
	AppName    string
	AppVersion string
	Groups     kernel.GroupAPI
	Status     status.Sampler
}

// Catalog returns the built-in actions. Actions whose collaborator is nil
// are left out.
func Catalog(deps Deps) []domain.Action {
	list := []domain.Action{
		pingAction(),
		versionAction(deps.AppName, deps.AppVersion),
	}
	if deps.Groups != nil {
		list = append(list, groupInfoAction(deps.Groups), groupListAction(deps.Groups))
	}
	if deps.Status != nil {
		list = append(list, statusAction(deps.Status))
	}
	return list
}

type empty struct{}

func pingAction() domain.Action {
	return New(Ping, nil, func(context.Context, empty) (map[string]bool, error) {
		return map[string]bool{"pong": true}, nil
	})
}

// VersionInfo is the get_version_info result.
type VersionInfo struct {
	AppName         string `json:"app_name"`
	AppVersion      string `json:"app_version"`
	ProtocolVersion string `json:"protocol_version"`
}

func versionAction(name, version string) domain.Action {
	return New(GetVersionInfo, nil, func(context.Context, empty) (VersionInfo, error) {
		return VersionInfo{AppName: name, AppVersion: version, ProtocolVersion: ProtocolVersion}, nil
	})
}

type groupInfoInput struct {
	GroupID any `json:"group_id"`
}

func groupInfoAction(api kernel.GroupAPI) domain.Action {
	s := schema.Schema{
		schema.Required("group_id", schema.NumberOrString()).Describe("Group identifier"),
	}
	return New(GetGroupInfo, s, func(ctx context.Context, in groupInfoInput) (kernel.Group, error) {
		id := canonicalID(in.GroupID)
		g, ok, err := kernel.FindGroup(ctx, api, id)
		if err != nil {
			return kernel.Group{}, fmt.Errorf("list groups: %w", err)
		}
		if !ok {
			return kernel.Group{}, fmt.Errorf("group %s not found", id)
		}
		return g, nil
	})
}

type groupListInput struct {
	NoCache bool `json:"no_cache"`
}

// reloader is implemented by kernels that can refresh their cached groups.
type reloader interface {
	Reload() error
}

func groupListAction(api kernel.GroupAPI) domain.Action {
	s := schema.Schema{
		schema.Optional("no_cache", schema.Bool()).Describe("Refresh the group cache first"),
	}
	return New(GetGroupList, s, func(ctx context.Context, in groupListInput) ([]kernel.Group, error) {
		if r, ok := api.(reloader); ok && in.NoCache {
			if err := r.Reload(); err != nil && !errors.Is(err, kernel.ErrNoSource) {
				return nil, fmt.Errorf("refresh groups: %w", err)
			}
		}
		groups, err := api.Groups(ctx)
		if err != nil {
			return nil, fmt.Errorf("list groups: %w", err)
		}
		if groups == nil {
			groups = []kernel.Group{}
		}
		return groups, nil
	})
}

func statusAction(sampler status.Sampler) domain.Action {
	return New(GetStatus, nil, func(ctx context.Context, _ empty) (status.SystemStatus, error) {
		return sampler.Sample(ctx)
	})
}

// canonicalID renders a validated number-or-string ID in decimal form.
func canonicalID(v any) string {
	switch n := v.(type) {
	case int:
		return strconv.Itoa(n)
	case int8, int16, int32, int64:
		return fmt.Sprintf("%d", n)
	case uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", n)
	case float32:
		return canonicalID(float64(n))
	case float64:
		// float64(math.MaxInt64) rounds up to 2^63, so the upper bound is exclusive.
		if n == math.Trunc(n) && n >= math.MinInt64 && n < math.MaxInt64 {
			return strconv.FormatInt(int64(n), 10)
		}
		return strconv.FormatFloat(n, 'f', -1, 64)
	case string:
		return n
	default:
		return fmt.Sprint(v)
	}
}
