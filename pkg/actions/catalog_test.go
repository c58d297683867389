package actions

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/switchboard/pkg/dispatch"
	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/aretw0/switchboard/pkg/kernel"
	"github.com/aretw0/switchboard/pkg/registry"
	"github.com/aretw0/switchboard/pkg/schema"
	"github.com/aretw0/switchboard/pkg/status"
)

type fixedSampler struct{}

func (fixedSampler) Sample(context.Context) (status.SystemStatus, error) {
	return status.SystemStatus{CPU: status.CPUStatus{Model: "test-cpu"}}, nil
}

type failingGroups struct{}

func (failingGroups) Groups(context.Context) ([]kernel.Group, error) {
	return nil, errors.New("kernel offline")
}

func newDispatcher(t *testing.T, deps Deps) *dispatch.Dispatcher {
	t.Helper()
	reg := registry.New()
	reg.BulkReplace(registry.FromActions(Catalog(deps)...))
	return dispatch.New(reg)
}

func defaultDeps() Deps {
	return Deps{
		AppName:    "switchboard",
		AppVersion: "test",
		Groups:     kernel.NewStatic(kernel.Group{ID: 42, Name: "dev", MemberCount: 3, MaxMemberCount: 200}),
		Status:     fixedSampler{},
	}
}

func TestCatalog_Names(t *testing.T) {
	names := func(list []domain.Action) []string {
		var out []string
		for _, a := range list {
			out = append(out, a.Name())
		}
		return out
	}

	assert.ElementsMatch(t,
		[]string{Ping, GetVersionInfo, GetGroupInfo, GetGroupList, GetStatus},
		names(Catalog(defaultDeps())))
	assert.ElementsMatch(t, []string{Ping, GetVersionInfo}, names(Catalog(Deps{})))
}

func TestPing(t *testing.T) {
	resp := newDispatcher(t, defaultDeps()).Dispatch(context.Background(), domain.Request{Action: Ping})
	require.True(t, resp.OK())
	assert.Equal(t, map[string]bool{"pong": true}, resp.Result)
}

func TestGetVersionInfo(t *testing.T) {
	resp := newDispatcher(t, defaultDeps()).Dispatch(context.Background(), domain.Request{Action: GetVersionInfo})
	require.True(t, resp.OK())
	assert.Equal(t, VersionInfo{AppName: "switchboard", AppVersion: "test", ProtocolVersion: ProtocolVersion}, resp.Result)
}

func TestGetGroupInfo(t *testing.T) {
	d := newDispatcher(t, defaultDeps())
	ctx := context.Background()

	tests := []struct {
		name    string
		payload any
		kind    domain.ErrorKind
		message string
	}{
		{name: "numeric id", payload: map[string]any{"group_id": float64(42)}},
		{name: "numeric string id", payload: map[string]any{"group_id": "42"}},
		{name: "unknown group", payload: map[string]any{"group_id": 99}, kind: domain.KindActionExecutionFailed, message: "group 99 not found"},
		{name: "missing id", payload: map[string]any{}, kind: domain.KindInvalidPayload},
		{name: "wrong type", payload: map[string]any{"group_id": true}, kind: domain.KindInvalidPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := d.Dispatch(ctx, domain.Request{Action: GetGroupInfo, Payload: tt.payload})
			if tt.kind == "" {
				require.True(t, resp.OK(), "unexpected error: %v", resp.Error)
				assert.Equal(t, kernel.Group{ID: 42, Name: "dev", MemberCount: 3, MaxMemberCount: 200}, resp.Result)
				return
			}
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.kind, resp.Error.Kind)
			if tt.message != "" {
				assert.Equal(t, tt.message, resp.Error.Message)
			}
		})
	}
}

func TestGetGroupInfo_KernelFailure(t *testing.T) {
	deps := defaultDeps()
	deps.Groups = failingGroups{}

	resp := newDispatcher(t, deps).Dispatch(context.Background(), domain.Request{
		Action:  GetGroupInfo,
		Payload: map[string]any{"group_id": 1},
	})
	require.NotNil(t, resp.Error)
	assert.Equal(t, domain.KindActionExecutionFailed, resp.Error.Kind)
	assert.Contains(t, resp.Error.Message, "kernel offline")
}

func TestGetGroupList(t *testing.T) {
	d := newDispatcher(t, defaultDeps())

	resp := d.Dispatch(context.Background(), domain.Request{Action: GetGroupList, Payload: map[string]any{"no_cache": true}})
	require.True(t, resp.OK())
	assert.Len(t, resp.Result, 1)

	resp = d.Dispatch(context.Background(), domain.Request{Action: GetGroupList, Payload: map[string]any{"no_cache": "yes"}})
	require.NotNil(t, resp.Error)
	assert.Equal(t, domain.KindInvalidPayload, resp.Error.Kind)
	assert.Equal(t, "no_cache", resp.Error.Field)
}

func TestGetGroupList_Empty(t *testing.T) {
	deps := defaultDeps()
	deps.Groups = kernel.NewStatic()

	resp := newDispatcher(t, deps).Dispatch(context.Background(), domain.Request{Action: GetGroupList})
	require.True(t, resp.OK())
	assert.Equal(t, []kernel.Group{}, resp.Result)
}

func TestGetStatus(t *testing.T) {
	resp := newDispatcher(t, defaultDeps()).Dispatch(context.Background(), domain.Request{Action: GetStatus})
	require.True(t, resp.OK())
	st, ok := resp.Result.(status.SystemStatus)
	require.True(t, ok)
	assert.Equal(t, "test-cpu", st.CPU.Model)
}

func TestNew_DecodeMismatchIsInvalidPayload(t *testing.T) {
	type input struct {
		Count int `json:"count"`
	}
	action := New("count", schema.Schema{schema.Required("count", schema.String())},
		func(_ context.Context, in input) (int, error) {
			return in.Count, nil
		})

	_, err := action.Execute(context.Background(), map[string]any{"count": "three"})
	de, ok := domain.AsError(err)
	require.True(t, ok)
	assert.Equal(t, domain.KindInvalidPayload, de.Kind)
}

func TestFunc(t *testing.T) {
	echo := Func("echo", nil, func(_ context.Context, in map[string]any) (any, error) {
		return in, nil
	})
	assert.Equal(t, "echo", echo.Name())
	assert.Nil(t, echo.Schema())

	out, err := echo.Execute(context.Background(), map[string]any{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1}, out)
}

func TestCanonicalID(t *testing.T) {
	assert.Equal(t, "42", canonicalID(int64(42)))
	assert.Equal(t, "42", canonicalID(float64(42)))
	assert.Equal(t, "4.5", canonicalID(4.5))
	assert.Equal(t, "42", canonicalID("42"))
	assert.Equal(t, "7", canonicalID(uint8(7)))
	assert.Equal(t, "18446744073709551615", canonicalID(uint64(math.MaxUint64)))
	assert.Equal(t, "9223372036854775808", canonicalID(float64(math.MaxInt64)))
	assert.Equal(t, "10000000000000000000", canonicalID(1e19))
	assert.Equal(t, "-9223372036854775808", canonicalID(float64(math.MinInt64)))
}
