package http

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/switchboard/pkg/actions"
	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/aretw0/switchboard/pkg/observability"
	"github.com/aretw0/switchboard/pkg/registry"
	"github.com/aretw0/switchboard/pkg/schema"
	"github.com/aretw0/switchboard/pkg/status"
	"github.com/aretw0/switchboard/pkg/transport"
)

func testRegistry() *registry.Registry {
	reg := registry.New()
	reg.BulkReplace(registry.FromActions(
		actions.Func("ping", nil, func(context.Context, map[string]any) (any, error) {
			return map[string]bool{"pong": true}, nil
		}),
		actions.Func("echo", schema.Schema{schema.Required("id", schema.NumberOrString())},
			func(_ context.Context, in map[string]any) (any, error) {
				return map[string]any{"id": in["id"]}, nil
			}),
		actions.Func("fail", nil, func(context.Context, map[string]any) (any, error) {
			return nil, errors.New("not found")
		}),
		actions.Func("boom", nil, func(context.Context, map[string]any) (any, error) {
			panic("boom")
		}),
		actions.Func("unencodable", nil, func(context.Context, map[string]any) (any, error) {
			return map[string]any{"ch": make(chan int)}, nil
		}),
		actions.Func("whoami", nil, func(ctx context.Context, _ map[string]any) (any, error) {
			token, _ := domain.TokenFrom(ctx)
			return map[string]string{"token": token}, nil
		}),
		actions.Func("slow", nil, func(ctx context.Context, _ map[string]any) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}),
	))
	return reg
}

// newOpenAdapter returns an open adapter on an ephemeral port.
func newOpenAdapter(t *testing.T, opts ...Option) *Adapter {
	t.Helper()
	a := New("127.0.0.1:0", opts...)
	a.RegisterActionMap(testRegistry())
	require.NoError(t, a.Open(context.Background()))
	t.Cleanup(func() {
		a.Close(context.Background())
	})
	return a
}

func do(t *testing.T, h http.Handler, method, target, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) domain.Error {
	t.Helper()
	var e domain.Error
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e), w.Body.String())
	return e
}

func TestScenario_PingWithEmptyPayload(t *testing.T) {
	a := newOpenAdapter(t)

	w := do(t, a.Handler(), http.MethodPost, "/ping", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"pong":true}`, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
}

func TestScenario_EchoCoercesNumericString(t *testing.T) {
	a := newOpenAdapter(t)

	w := do(t, a.Handler(), http.MethodPost, "/echo", `{"id":"42"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":42}`, w.Body.String())
}

func TestScenario_UnknownAction(t *testing.T) {
	a := newOpenAdapter(t)

	w := do(t, a.Handler(), http.MethodPost, "/nope", `{}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	e := decodeError(t, w)
	assert.Equal(t, domain.KindActionNotFound, e.Kind)
	assert.Equal(t, "nope", e.Action)
}

func TestScenario_BeforeOpen(t *testing.T) {
	a := New("127.0.0.1:0")
	a.RegisterActionMap(testRegistry())

	w := do(t, a.Handler(), http.MethodPost, "/ping", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, domain.KindTransportUnavailable, decodeError(t, w).Kind)
}

func TestScenario_DomainErrorIsExecutionFailed(t *testing.T) {
	a := newOpenAdapter(t)

	w := do(t, a.Handler(), http.MethodPost, "/fail", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	e := decodeError(t, w)
	assert.Equal(t, domain.KindActionExecutionFailed, e.Kind)
	assert.Equal(t, "not found", e.Message)

	// The adapter keeps serving.
	w = do(t, a.Handler(), http.MethodPost, "/ping", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleAction_ErrorMapping(t *testing.T) {
	a := newOpenAdapter(t)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		code   int
		kind   domain.ErrorKind
		field  string
	}{
		{name: "missing action name", method: http.MethodPost, target: "/", code: http.StatusBadRequest, kind: domain.KindMalformedRequest},
		{name: "missing required field", method: http.MethodPost, target: "/echo", body: `{}`, code: http.StatusBadRequest, kind: domain.KindInvalidPayload, field: "id"},
		{name: "wrong field type", method: http.MethodPost, target: "/echo", body: `{"id":true}`, code: http.StatusBadRequest, kind: domain.KindInvalidPayload, field: "id"},
		{name: "body is not json", method: http.MethodPost, target: "/echo", body: `{oops`, code: http.StatusBadRequest, kind: domain.KindInvalidPayload},
		{name: "body is an array", method: http.MethodPost, target: "/echo", body: `[1,2]`, code: http.StatusBadRequest, kind: domain.KindInvalidPayload},
		{name: "unknown action wins over bad body", method: http.MethodPost, target: "/nope", body: `{oops`, code: http.StatusNotFound, kind: domain.KindActionNotFound},
		{name: "panicking action", method: http.MethodPost, target: "/boom", code: http.StatusInternalServerError, kind: domain.KindActionExecutionFailed},
		{name: "unencodable result", method: http.MethodPost, target: "/unencodable", code: http.StatusInternalServerError, kind: domain.KindInternalSerializationFault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, a.Handler(), tt.method, tt.target, tt.body)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
			e := decodeError(t, w)
			assert.Equal(t, tt.kind, e.Kind)
			if tt.field != "" {
				assert.Equal(t, tt.field, e.Field)
			}
		})
	}
}

func TestHandleAction_PanicMessage(t *testing.T) {
	a := newOpenAdapter(t)

	w := do(t, a.Handler(), http.MethodPost, "/boom", "")
	assert.Equal(t, "action panicked: boom", decodeError(t, w).Message)
}

func TestHandleAction_PayloadSources(t *testing.T) {
	a := newOpenAdapter(t)

	t.Run("query string", func(t *testing.T) {
		w := do(t, a.Handler(), http.MethodGet, "/echo?id=7", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"id":7}`, w.Body.String())
	})

	t.Run("form body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(url.Values{"id": {"8"}}.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		a.Handler().ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"id":8}`, w.Body.String())
	})

	t.Run("empty post falls back to query", func(t *testing.T) {
		w := do(t, a.Handler(), http.MethodPost, "/echo?id=9", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"id":9}`, w.Body.String())
	})

	t.Run("extra segments are ignored", func(t *testing.T) {
		w := do(t, a.Handler(), http.MethodPost, "/ping/extra", "")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("large integer ids keep precision", func(t *testing.T) {
		w := do(t, a.Handler(), http.MethodPost, "/echo", `{"id":9007199254740993}`)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"id":9007199254740993}`, w.Body.String())
	})
}

func TestHandleAction_BodyTooLarge(t *testing.T) {
	a := newOpenAdapter(t, WithMaxBodyBytes(8))

	w := do(t, a.Handler(), http.MethodPost, "/echo", `{"id":"1234567890"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, domain.KindInvalidPayload, decodeError(t, w).Kind)
}

func TestAuthenticate(t *testing.T) {
	a := newOpenAdapter(t, WithToken("s3cret"))

	w := do(t, a.Handler(), http.MethodPost, "/ping", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, a.Handler(), http.MethodPost, "/ping", "", "Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, a.Handler(), http.MethodPost, "/whoami", "", "Authorization", "Bearer s3cret")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"token":"s3cret"}`, w.Body.String())

	w = do(t, a.Handler(), http.MethodGet, "/echo?id=1&access_token=s3cret", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":1}`, w.Body.String(), "the token is not part of the payload")
}

func TestAuthenticate_NoTokenConfiguredPassesThrough(t *testing.T) {
	a := newOpenAdapter(t)

	w := do(t, a.Handler(), http.MethodPost, "/whoami", "", "Authorization", "Bearer anything")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"token":"anything"}`, w.Body.String())
}

func TestRateLimit(t *testing.T) {
	a := newOpenAdapter(t, WithRateLimit(0.001, 1))

	assert.Equal(t, http.StatusOK, do(t, a.Handler(), http.MethodPost, "/ping", "").Code)
	w := do(t, a.Handler(), http.MethodPost, "/ping", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestTimeout(t *testing.T) {
	a := newOpenAdapter(t, WithTimeout(20*time.Millisecond))

	w := do(t, a.Handler(), http.MethodPost, "/slow", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	e := decodeError(t, w)
	assert.Equal(t, domain.KindActionExecutionFailed, e.Kind)
	assert.Equal(t, context.DeadlineExceeded.Error(), e.Message)
}

func TestLifecycle_OverTheWire(t *testing.T) {
	a := New("127.0.0.1:0")
	a.RegisterActionMap(testRegistry())
	assert.Equal(t, transport.Idle, a.State())

	require.NoError(t, a.Open(context.Background()))
	require.NoError(t, a.Open(context.Background()), "opening twice is a no-op")
	assert.Equal(t, transport.Open, a.State())

	resp, err := http.Post("http://"+a.Addr()+"/ping", "application/json", nil)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"pong":true}`, string(body))

	require.NoError(t, a.Close(context.Background()))
	require.NoError(t, a.Close(context.Background()), "closing twice is a no-op")
	assert.Equal(t, transport.Closed, a.State())

	err = a.Open(context.Background())
	assert.ErrorIs(t, err, transport.ErrClosed)
	assert.Equal(t, transport.Closed, a.State())

	w := do(t, a.Handler(), http.MethodPost, "/ping", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestOpen_ListenFailureStaysIdle(t *testing.T) {
	a := New("256.0.0.1:bad")
	assert.Error(t, a.Open(context.Background()))
	assert.Equal(t, transport.Idle, a.State())
}

func TestRegisterActionMap_Swap(t *testing.T) {
	a := newOpenAdapter(t)
	assert.Equal(t, http.StatusOK, do(t, a.Handler(), http.MethodPost, "/ping", "").Code)

	a.RegisterActionMap(registry.New())
	assert.Equal(t, http.StatusNotFound, do(t, a.Handler(), http.MethodPost, "/ping", "").Code)
}

func TestReservedRoutes(t *testing.T) {
	metrics := observability.NewMetrics()
	a := newOpenAdapter(t, WithHooks(metrics.Hooks()), WithMetricsHandler(metrics.Handler()))

	t.Run("health", func(t *testing.T) {
		w := do(t, a.Handler(), http.MethodGet, "/_health", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"ok","state":"open"}`, w.Body.String())
	})

	t.Run("openapi", func(t *testing.T) {
		w := do(t, a.Handler(), http.MethodGet, "/_openapi.json", "")
		assert.Equal(t, http.StatusOK, w.Code)
		var doc struct {
			Paths map[string]any `json:"paths"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
		assert.Contains(t, doc.Paths, "/ping")
		assert.Contains(t, doc.Paths, "/echo")
	})

	t.Run("metrics", func(t *testing.T) {
		do(t, a.Handler(), http.MethodPost, "/ping", "")
		w := do(t, a.Handler(), http.MethodGet, "/_metrics", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `switchboard_dispatch_total{action="ping",outcome="ok",transport="http"}`)
	})

	t.Run("status disabled", func(t *testing.T) {
		w := do(t, a.Handler(), http.MethodGet, "/_status/stream", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("cors preflight", func(t *testing.T) {
		w := do(t, a.Handler(), http.MethodOptions, "/ping", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestHealth_NotOpen(t *testing.T) {
	a := New("127.0.0.1:0")
	w := do(t, a.Handler(), http.MethodGet, "/_health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"state":"idle"`)
}

type stubSampler struct{}

func (stubSampler) Sample(context.Context) (status.SystemStatus, error) {
	return status.SystemStatus{CPU: status.CPUStatus{Model: "stub"}}, nil
}

func TestStatusStream(t *testing.T) {
	sub := status.NewSubscription(stubSampler{}, status.WithInterval(5*time.Millisecond))
	a := newOpenAdapter(t, WithStatus(sub))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+a.Addr()+"/_status/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)
	var got string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: {") {
			got = strings.TrimPrefix(line, "data: ")
			break
		}
	}
	require.NotEmpty(t, got)
	assert.Contains(t, got, `"model":"stub"`)
	assert.True(t, sub.Running(), "polling while a client listens")
}

func TestStatusForKinds(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(domain.KindTransportUnavailable))
	assert.Equal(t, http.StatusNotFound, statusFor(domain.KindActionNotFound))
	assert.Equal(t, http.StatusBadRequest, statusFor(domain.KindMalformedRequest))
	assert.Equal(t, http.StatusBadRequest, statusFor(domain.KindInvalidPayload))
	assert.Equal(t, http.StatusInternalServerError, statusFor(domain.KindActionExecutionFailed))
	assert.Equal(t, http.StatusInternalServerError, statusFor(domain.KindInternalSerializationFault))
}
