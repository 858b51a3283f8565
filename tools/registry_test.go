package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRegistrySeedsSendMessageToUser(t *testing.T) {
	r := NewRegistry()
	tool, ok := r.Get("send_message_to_user")
	require.True(t, ok)
	require.Equal(t, "send_message_to_user", tool.Info().Name)
}

func TestRegisterDuplicateNameFails(t *testing.T) {
	r := NewRegistry()
	err := r.Register(NewSendMessageToUser())
	require.Error(t, err)
	var dup *DuplicateToolNameError
	require.ErrorAs(t, err, &dup)
}

func TestWithToolsAddsExtrasWithoutMutatingBase(t *testing.T) {
	base := NewRegistry()
	extra := NewRequestTool(RequestToolConfig{Name: "get_time", URL: "http://example.com", Method: MethodGET})

	clone, err := base.WithTools([]Tool{extra})
	require.NoError(t, err)

	_, ok := clone.Get("get_time")
	require.True(t, ok)
	_, ok = base.Get("get_time")
	require.False(t, ok)
}

func TestWithToolsRejectsDuplicateWithinExtras(t *testing.T) {
	base := NewRegistry()
	mk := func() Tool {
		return NewRequestTool(RequestToolConfig{Name: "get_time", URL: "http://example.com", Method: MethodGET})
	}

	_, err := base.WithTools([]Tool{mk(), mk()})
	var dup *DuplicateToolNameError
	require.ErrorAs(t, err, &dup)
	require.Equal(t, "get_time", dup.Name)
}

func TestWithToolsRejectsCollisionWithBuiltin(t *testing.T) {
	base := NewRegistry()
	_, err := base.WithTools([]Tool{NewSendMessageToUser()})
	var dup *DuplicateToolNameError
	require.ErrorAs(t, err, &dup)
}

func TestExecuteUnknownToolWraps(t *testing.T) {
	r := NewRegistry()
	_, err := r.Execute(context.Background(), "does_not_exist", nil)
	require.Error(t, err)
	var execErr *ToolExecutionError
	require.ErrorAs(t, err, &execErr)
}

func TestRequestToolMergesQueryAndReturnsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "bar", r.URL.Query().Get("foo"))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	rt := NewRequestTool(RequestToolConfig{
		Name:                "fetch_thing",
		URL:                 srv.URL + "?existing=1",
		Method:              MethodGET,
		RequestParamsSchema: []string{"foo"},
	})

	result, err := rt.Execute(context.Background(), map[string]any{
		"request_params": map[string]any{"foo": "bar"},
	})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, http.StatusOK, result.Output["status_code"])
}

func TestRequestToolReportsTransportFailure(t *testing.T) {
	rt := NewRequestTool(RequestToolConfig{
		Name:   "fetch_thing",
		URL:    "http://127.0.0.1:0/unreachable",
		Method: MethodGET,
	})

	result, err := rt.Execute(context.Background(), nil)
	require.NoError(t, err)
	require.False(t, result.Success)
	require.NotEmpty(t, result.Error)
}
