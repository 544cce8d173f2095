// File: internal/service/server_test.go
package service

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/config"
	"github.com/xkilldash9x/pagepilot/internal/mocks"
	"github.com/xkilldash9x/pagepilot/internal/runner"
	"github.com/xkilldash9x/pagepilot/internal/store"
)

type mockRunExecutor struct {
	mock.Mock
}

func (m *mockRunExecutor) Run(ctx context.Context, req runner.Request) (*schemas.RunReport, error) {
	args := m.Called(ctx, req)
	if r := args.Get(0); r != nil {
		return r.(*schemas.RunReport), args.Error(1)
	}
	return nil, args.Error(1)
}

const target = "https://acme.test/login"

var loginPlan = []schemas.Scenario{
	{Title: "Valid login", UserStory: "As a user I can sign in", Steps: []string{"Fill 'x@y.com' into 'email'", "Click 'Sign in'"}},
	{Title: "Empty password", Steps: []string{"Click 'Sign in'", "Verify 'required' is displayed"}},
}

func testServiceConfig() config.ServiceConfig {
	return config.ServiceConfig{
		Addr:              "127.0.0.1:0",
		MaxConcurrentRuns: 2,
		RunTimeout:        5 * time.Second,
		ReadTimeout:       time.Second,
		ShutdownTimeout:   time.Second,
	}
}

func newTestServer(t *testing.T, runs RunExecutor, st schemas.ScenarioStore) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewServer(testServiceConfig(), runs, st, zaptest.NewLogger(t)).Router())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func decodeError(t *testing.T, body []byte) schemas.ErrorPayload {
	t.Helper()
	var payload schemas.ErrorPayload
	require.NoError(t, json.Unmarshal(body, &payload))
	return payload
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, new(mockRunExecutor), store.NewMemory())
	resp, body := do(t, http.MethodGet, srv.URL+"/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestHandleRun(t *testing.T) {
	t.Run("success returns the report", func(t *testing.T) {
		runs := new(mockRunExecutor)
		report := &schemas.RunReport{RunID: "run-1", Success: true, TestPlan: loginPlan, Results: []schemas.ScenarioResult{
			{ScenarioTitle: "Valid login", OverallStatus: schemas.ScenarioCompleted, Steps: []schemas.StepResult{}, Screenshot: []byte{0x89, 'P', 'N', 'G'}},
		}}
		runs.On("Run", mock.Anything, runner.Request{URL: target}).Return(report, nil).Once()
		srv := newTestServer(t, runs, store.NewMemory())

		resp, body := do(t, http.MethodPost, srv.URL+"/api/run", RunRequest{URL: target})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

		var got schemas.RunReport
		require.NoError(t, json.Unmarshal(body, &got))
		assert.True(t, got.Success)
		assert.Equal(t, loginPlan, got.TestPlan)
		assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, got.Results[0].Screenshot)
		assert.Empty(t, got.Saved)
		runs.AssertExpectations(t)
	})

	t.Run("bad body and bad url are 400 without running", func(t *testing.T) {
		runs := new(mockRunExecutor)
		srv := newTestServer(t, runs, store.NewMemory())

		resp, body := do(t, http.MethodPost, srv.URL+"/api/run", "{not json")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "invalid request body", decodeError(t, body).Error)

		resp, body = do(t, http.MethodPost, srv.URL+"/api/run", RunRequest{URL: "file:///etc/passwd"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		payload := decodeError(t, body)
		assert.Equal(t, "invalid url", payload.Error)
		assert.Contains(t, payload.Details, "http or https")

		runs.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
	})

	t.Run("fatal errors map to status codes", func(t *testing.T) {
		cases := []struct {
			err    error
			status int
			title  string
		}{
			{schemas.ErrNoUsableForms, http.StatusNotFound, "no usable forms"},
			{&schemas.LaunchError{Mode: "local", Err: errors.New("no chrome")}, http.StatusInternalServerError, "browser launch failed"},
			{&schemas.ExtractionError{URL: target, Err: errors.New("timeout")}, http.StatusInternalServerError, "page extraction failed"},
			{&schemas.GenerationError{Attempts: 2, Err: errors.New("503")}, http.StatusInternalServerError, "scenario generation failed"},
			{context.DeadlineExceeded, http.StatusGatewayTimeout, "run did not finish"},
			{errors.New("surprise"), http.StatusInternalServerError, "internal error"},
		}
		for _, tc := range cases {
			runs := new(mockRunExecutor)
			runs.On("Run", mock.Anything, mock.Anything).Return(nil, tc.err).Once()
			srv := newTestServer(t, runs, store.NewMemory())

			resp, body := do(t, http.MethodPost, srv.URL+"/api/run", RunRequest{URL: target})
			assert.Equal(t, tc.status, resp.StatusCode, tc.title)
			payload := decodeError(t, body)
			assert.Equal(t, tc.title, payload.Error)
			assert.Equal(t, tc.err.Error(), payload.Details)
		}
	})

	t.Run("supplied context and scenarios are passed through", func(t *testing.T) {
		runs := new(mockRunExecutor)
		pageCtx := &schemas.PageContext{Title: "Sign in", URL: target, Forms: []schemas.FormDescriptor{{ID: "login"}}}
		runs.On("Run", mock.Anything, mock.MatchedBy(func(req runner.Request) bool {
			return req.URL == target && req.Context != nil && req.Context.Title == "Sign in" && len(req.Scenarios) == 2
		})).Return(&schemas.RunReport{Success: true, TestPlan: loginPlan}, nil).Once()
		srv := newTestServer(t, runs, store.NewMemory())

		resp, _ := do(t, http.MethodPost, srv.URL+"/api/run", RunRequest{URL: target, Context: pageCtx, Scenarios: loginPlan, Save: true})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		runs.AssertExpectations(t)
	})

	t.Run("save persists generated scenarios once", func(t *testing.T) {
		runs := new(mockRunExecutor)
		runs.On("Run", mock.Anything, mock.Anything).Return(&schemas.RunReport{Success: true, TestPlan: loginPlan}, nil).Twice()
		st := store.NewMemory()
		srv := newTestServer(t, runs, st)

		_, body := do(t, http.MethodPost, srv.URL+"/api/run", RunRequest{URL: target, Save: true})
		var first schemas.RunReport
		require.NoError(t, json.Unmarshal(body, &first))
		assert.Len(t, first.Saved, 2)

		_, body = do(t, http.MethodPost, srv.URL+"/api/run", RunRequest{URL: target, Save: true})
		var second schemas.RunReport
		require.NoError(t, json.Unmarshal(body, &second))
		assert.Empty(t, second.Saved, "duplicates are skipped")

		all, err := st.GetSavedScenariosByURL(context.Background(), target)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})
}

func TestHandleRun_BoundsConcurrentRuns(t *testing.T) {
	started := make(chan struct{})
	unblock := make(chan struct{})
	runs := new(mockRunExecutor)
	runs.On("Run", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		close(started)
		<-unblock
	}).Return(&schemas.RunReport{Success: true}, nil).Once()

	cfg := testServiceConfig()
	cfg.MaxConcurrentRuns = 1
	handler := NewServer(cfg, runs, store.NewMemory(), zaptest.NewLogger(t)).Router()

	firstDone := make(chan int, 1)
	go func() {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/run", bytes.NewBufferString(`{"url":"`+target+`"}`)))
		firstDone <- rec.Code
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/run", bytes.NewBufferString(`{"url":"`+target+`"}`)).WithContext(ctx)
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "the second run waits for a slot until its request ends")

	close(unblock)
	assert.Equal(t, http.StatusOK, <-firstDone)
	runs.AssertNumberOfCalls(t, "Run", 1)
}

func TestScenarioEndpoints(t *testing.T) {
	srv := newTestServer(t, new(mockRunExecutor), store.NewMemory())
	base := srv.URL + "/api/scenarios"

	resp, body := do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))

	in := schemas.SavedScenarioInput{URL: target, Title: "Valid login", Steps: []string{"Click 'Sign in'"}}
	resp, body = do(t, http.MethodPost, base, in)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var created schemas.SavedScenario
	require.NoError(t, json.Unmarshal(body, &created))
	assert.NotEmpty(t, created.ID)

	resp, body = do(t, http.MethodPost, base, in)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "scenario already exists", decodeError(t, body).Error)

	resp, _ = do(t, http.MethodPost, base, schemas.SavedScenarioInput{URL: target})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	noURL := schemas.SavedScenarioInput{Title: "Login", Steps: []string{"Click 'Sign in'"}}
	resp, body = do(t, http.MethodPost, base, noURL)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	resp, body = do(t, http.MethodPost, base, noURL)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, decodeError(t, body).Details, "without a url")

	_, _ = do(t, http.MethodPost, base, schemas.SavedScenarioInput{URL: "https://acme.test/other", Title: "Other"})

	resp, body = do(t, http.MethodGet, base+"?url="+target, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var byURL []schemas.SavedScenario
	require.NoError(t, json.Unmarshal(body, &byURL))
	require.Len(t, byURL, 1)
	assert.Equal(t, "Valid login", byURL[0].Title)

	title := "Valid login with remember me"
	resp, body = do(t, http.MethodPut, base+"/"+created.ID, schemas.SavedScenarioUpdate{Steps: []string{"Click 'Remember me'", "Click 'Sign in'"}, Title: &title})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var updated schemas.SavedScenario
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.Equal(t, title, updated.Title)
	assert.Len(t, updated.Steps, 2)

	resp, _ = do(t, http.MethodPut, base+"/"+created.ID, schemas.SavedScenarioUpdate{Title: &title})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "steps are required")

	resp, body = do(t, http.MethodPut, base+"/missing", schemas.SavedScenarioUpdate{Steps: []string{}})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "scenario not found", decodeError(t, body).Error)

	_, body = do(t, http.MethodPost, base, schemas.SavedScenarioInput{URL: target, Title: "Second"})
	var second schemas.SavedScenario
	require.NoError(t, json.Unmarshal(body, &second))
	resp, _ = do(t, http.MethodPut, base+"/"+second.ID, schemas.SavedScenarioUpdate{Steps: []string{}, Title: &title})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestListScenarios_StoreError(t *testing.T) {
	st := new(mocks.MockScenarioStore)
	st.On("GetAllSavedScenarios", mock.Anything).Return(nil, errors.New("db down")).Once()
	srv := newTestServer(t, new(mockRunExecutor), st)

	resp, body := do(t, http.MethodGet, srv.URL+"/api/scenarios", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "db down", decodeError(t, body).Details)
}
