package main

import (
	"bytes"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdziat/athina-go"
	"github.com/jdziat/athina-go/athinatest"
)

// isolate runs the test in an empty directory with a mock API and no other
// ATHINA_* variables.
func isolate(t *testing.T) *athinatest.MockServer {
	t.Helper()
	t.Chdir(t.TempDir())
	for _, kv := range os.Environ() {
		if k, _, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(k, "ATHINA_") {
			t.Setenv(k, "")
			os.Unsetenv(k)
		}
	}
	server := athinatest.NewMockServer()
	t.Cleanup(server.Close)
	t.Setenv("ATHINA_API_KEY", athinatest.TestAPIKey)
	t.Setenv("ATHINA_BASE_URL", server.URL)
	t.Setenv("ATHINA_MAX_RETRIES", "-1")
	return server
}

func runCLI(stdin string, args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Usage(t *testing.T) {
	isolate(t)

	code, _, stderr := runCLI("")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Usage:")

	code, stdout, _ := runCLI("", "version")
	assert.Equal(t, 0, code)
	assert.Equal(t, "athina version "+athina.Version+"\n", stdout)

	code, _, stderr = runCLI("", "bogus")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Unknown command: bogus")
}

func TestRun_Log(t *testing.T) {
	server := isolate(t)

	code, stdout, stderr := runCLI(`{"language_model_id":"gpt-4o","prompt":"hi","response":"hello","prompt_tokens":3}`,
		"log", "-environment", "ci")
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "inference logged\n", stdout)

	reqs := server.RequestsWithPath(athina.PathInference)
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPost, reqs[0].Method)
	assert.Equal(t, athinatest.TestAPIKey, reqs[0].APIKey)
	body, err := reqs[0].JSON()
	require.NoError(t, err)
	assert.Equal(t, "ci", body["environment"])
	assert.EqualValues(t, 3, body["prompt_tokens"])
}

func TestRun_LogFromFile(t *testing.T) {
	server := isolate(t)
	path := filepath.Join(t.TempDir(), "inference.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"language_model_id":"gpt-4o","prompt":[{"role":"user","content":"hi"}]}`), 0o600))

	code, _, stderr := runCLI("", "log", "-file", path)
	require.Equal(t, 0, code, stderr)

	body, err := server.LastRequest().JSON()
	require.NoError(t, err)
	assert.Equal(t, athina.DefaultEnvironment, body["environment"])
}

func TestRun_LogRejectsInvalid(t *testing.T) {
	server := isolate(t)

	code, _, stderr := runCLI(`{"prompt":"hi"}`, "log")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "language_model_id")
	assert.Zero(t, server.RequestCount())
}

func TestRun_LogReportsRejectedDelivery(t *testing.T) {
	server := isolate(t)
	server.RespondWithServerError()

	code, _, stderr := runCLI(`{"language_model_id":"gpt-4o","prompt":"hi"}`, "log")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "not accepted")
}

func TestRun_Feedback(t *testing.T) {
	server := isolate(t)

	code, stdout, stderr := runCLI("", "feedback", "-ref", "ref-1", "-score", "1", "-comment", "great")
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "feedback recorded\n", stdout)

	last := server.LastRequest()
	require.NotNil(t, last)
	assert.Equal(t, http.MethodPatch, last.Method)
	assert.Equal(t, athina.PathUserFeedback, last.Path)
	body, err := last.JSON()
	require.NoError(t, err)
	assert.Equal(t, "ref-1", body["external_reference_id"])
	assert.EqualValues(t, 1, body["user_feedback"])
	assert.Equal(t, "great", body["user_feedback_comment"])
}

func TestRun_FeedbackAPIError(t *testing.T) {
	server := isolate(t)
	server.RespondWithError(http.StatusNotFound, "Not found", "no inference with that reference")

	code, _, stderr := runCLI("", "feedback", "-ref", "missing", "-score", "-1")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Error:")
}

func TestRun_ConfigFromFileAndDotEnv(t *testing.T) {
	isolate(t)
	t.Setenv("ATHINA_API_KEY", "")
	t.Setenv("ATHINA_BASE_URL", "")
	os.Unsetenv("ATHINA_API_KEY")
	os.Unsetenv("ATHINA_BASE_URL")
	require.NoError(t, os.WriteFile(".athina.yaml", []byte("base_url: https://athina.example.com\nenvironment: staging\n"), 0o600))
	require.NoError(t, os.WriteFile(".env", []byte("ATHINA_API_KEY=sk-from-dotenv-123456\n"), 0o600))

	code, stdout, stderr := runCLI("", "config")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "base_url:    https://athina.example.com")
	assert.Contains(t, stdout, "environment: staging")
	assert.Contains(t, stdout, "source:      ")
	assert.NotContains(t, stdout, "sk-from-dotenv-123456")
}
