package nl2sql

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewClientRequiresAPIKey(t *testing.T) {
	if _, err := NewClient(Config{APIKey: "  "}); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("NewClient() error = %v, want ErrMissingAPIKey", err)
	}

	client, err := NewClient(Config{APIKey: "k"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if client.endpoint != DefaultBaseURL+"/v1/chat/completions" {
		t.Fatalf("endpoint = %q", client.endpoint)
	}
	if client.Model() != DefaultModel {
		t.Fatalf("Model() = %q", client.Model())
	}
}

func TestGeneratePostsPromptAndCleansSQL(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/chat/completions" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		writeCompletion(w, "```sql\nSELECT vehicle_type\nFROM gold.cleaned_dataset;\n```")
	}))
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL + "/", APIKey: "secret", Model: "test-model"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	got := client.Generate(context.Background(), "  which vehicle types exist?  ")
	if want := SQL("SELECT vehicle_type FROM gold.cleaned_dataset;"); got != want {
		t.Fatalf("Generate() = %+v, want %+v", got, want)
	}

	if captured["model"] != "test-model" {
		t.Fatalf("model = %v", captured["model"])
	}
	temperature, ok := captured["temperature"]
	if !ok || temperature != float64(0) {
		t.Fatalf("temperature = %v (sent %v), want explicit 0", temperature, ok)
	}

	messages, ok := captured["messages"].([]any)
	if !ok || len(messages) != 2 {
		t.Fatalf("messages = %#v", captured["messages"])
	}
	system := messages[0].(map[string]any)
	user := messages[1].(map[string]any)
	if system["role"] != "system" || user["role"] != "user" {
		t.Fatalf("roles = %v/%v", system["role"], user["role"])
	}
	if user["content"] != "which vehicle types exist?" {
		t.Fatalf("user content = %q", user["content"])
	}

	prompt := system["content"].(string)
	for _, want := range []string{
		"Table: gold.cleaned_dataset",
		"WHERE booking_status = 'Completed'",
		"WHERE booking_status != 'Completed'",
		"'" + IrrelevantAnswer + "'",
		"SELECT DISTINCT",
		"NULLIF(ride_distance, 0)",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("system prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestGenerateMapsResponses(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   Completion
	}{
		{
			name:   "rejection",
			status: http.StatusOK,
			body:   completionBody(IrrelevantAnswer),
			want:   Rejected(IrrelevantAnswer),
		},
		{
			name:   "fenced rejection",
			status: http.StatusOK,
			body:   completionBody("```sql\n" + IrrelevantAnswer + "\n```"),
			want:   Rejected(IrrelevantAnswer),
		},
		{
			name:   "unlabelled fenced rejection",
			status: http.StatusOK,
			body:   completionBody("```\n" + IrrelevantAnswer + "\n```"),
			want:   Rejected(IrrelevantAnswer),
		},
		{
			name:   "service error field",
			status: http.StatusTooManyRequests,
			body:   `{"error":{"message":"Rate limit reached","type":"requests"}}`,
			want:   ServiceError("AI Service Error - Rate limit reached"),
		},
		{
			name:   "error field with 200",
			status: http.StatusOK,
			body:   `{"error":{"message":"model decommissioned"}}`,
			want:   ServiceError("AI Service Error - model decommissioned"),
		},
		{
			name:   "missing content",
			status: http.StatusOK,
			body:   `{"choices":[{"message":{"role":"assistant"}}]}`,
			want:   ServiceError("completion response has no message content"),
		},
		{
			name:   "no choices",
			status: http.StatusOK,
			body:   `{"choices":[]}`,
			want:   ServiceError("completion response has no choices"),
		},
		{
			name:   "empty sql",
			status: http.StatusOK,
			body:   completionBody("```sql\n```"),
			want:   ServiceError("model returned empty SQL"),
		},
		{
			name:   "html gateway error",
			status: http.StatusBadGateway,
			body:   "<html>bad gateway</html>",
			want:   ServiceError("AI Service Error - status 502"),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			client, err := NewClient(Config{BaseURL: server.URL, APIKey: "k"})
			if err != nil {
				t.Fatalf("NewClient() error = %v", err)
			}
			if got := client.Generate(context.Background(), "q"); got != tc.want {
				t.Fatalf("Generate() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestGenerateMalformedJSONIsServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":`))
	}))
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL, APIKey: "k"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	got := client.Generate(context.Background(), "q")
	if got.Kind != KindServiceError || got.Timeout {
		t.Fatalf("Generate() = %+v", got)
	}
	if !strings.HasPrefix(got.Text, "decode completion response") {
		t.Fatalf("text = %q", got.Text)
	}
}

func TestGenerateNetworkFailureIsServiceError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client, err := NewClient(Config{BaseURL: url, APIKey: "k"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	got := client.Generate(context.Background(), "q")
	if got.Kind != KindServiceError || !strings.Contains(got.Text, "request completion") {
		t.Fatalf("Generate() = %+v", got)
	}
}

func TestGenerateTimeoutIsFlagged(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL, APIKey: "k", Timeout: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	got := client.Generate(context.Background(), "q")
	if got.Kind != KindServiceError || !got.Timeout {
		t.Fatalf("Generate() = %+v, want timeout service error", got)
	}
}

func TestSystemPromptNamesDialect(t *testing.T) {
	client, err := NewClient(Config{APIKey: "k", Dialect: "DuckDB"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if !strings.HasPrefix(client.system, "You are a DuckDB expert.") {
		t.Fatalf("system prompt = %q", client.system)
	}
	if !strings.Contains(client.system, "7. When dividing by ride_distance") {
		t.Fatalf("system prompt missing division rule:\n%s", client.system)
	}
}

func TestCleanSQLFoldsLines(t *testing.T) {
	cases := map[string]string{
		"```SQL\r\nSELECT 1\nFROM t\n```":            "SELECT 1 FROM t",
		"SELECT 1;":                                  "SELECT 1;",
		"SELECT *\nFROM t -- all rows\nWHERE a = 1": "SELECT * FROM t  WHERE a = 1",
	}
	for raw, want := range cases {
		if got := cleanSQL(raw); got != want {
			t.Fatalf("cleanSQL(%q) = %q, want %q", raw, got, want)
		}
	}
}

func completionBody(content string) string {
	raw, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{{"message": map[string]any{"role": "assistant", "content": content}}},
	})
	return string(raw)
}

func writeCompletion(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(completionBody(content)))
}
