package ridelensctl

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

var chartPaths = map[string]string{
	"cancellations":   "/api/analytics/charts/cancellations",
	"payment-methods": "/api/analytics/charts/payment-methods",
	"traffic-hourly":  "/api/analytics/charts/traffic-hourly",
	"vehicles":        "/api/analytics/charts/vehicles",
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("ridelensctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:5023"), "RideLens API base URL")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 30*time.Second), "HTTP timeout (e.g. 30s)")
	start := fs.String("start", "", "analytics filter start date (YYYY-MM-DD)")
	end := fs.String("end", "", "analytics filter end date (YYYY-MM-DD)")
	vehicleType := fs.String("vehicle-type", "", "analytics filter vehicle type")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}

	filter := url.Values{}
	for key, value := range map[string]string{"start": *start, "end": *end, "vehicleType": *vehicleType} {
		if strings.TrimSpace(value) != "" {
			filter.Set(key, strings.TrimSpace(value))
		}
	}

	command := strings.TrimSpace(fs.Arg(0))
	method, path := http.MethodGet, ""
	var body []byte
	switch command {
	case "health":
		path = "/v1/health"
	case "ready":
		path = "/v1/ready"
	case "schema":
		path = "/api/schema"
	case "kpis":
		path = withQuery("/api/analytics/kpis", filter)
	case "chart":
		chartPath, ok := chartPaths[strings.TrimSpace(fs.Arg(1))]
		if !ok {
			_, _ = fmt.Fprintf(stderr, "unknown chart %q\n\n", fs.Arg(1))
			writeUsage(stderr)
			return 2
		}
		path = withQuery(chartPath, filter)
	case "ask":
		question := strings.TrimSpace(strings.Join(fs.Args()[1:], " "))
		if question == "" {
			_, _ = fmt.Fprintln(stderr, "ask requires a question")
			return 2
		}
		method, path = http.MethodPost, "/api/chat/ask"
		body, _ = json.Marshal(map[string]string{"question": question})
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		writeUsage(stderr)
		return 2
	}

	endpoint := strings.TrimRight(*baseURL, "/") + path
	code, responseBody, err := doRequest(ctx, client, method, endpoint, body)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}

	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		return 1
	}

	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(stdout, pretty)
		return 0
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(stdout, string(responseBody))
	}
	return 0
}

func doRequest(ctx context.Context, client *http.Client, method, url string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, responseBody, nil
}

func withQuery(path string, values url.Values) string {
	if len(values) == 0 {
		return path
	}
	return path + "?" + values.Encode()
}

// prettyJSON re-indents without reordering object keys, so answer rows keep
// their column order.
func prettyJSON(raw []byte) (string, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return "", false
	}
	var formatted bytes.Buffer
	if err := json.Indent(&formatted, trimmed, "", "  "); err != nil {
		return "", false
	}
	return formatted.String(), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: ridelensctl [flags] <command> [args]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health              GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready               GET /v1/ready")
	_, _ = fmt.Fprintln(w, "  schema              GET /api/schema")
	_, _ = fmt.Fprintln(w, "  ask <question>      POST /api/chat/ask")
	_, _ = fmt.Fprintln(w, "  kpis                GET /api/analytics/kpis")
	_, _ = fmt.Fprintln(w, "  chart <name>        GET /api/analytics/charts/<name>")
	_, _ = fmt.Fprintln(w, "                      (cancellations, payment-methods, traffic-hourly, vehicles)")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
