package deployments

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestGrafanaDashboardJSONIsValid(t *testing.T) {
	root := repoRoot(t)
	path := filepath.Join(root, "deployments", "observability", "grafana", "ridelens_slo_dashboard.json")

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read dashboard file: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(content, &decoded); err != nil {
		t.Fatalf("dashboard JSON parse error: %v", err)
	}

	title, _ := decoded["title"].(string)
	if strings.TrimSpace(title) == "" {
		t.Fatal("dashboard title is required")
	}
	panels, ok := decoded["panels"].([]any)
	if !ok || len(panels) == 0 {
		t.Fatal("dashboard must include at least one panel")
	}
}

func TestPrometheusRulesContainExpectedAlerts(t *testing.T) {
	text := readAsset(t, "prometheus", "ridelens_rules.yaml")

	requiredAlerts := []string{
		"RideLensCompletionLatencyP95High",
		"RideLensExecutionLatencyP95High",
		"RideLensChatFailureRatioHigh",
		"RideLensChatTimeoutsDetected",
		"RideLensAnalyticsLatencyP95High",
		"RideLensHTTPErrorRateHigh",
	}
	for _, alertName := range requiredAlerts {
		if !strings.Contains(text, "alert: "+alertName) {
			t.Fatalf("rules missing alert %q", alertName)
		}
	}
}

func TestAlertsOnlyReferenceRecordedSeries(t *testing.T) {
	alerts := readAsset(t, "prometheus", "ridelens_rules.yaml")
	records := readAsset(t, "prometheus", "ridelens_recording_rules.yaml")

	for _, line := range strings.Split(alerts, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "expr: ") {
			continue
		}
		series := strings.Fields(strings.TrimPrefix(line, "expr: "))[0]
		if !strings.Contains(records, "record: "+series) {
			t.Fatalf("alert expression uses unrecorded series %q", series)
		}
	}
}

func TestPrometheusScrapeExampleContainsMetricsPathAndRules(t *testing.T) {
	text := readAsset(t, "prometheus", "prometheus-scrape.example.yaml")

	for _, token := range []string{
		"metrics_path: /v1/metrics",
		"ridelens_rules.yaml",
		"ridelens_recording_rules.yaml",
		"job_name: ridelens-api",
	} {
		if !strings.Contains(text, token) {
			t.Fatalf("scrape example missing %q", token)
		}
	}
}

func readAsset(t *testing.T, parts ...string) string {
	t.Helper()
	path := filepath.Join(append([]string{repoRoot(t), "deployments", "observability"}, parts...)...)
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(content)
}

func repoRoot(t *testing.T) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(filename), ".."))
}
