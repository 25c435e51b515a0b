package observability

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type alertRule struct {
	Alert       string            `yaml:"alert"`
	Expr        string            `yaml:"expr"`
	For         string            `yaml:"for"`
	Labels      map[string]string `yaml:"labels"`
	Annotations map[string]string `yaml:"annotations"`
}

type alertGroup struct {
	Name  string      `yaml:"name"`
	Rules []alertRule `yaml:"rules"`
}

type alertSpec struct {
	Groups []alertGroup `yaml:"groups"`
}

// Series the server and worker export. Alert expressions may only use these.
var exportedSeries = map[string]bool{
	"worksla_http_requests_total":               true,
	"worksla_http_request_duration_seconds":     true,
	"worksla_upstream_requests_total":           true,
	"worksla_upstream_request_duration_seconds": true,
	"worksla_credential_refresh_total":          true,
	"worksla_auth_expired_total":                true,
	"worksla_history_aggregations_total":        true,
	"worksla_history_aggregation_pages":         true,
	"worksla_list_cache_lookups_total":          true,
	"worksla_jobs_total":                        true,
	"worksla_jobs_failures_total":               true,
	"worksla_job_duration_seconds":              true,
	"worksla_jobs_synced_work_packages_total":   true,
	"worksla_list_cache_bumps_total":            true,
}

var seriesPattern = regexp.MustCompile(`worksla_[a-z_]+`)

func TestAlertRules(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "deploy", "prometheus", "alerts", "worksla.yml"))
	require.NoError(t, err)

	var spec alertSpec
	require.NoError(t, yaml.Unmarshal(data, &spec))
	require.Len(t, spec.Groups, 1)
	group := spec.Groups[0]
	assert.Equal(t, "worksla-web", group.Name)

	expected := map[string]string{
		"HighErrorRate":            "critical",
		"BackendUnavailable":       "critical",
		"CredentialRefreshFailing": "warning",
		"HistoryCapped":            "info",
		"SyncJobFailing":           "warning",
	}
	require.Len(t, group.Rules, len(expected))

	runbook, err := os.ReadFile(filepath.Join("..", "..", "docs", "runbook.md"))
	require.NoError(t, err)

	for _, rule := range group.Rules {
		severity, ok := expected[rule.Alert]
		require.True(t, ok, "unexpected rule %q", rule.Alert)
		assert.Equal(t, severity, rule.Labels["severity"], rule.Alert)
		assert.NotEmpty(t, rule.Annotations["summary"], rule.Alert)
		assert.NotEmpty(t, rule.Annotations["description"], rule.Alert)
		assert.NotEmpty(t, rule.For, rule.Alert)
		require.NotEmpty(t, rule.Expr, rule.Alert)

		for _, series := range seriesPattern.FindAllString(rule.Expr, -1) {
			assert.True(t, exportedSeries[series], "rule %s uses unknown series %s", rule.Alert, series)
		}

		anchor := regexp.MustCompile(`^docs/runbook\.md#([a-z-]+)$`).FindStringSubmatch(rule.Annotations["runbook"])
		require.Len(t, anchor, 2, "rule %s runbook link", rule.Alert)
		assert.Contains(t, string(runbook), "<a id=\""+anchor[1]+"\"></a>", "runbook section for %s", rule.Alert)
	}
}
