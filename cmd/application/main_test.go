package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/morikuni/failure/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gomarket_mdm/config/values"
	"gomarket_mdm/internal/acquisition"
	"gomarket_mdm/internal/marketplace"
	"gomarket_mdm/internal/reconcile"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) []byte {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		configFile, reconcileFile, reconcileHeaders, lookupFile = "", "", "", ""
	})
	require.NoError(t, rootCmd.Execute())
	return out.Bytes()
}

func TestReconcileCommand_Headers(t *testing.T) {
	out := execute(t, "reconcile", "--headers", "SKU, Title, UPC Code")

	var report reconcileReport
	require.NoError(t, json.Unmarshal(out, &report))
	assert.Contains(t, report.Mappings, reconcile.FieldMapping{SourceField: "SKU", TargetField: "sku"})
	assert.Contains(t, report.Mappings, reconcile.FieldMapping{SourceField: "Title", TargetField: "product_name"})
	assert.Contains(t, report.Mappings, reconcile.FieldMapping{SourceField: "UPC Code", TargetField: "upc"})
	assert.Equal(t, []string{"price"}, report.UnmappedRequired)
}

func TestReconcileCommand_FileWithCatalog(t *testing.T) {
	cfg := writeFile(t, "config.yaml", `
catalog:
  targets:
    - id: sku
      name: SKU
      required: true
      type: string
    - id: price
      name: Price
      required: true
      type: number
  templates:
    - name: acme
      mappings:
        - source: Item
          target: sku
        - source: Cost
          target: price
`)
	sample := writeFile(t, "acme.csv", "Item;Cost\nA-1;10,5\nA-2;7\n")

	out := execute(t, "--config", cfg, "reconcile", "--file", sample)

	var report reconcileReport
	require.NoError(t, json.Unmarshal(out, &report))
	assert.Equal(t, []string{"Item", "Cost"}, report.Headers)
	require.NotNil(t, report.Suggestion)
	assert.Equal(t, "acme", report.Suggestion.TemplateName)
	assert.Equal(t, 2, report.Suggestion.ExactMatches)
}

func TestLookupCommand_SimulatedWithoutCredentials(t *testing.T) {
	for _, key := range []string{"MARKETPLACE_CLIENT_ID", "MARKETPLACE_CLIENT_SECRET", "MARKETPLACE_REFRESH_TOKEN"} {
		t.Setenv(key, "")
	}
	cfg := writeFile(t, "config.yaml", `
marketplace:
  inter_call_delay: 0s
catalog:
  restricted_categories:
    - match: hazmat
      reason: Dangerous goods need approval
`)

	out := execute(t, "--config", cfg, "lookup", "restrictions", "B01:Hazmat Chemicals", "B02:Toys")

	var report lookupReport
	require.NoError(t, json.Unmarshal(out, &report))
	require.Len(t, report.Results, 2)
	assert.Equal(t, "B01", report.Results[0].Key)
	assert.Equal(t, "B02", report.Results[1].Key)
	for _, r := range report.Results {
		assert.True(t, r.Simulated)
		assert.NotEmpty(t, r.Rationale)
		assert.NotEmpty(t, r.FallbackReason)
	}
	assert.Contains(t, string(report.Results[0].Payload), "Dangerous goods need approval")
	assert.Equal(t, 2, report.Summary.Simulated)
}

func TestParseItems(t *testing.T) {
	items := parseItems([]string{"B01", " B02 : Safety ", ""})
	assert.Equal(t, []marketplace.Item{{Key: "B01"}, {Key: "B02", Category: "Safety"}}, items)
}

func TestReadItems(t *testing.T) {
	path := writeFile(t, "keys.txt", "# header\nB01:Toys\n\nB02\n")

	items, err := readItems(path)
	require.NoError(t, err)
	assert.Equal(t, []marketplace.Item{{Key: "B01", Category: "Toys"}, {Key: "B02"}}, items)
}

func TestTargetsFrom(t *testing.T) {
	assert.Equal(t, reconcile.DefaultTargets(), targetsFrom(values.Catalog{}))

	targets := targetsFrom(values.Catalog{Targets: []values.TargetField{{ID: "gtin", Name: "GTIN", Aliases: []string{"ean"}}}})
	assert.Equal(t, []reconcile.TargetFieldSpec{{ID: "gtin", Name: "GTIN", Aliases: []string{"ean"}}}, targets)
}

func TestOutcomeError(t *testing.T) {
	assert.NoError(t, outcomeError(acquisition.PullOutcome{Success: true}))

	err := outcomeError(acquisition.PullOutcome{Message: "operation timed out after 60 seconds"})
	assert.EqualError(t, err, "operation timed out after 60 seconds")

	cause := failure.New(acquisition.ErrTimeout, failure.Message("operation timed out after 60 seconds"))
	assert.True(t, errors.Is(outcomeError(acquisition.PullOutcome{Err: cause}), cause))
}

const onboardCatalog = `
pull:
  retries: 1
catalog:
  targets:
    - id: sku
      name: SKU
      required: true
      type: string
    - id: price
      name: Price
      required: true
      type: number
  templates:
    - name: acme
      mappings:
        - source: Item
          target: sku
        - source: Cost
          target: price
    - name: standard
      mappings:
        - source: SKU
          target: sku
        - source: Price
          target: price
`

func TestOnboardCommand_AcceptsConfidentTemplate(t *testing.T) {
	cfg := writeFile(t, "config.yaml", onboardCatalog)
	sample := writeFile(t, "feed.csv", "SKU;Price\nA-1;10\nA-2;7\n")

	out := execute(t, "--config", cfg, "onboard", "--kind", "file", "--path", sample)

	var report onboardingReport
	require.NoError(t, json.Unmarshal(out, &report))
	assert.True(t, report.PullSuccess)
	assert.Equal(t, []string{"SKU", "Price"}, report.Columns)
	assert.Len(t, report.SampleData, 2)
	require.NotNil(t, report.Suggestion)
	assert.Equal(t, "standard", report.Suggestion.TemplateName)
	assert.InDelta(t, 0.85, report.Confidence, 1e-9)
	assert.True(t, report.TemplateAccepted)
	assert.Empty(t, report.UnmappedRequired)
	assert.Empty(t, report.Errors)
	assert.Equal(t, "success", report.Status)
	assert.Equal(t, 2, report.StepsCompleted)
}

func TestOnboardCommand_ConfidenceAtThresholdIsNotAccepted(t *testing.T) {
	cfg := writeFile(t, "config.yaml", onboardCatalog)
	sample := writeFile(t, "feed.csv", "Item;Cost\nA-1;10,5\nA-2;7\n")

	out := execute(t, "--config", cfg, "onboard", "--kind", "file", "--path", sample)

	var report onboardingReport
	require.NoError(t, json.Unmarshal(out, &report))
	require.NotNil(t, report.Suggestion)
	assert.Equal(t, "acme", report.Suggestion.TemplateName)
	assert.InDelta(t, 0.7, report.Confidence, 1e-9)
	assert.False(t, report.TemplateAccepted)
	assert.Equal(t, []string{"sku", "price"}, report.UnmappedRequired)
}

func TestOnboard_FailedPull(t *testing.T) {
	puller := acquisition.PullerFunc(func(context.Context, acquisition.RemoteSource, time.Duration) (*acquisition.Payload, error) {
		return nil, failure.New(acquisition.ErrInvalidSource, failure.Message("no uploaded file found for source s"))
	})
	controller := acquisition.NewController(puller, nil, nil)

	report := onboard(context.Background(), controller, acquisition.RemoteSource{ID: "s", Kind: acquisition.KindFile},
		acquisition.Options{Retries: 1}, values.Catalog{}).finish()

	assert.False(t, report.PullSuccess)
	assert.False(t, report.TemplateAccepted)
	assert.Nil(t, report.Mappings)
	assert.Equal(t, []onboardingError{{Step: "pull", Message: "no uploaded file found for source s", Code: "InvalidSource"}}, report.Errors)
	assert.Equal(t, "failed", report.Status)
	assert.Equal(t, 1, report.Attempts)
}
