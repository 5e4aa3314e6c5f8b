package workflows_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.temporal.io/sdk/testsuite"

	"github.com/samirrijal/crimescope/internal/adapters/kml"
	"github.com/samirrijal/crimescope/internal/core/domain"
	"github.com/samirrijal/crimescope/internal/core/ports"
	"github.com/samirrijal/crimescope/internal/core/usecases"
	"github.com/samirrijal/crimescope/internal/workflows"
)

type mockSource struct {
	mu     sync.Mutex
	months []string
	fail   bool
}

func (m *mockSource) StreetCrimes(ctx context.Context, poly domain.Polygon, month domain.Month) ([]ports.RawCrime, error) {
	m.mu.Lock()
	m.months = append(m.months, month.String())
	m.mu.Unlock()
	if m.fail {
		return nil, &domain.FetchError{Status: 500}
	}
	// One record at the vertex mean, which is inside every convex test area.
	var lat, lon float64
	for _, p := range poly {
		lat += p.Lat
		lon += p.Lon
	}
	n := float64(len(poly))
	return []ports.RawCrime{{
		Category: "burglary",
		Month:    month.String(),
		Location: &ports.RawLocation{
			Latitude:  json.RawMessage(`"` + jsonFloat(lat/n) + `"`),
			Longitude: json.RawMessage(`"` + jsonFloat(lon/n) + `"`),
		},
	}}, nil
}

func jsonFloat(f float64) string {
	b, _ := json.Marshal(f)
	return string(b)
}

type mockCache struct {
	mu      sync.Mutex
	entries map[string]*domain.CacheEntry
}

func (m *mockCache) Has(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[key]
	return ok, nil
}

func (m *mockCache) Get(ctx context.Context, key string) (*domain.CacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok {
		return e, nil
	}
	return nil, &domain.CacheMissError{Key: key}
}

func (m *mockCache) Put(ctx context.Context, e *domain.CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.Key] = e
	return nil
}

const squareKML = `<kml xmlns="http://www.opengis.net/kml/2.2"><Placemark><Polygon><outerBoundaryIs><LinearRing>
<coordinates>-1.80,51.05 -1.78,51.05 -1.78,51.07 -1.80,51.07 -1.80,51.05</coordinates>
</LinearRing></outerBoundaryIs></Polygon></Placemark></kml>`

func newActivities(t *testing.T, src *mockSource, cache *mockCache, kmlDir string, bboxes ...string) *workflows.RefreshActivities {
	t.Helper()
	cfg := usecases.DefaultFetcherConfig()
	var polys ports.PolygonSource
	if kmlDir != "" {
		polys = kml.NewSource(kmlDir)
	}
	svc := usecases.NewCrimeService(usecases.NewBoundaryService(polys), src, cache, nil, cfg)
	return &workflows.RefreshActivities{Crimes: svc, KMLDir: kmlDir, BBoxes: bboxes}
}

func TestRefreshWorkflow_DiscoversAreas(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "wiltshire"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "wiltshire", "Salisbury.kml"), []byte(squareKML), 0o644); err != nil {
		t.Fatal(err)
	}

	src := &mockSource{}
	cache := &mockCache{entries: map[string]*domain.CacheEntry{}}
	acts := newActivities(t, src, cache, dir, "51.50,-0.15,51.51,-0.13")

	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(workflows.RefreshWorkflow)
	env.RegisterActivity(acts)

	env.ExecuteWorkflow(workflows.RefreshWorkflow, workflows.RefreshInput{Month: "2024-01"})

	if !env.IsWorkflowCompleted() {
		t.Fatal("workflow did not complete")
	}
	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow failed: %v", err)
	}
	var res workflows.RefreshResult
	if err := env.GetWorkflowResult(&res); err != nil {
		t.Fatal(err)
	}
	if res.Month != "2024-01" {
		t.Errorf("expected month 2024-01, got %s", res.Month)
	}
	if len(res.Reports) != 2 || len(res.Failed) != 0 {
		t.Fatalf("expected 2 refreshed areas, got %+v", res)
	}
	if res.Reports[1].Name != "wiltshire/Salisbury" {
		t.Errorf("expected KML area second, got %q", res.Reports[1].Name)
	}
	for _, r := range res.Reports {
		if r.Records != 1 || !r.Complete {
			t.Errorf("unexpected report %+v", r)
		}
	}
	if len(cache.entries) != 2 {
		t.Errorf("expected 2 cache entries, got %d", len(cache.entries))
	}
}

func TestRefreshWorkflow_DefaultsToLaggedMonth(t *testing.T) {
	src := &mockSource{}
	acts := newActivities(t, src, &mockCache{entries: map[string]*domain.CacheEntry{}}, "")

	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.SetStartTime(time.Date(2024, time.May, 10, 6, 0, 0, 0, time.UTC))
	env.RegisterWorkflow(workflows.RefreshWorkflow)
	env.RegisterActivity(acts)

	env.ExecuteWorkflow(workflows.RefreshWorkflow, workflows.RefreshInput{
		Areas: []workflows.RefreshArea{{Name: "westminster", BBox: "51.49,-0.15,51.51,-0.12"}},
	})

	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow failed: %v", err)
	}
	var res workflows.RefreshResult
	if err := env.GetWorkflowResult(&res); err != nil {
		t.Fatal(err)
	}
	if res.Month != "2024-03" {
		t.Errorf("expected 2024-03, got %s", res.Month)
	}
	if len(src.months) != 1 || src.months[0] != "2024-03" {
		t.Errorf("expected one upstream call for 2024-03, got %v", src.months)
	}
}

func TestRefreshWorkflow_InvalidAreaIsReported(t *testing.T) {
	acts := newActivities(t, &mockSource{}, &mockCache{entries: map[string]*domain.CacheEntry{}}, "")

	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(workflows.RefreshWorkflow)
	env.RegisterActivity(acts)

	env.ExecuteWorkflow(workflows.RefreshWorkflow, workflows.RefreshInput{
		Month: "2024-01",
		Areas: []workflows.RefreshArea{
			{Name: "ok", BBox: "51.49,-0.15,51.51,-0.12"},
			{Name: "broken", BBox: "not,a,box"},
		},
	})

	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow failed: %v", err)
	}
	var res workflows.RefreshResult
	if err := env.GetWorkflowResult(&res); err != nil {
		t.Fatal(err)
	}
	if len(res.Reports) != 1 || len(res.Failed) != 1 || res.Failed[0] != "broken" {
		t.Errorf("expected one success and one failure, got %+v", res)
	}
}

func TestRefreshWorkflow_AllFail(t *testing.T) {
	acts := newActivities(t, &mockSource{fail: true}, &mockCache{entries: map[string]*domain.CacheEntry{}}, "")

	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(workflows.RefreshWorkflow)
	env.RegisterActivity(acts)

	env.ExecuteWorkflow(workflows.RefreshWorkflow, workflows.RefreshInput{
		Month: "2024-01",
		Areas: []workflows.RefreshArea{{Name: "westminster", BBox: "51.49,-0.15,51.51,-0.12"}},
	})

	if err := env.GetWorkflowError(); err == nil {
		t.Fatal("expected the workflow to fail when every area fails")
	}
}

func TestRefreshWorkflow_BadMonth(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(workflows.RefreshWorkflow)

	env.ExecuteWorkflow(workflows.RefreshWorkflow, workflows.RefreshInput{Month: "May 2024"})

	if err := env.GetWorkflowError(); err == nil {
		t.Fatal("expected an invalid month to fail the workflow")
	}
}
