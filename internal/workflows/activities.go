package workflows

import (
	"context"
	"fmt"
	"log/slog"

	"go.temporal.io/sdk/temporal"

	"github.com/samirrijal/crimescope/internal/adapters/kml"
	"github.com/samirrijal/crimescope/internal/core/domain"
	"github.com/samirrijal/crimescope/internal/core/usecases"
	"github.com/samirrijal/crimescope/internal/pkg/geospatial"
)

// RefreshActivities holds the activity implementations for the refresh workflow.
type RefreshActivities struct {
	Crimes *usecases.CrimeService
	// KMLDir is scanned for boundary files by ListAreas. Empty skips KML.
	KMLDir string
	// BBoxes are extra "south,west,north,east" areas to refresh.
	BBoxes []string
}

// ListAreas returns the configured bounding boxes followed by every KML
// boundary under KMLDir.
func (a *RefreshActivities) ListAreas(ctx context.Context) ([]RefreshArea, error) {
	var areas []RefreshArea
	for _, b := range a.BBoxes {
		areas = append(areas, RefreshArea{Name: "bbox " + b, BBox: b})
	}
	if a.KMLDir == "" {
		return areas, nil
	}
	found, err := kml.Discover(a.KMLDir)
	if err != nil {
		return nil, fmt.Errorf("discover kml areas: %w", err)
	}
	for _, f := range found {
		name := f.Name
		if f.Force != "" {
			name = f.Force + "/" + f.Name
		}
		areas = append(areas, RefreshArea{Name: name, KML: f.Rel})
	}
	return areas, nil
}

// RefreshArea fetches one area for one month, bypassing and then
// overwriting the cache.
func (a *RefreshActivities) RefreshArea(ctx context.Context, area RefreshArea, month string) (AreaReport, error) {
	m, err := domain.ParseMonth(month)
	if err != nil {
		return AreaReport{}, temporal.NewNonRetryableApplicationError(err.Error(), "InvalidArea", err)
	}
	desc, err := area.descriptor()
	if err != nil {
		return AreaReport{}, temporal.NewNonRetryableApplicationError(err.Error(), "InvalidArea", err)
	}

	res, err := a.Crimes.Fetch(ctx, desc, domain.SingleMonth(m), usecases.FetchOptions{ForceRefresh: true})
	if err != nil {
		if domain.IsBoundaryError(err) {
			return AreaReport{}, temporal.NewNonRetryableApplicationError(err.Error(), "InvalidArea", err)
		}
		return AreaReport{}, fmt.Errorf("refresh %s: %w", area.Name, err)
	}
	if len(res.Coverage.Failed) > 0 {
		// Failed segments are not cached; let Temporal retry the area.
		return AreaReport{}, fmt.Errorf("refresh %s: %d segments failed", area.Name, len(res.Coverage.Failed))
	}

	slog.InfoContext(ctx, "area refreshed", "area", area.Name, "month", month, "records", len(res.Records), "complete", res.Coverage.Complete)
	return AreaReport{
		Name:     area.Name,
		Key:      res.Key,
		Records:  len(res.Records),
		Complete: res.Coverage.Complete,
		Calls:    res.UpstreamCalls,
	}, nil
}

func (area RefreshArea) descriptor() (domain.BoundaryDescriptor, error) {
	switch {
	case area.BBox != "" && area.KML != "":
		return domain.BoundaryDescriptor{}, fmt.Errorf("area %s sets both bbox and kml", area.Name)
	case area.BBox != "":
		b, err := geospatial.ParseBBox(area.BBox)
		if err != nil {
			return domain.BoundaryDescriptor{}, err
		}
		return domain.BoundingBox(b.MinLat, b.MinLon, b.MaxLat, b.MaxLon), nil
	case area.KML != "":
		return domain.KMLBoundary(area.KML), nil
	}
	return domain.BoundaryDescriptor{}, fmt.Errorf("area %s has no boundary", area.Name)
}
