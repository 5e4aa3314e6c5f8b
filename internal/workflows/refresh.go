package workflows

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/crimescope/internal/core/domain"
)

// PublicationLagMonths is how far behind the calendar police.uk usually
// publishes. A refresh without an explicit month targets that month.
const PublicationLagMonths = 2

// RefreshArea names one area to keep warm in the cache. Exactly one of
// BBox and KML is set.
type RefreshArea struct {
	Name string
	BBox string // south,west,north,east
	KML  string // relative to the KML directory
}

// RefreshInput is the input for the refresh workflow.
type RefreshInput struct {
	// Month is YYYY-MM. Empty means the latest published month.
	Month string
	// Areas to refresh. Empty means every configured and discovered area.
	Areas []RefreshArea
}

// AreaReport summarises one refreshed area.
type AreaReport struct {
	Name     string
	Key      string
	Records  int
	Complete bool
	Calls    int
}

// RefreshResult is returned by the refresh workflow.
type RefreshResult struct {
	Month   string
	Reports []AreaReport
	Failed  []string
}

// targetMonth resolves the month a run refreshes.
func targetMonth(ctx workflow.Context, requested string) (string, error) {
	if requested != "" {
		m, err := domain.ParseMonth(requested)
		if err != nil {
			return "", temporal.NewNonRetryableApplicationError(err.Error(), "InvalidMonth", err)
		}
		return m.String(), nil
	}
	now := workflow.Now(ctx).UTC()
	lagged := time.Date(now.Year(), now.Month()-PublicationLagMonths, 1, 0, 0, 0, 0, time.UTC)
	return domain.MonthOf(lagged).String(), nil
}

// RefreshWorkflow force-refreshes the cache for a set of areas and one
// month. Areas are refreshed one after another so the upstream rate limit
// is shared fairly with the API; a failing area is reported and skipped.
func RefreshWorkflow(ctx workflow.Context, input RefreshInput) (*RefreshResult, error) {
	logger := workflow.GetLogger(ctx)

	month, err := targetMonth(ctx, input.Month)
	if err != nil {
		return nil, err
	}
	logger.Info("Starting refresh workflow", "month", month)

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 15 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        30 * time.Second,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{"InvalidArea"},
		},
	})

	areas := input.Areas
	if len(areas) == 0 {
		if err := workflow.ExecuteActivity(ctx, "ListAreas").Get(ctx, &areas); err != nil {
			return nil, err
		}
	}
	if len(areas) == 0 {
		logger.Warn("No areas configured, nothing to refresh")
		return &RefreshResult{Month: month}, nil
	}

	result := &RefreshResult{Month: month}
	for _, area := range areas {
		var report AreaReport
		if err := workflow.ExecuteActivity(ctx, "RefreshArea", area, month).Get(ctx, &report); err != nil {
			logger.Warn("area refresh failed", "area", area.Name, "error", err)
			result.Failed = append(result.Failed, area.Name)
			continue
		}
		result.Reports = append(result.Reports, report)
	}

	logger.Info("Refresh finished", "month", month, "refreshed", len(result.Reports), "failed", len(result.Failed))
	if len(result.Reports) == 0 {
		return result, fmt.Errorf("all %d areas failed to refresh", len(areas))
	}
	return result, nil
}
