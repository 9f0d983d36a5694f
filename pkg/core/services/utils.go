package services

import (
	"sort"

	"go.uber.org/zap"

	"github.com/aslanbekov/dormassign/pkg/core/model"
	"github.com/aslanbekov/dormassign/pkg/core/scoring"
)

// scoredApplication pairs an application with its score so the score is
// computed once per batch, not once per comparison.
type scoredApplication struct {
	app   *model.Application
	score float64
}

// scoreAll computes every application's score up front and reports catalog
// anomalies (evidence types naming unknown auto-fill fields) once.
func scoreAll(apps []model.Application, catalog *model.Catalog, logger *zap.Logger) []scoredApplication {
	accessors := scoring.DefaultAccessors()

	for _, code := range scoring.UnknownAutoFillFields(catalog, accessors) {
		logger.Warn("Evidence type has unknown auto-fill field; treating values as absent",
			zap.String("evidence_type", code))
	}

	scored := make([]scoredApplication, len(apps))
	for i := range apps {
		scored[i] = scoredApplication{
			app:   &apps[i],
			score: scoring.Score(&apps[i], catalog, accessors),
		}
	}
	return scored
}

// sortByScoreDesc orders applications best-first; equal scores keep
// ascending application-ID order so reruns are reproducible.
func sortByScoreDesc(scored []scoredApplication) {
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].app.ID < scored[j].app.ID
	})
}

// sortByScoreAsc orders applications worst-first, used when picking transfer
// victims in the rebalancer.
func sortByScoreAsc(scored []scoredApplication) {
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score < scored[j].score
		}
		return scored[i].app.ID < scored[j].app.ID
	})
}
