// Package scoring computes the admission score for an application from its
// approved evidence and the evidence-type catalog. Score is pure: it is
// called repeatedly while sorting candidate lists and must not touch any
// store or mutate its inputs.
package scoring

import (
	"github.com/aslanbekov/dormassign/pkg/core/model"
)

// Academic evidence type codes. These two are cohort-gated: first-year
// students are scored on their ENT exam result, everyone else on GPA.
const (
	CodeENTResult = "ent_result"
	CodeGPA       = "gpa"
)

// FirstYearCourse is the course number of first-year students.
const FirstYearCourse = 1

// FieldAccessor reads an auto-fill value from an application or its student
// record. Returning nil means the value is absent.
type FieldAccessor func(app *model.Application) *float64

// DefaultAccessors is the typed lookup table for evidence-type auto-fill
// fields. Built once at startup; evidence types naming a field outside this
// table degrade to a zero contribution rather than failing the batch.
func DefaultAccessors() map[string]FieldAccessor {
	return map[string]FieldAccessor{
		CodeGPA: func(app *model.Application) *float64 {
			return app.GPA
		},
		CodeENTResult: func(app *model.Application) *float64 {
			return app.ENTResult
		},
		"course": func(app *model.Application) *float64 {
			v := float64(app.Student.Course)
			return &v
		},
	}
}

// UnknownAutoFillFields returns the evidence-type codes whose auto-fill
// field has no accessor. Services report these once per batch as data
// inconsistencies; Score itself stays silent and treats them as absent.
func UnknownAutoFillFields(catalog *model.Catalog, accessors map[string]FieldAccessor) []string {
	var bad []string
	for _, t := range catalog.Types() {
		if t.Kind != model.KindNumeric || t.AutoFillField == "" {
			continue
		}
		if _, ok := accessors[t.AutoFillField]; !ok {
			bad = append(bad, t.Code)
		}
	}
	return bad
}

// Score computes the application's admission score.
//
// Every evidence type contributes independently:
//   - the academic types (ent_result, gpa) apply only to the matching
//     cohort, using the approved evidence value and falling back to the raw
//     field on the application;
//   - other numeric types use the approved evidence value, then the
//     configured auto-fill field, then zero;
//   - file types grant their priority as a flat bonus when an approved
//     record with an attached file exists.
//
// Only evidence with an approved review counts; unreviewed and rejected
// records fall through to the fallbacks.
func Score(app *model.Application, catalog *model.Catalog, accessors map[string]FieldAccessor) float64 {
	var score float64

	for _, t := range catalog.Types() {
		switch {
		case t.Code == CodeENTResult:
			if app.Student.Course != FirstYearCourse {
				continue
			}
			if v := academicValue(app, t.Code, app.ENTResult); v != nil {
				score += float64(t.Priority) * *v
			}
		case t.Code == CodeGPA:
			if app.Student.Course == FirstYearCourse {
				continue
			}
			if v := academicValue(app, t.Code, app.GPA); v != nil {
				score += float64(t.Priority) * *v
			}
		case t.Kind == model.KindFile:
			if ev := app.ApprovedEvidence(t.Code); ev != nil && ev.HasFile() {
				score += float64(t.Priority)
			}
		case t.Kind == model.KindNumeric:
			if v := numericValue(app, t, accessors); v != nil {
				score += float64(t.Priority) * *v
			}
		}
	}

	return score
}

// academicValue resolves the cohort score: approved evidence first, then the
// raw field carried on the application.
func academicValue(app *model.Application, code string, raw *float64) *float64 {
	if ev := app.ApprovedEvidence(code); ev != nil && ev.NumericValue != nil {
		return ev.NumericValue
	}
	return raw
}

// numericValue resolves a generic numeric criterion: approved evidence
// first, then the type's auto-fill accessor.
func numericValue(app *model.Application, t model.EvidenceType, accessors map[string]FieldAccessor) *float64 {
	if ev := app.ApprovedEvidence(t.Code); ev != nil && ev.NumericValue != nil {
		return ev.NumericValue
	}
	if t.AutoFillField == "" {
		return nil
	}
	accessor, ok := accessors[t.AutoFillField]
	if !ok {
		return nil
	}
	return accessor(app)
}
