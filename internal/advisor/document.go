package advisor

import "fmt"

// UserSummary is the profile the model distills from the conversation.
// Only the name is mandatory; everything else depends on what the user
// chose to share.
type UserSummary struct {
	Name               string   `json:"name"`
	Age                string   `json:"age,omitempty"`
	EducationLevel     string   `json:"education_level,omitempty"`
	TechnicalKnowledge string   `json:"technical_knowledge,omitempty"`
	TopSubjects        []string `json:"top_subjects,omitempty"`
	SubjectAspects     string   `json:"subject_aspects,omitempty"`
	InterestsDreams    string   `json:"interests_dreams,omitempty"`
	OtherNotes         string   `json:"other_notes,omitempty"`
}

// CareerRecommendation scores one role from the closed vocabulary.
// MatchScore is a pointer so "absent" is distinguishable from zero.
type CareerRecommendation struct {
	CareerName         string   `json:"career_name"`
	MatchScore         *int     `json:"match_score,omitempty"`
	Reasoning          string   `json:"reasoning"`
	SuggestedNextSteps []string `json:"suggested_next_steps"`
}

// RecommendationDocument is the finalized output of a session. It is
// created exactly once, at the active->finalized transition, and never
// mutated afterwards.
type RecommendationDocument struct {
	UserSummary            UserSummary            `json:"user_summary"`
	CareerRecommendations  []CareerRecommendation `json:"career_recommendations"`
	OverallAssessmentNotes string                 `json:"overall_assessment_notes"`
}

// Validate enforces the document invariants: a named user, a non-empty
// recommendation list, canonical career names and in-range scores. Career
// names are normalized in place (case-insensitive match against the
// vocabulary); anything that does not resolve is an error, never silently
// accepted. Out-of-range scores fail rather than clamp.
func (d *RecommendationDocument) Validate() error {
	var problems []string

	if d.UserSummary.Name == "" {
		problems = append(problems, "user_summary.name must be non-empty")
	}
	if len(d.CareerRecommendations) == 0 {
		problems = append(problems, "career_recommendations must be non-empty")
	}
	for i := range d.CareerRecommendations {
		rec := &d.CareerRecommendations[i]
		canonical, ok := NormalizeCareerName(rec.CareerName)
		if !ok {
			problems = append(problems, fmt.Sprintf("career_recommendations[%d].career_name %q is not a supported career path", i, rec.CareerName))
		} else {
			rec.CareerName = canonical
		}
		if rec.MatchScore != nil && (*rec.MatchScore < 0 || *rec.MatchScore > 100) {
			problems = append(problems, fmt.Sprintf("career_recommendations[%d].match_score %d outside 0-100", i, *rec.MatchScore))
		}
		if rec.Reasoning == "" {
			problems = append(problems, fmt.Sprintf("career_recommendations[%d].reasoning must be non-empty", i))
		}
	}

	if len(problems) > 0 {
		return &ExtractionError{Fields: problems}
	}
	return nil
}
