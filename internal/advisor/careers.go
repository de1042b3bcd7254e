package advisor

import "strings"

// CareerPaths is the closed set of roles the advisor evaluates. Every
// career_name in an assessment must resolve to one of these.
var CareerPaths = []string{
	"Frontend Developer",
	"Backend Developer",
	"Mobile Developer",
	"Data Scientist",
	"Machine Learning Engineer",
	"UI/UX Designer",
}

// CareerDescriptions feed the system prompt so the model evaluates each
// role against a consistent definition.
var CareerDescriptions = map[string]string{
	"Frontend Developer":        "Building the visual and interactive parts of websites or web apps that users directly interact with.",
	"Backend Developer":         "Creating and managing the behind-the-scenes systems that handle business logic, databases, and APIs.",
	"Mobile Developer":          "Developing applications specifically for mobile devices like smartphones and tablets.",
	"Data Scientist":            "Analyzing data to uncover patterns, generate insights, and support decision-making.",
	"Machine Learning Engineer": "Building, training, and deploying machine learning models into production systems.",
	"UI/UX Designer":            "Designing user experiences and interfaces that are intuitive, aesthetically pleasing, and user-centered.",
}

// ScoreRange describes one band of the 0-100 match scale.
type ScoreRange struct {
	Name        string
	Min, Max    int
	Description string
}

// ScoreRanges are the scoring guidelines included in the system prompt,
// ordered best to worst.
var ScoreRanges = []ScoreRange{
	{"excellent", 90, 100, "Excellent match - perfect alignment with skills, interests, and personality"},
	{"strong", 75, 89, "Strong match - very good alignment with room for growth"},
	{"good", 60, 74, "Good match - alignment in key areas with some development needed"},
	{"moderate", 40, 59, "Moderate match - some alignment but significant development needed"},
	{"low", 0, 39, "Low match - limited alignment, would require substantial development"},
}

// NormalizeCareerName maps a name to its canonical form, case-insensitively.
// The empty string and ok=false mean the name is outside the vocabulary.
func NormalizeCareerName(name string) (string, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, c := range CareerPaths {
		if strings.ToLower(c) == n {
			return c, true
		}
	}
	return "", false
}
