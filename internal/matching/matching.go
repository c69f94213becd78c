// Package matching scores how well resume text covers the technical skills a
// job description asks for.
package matching

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/p-shah256/resume-optimizer/pkg/types"
)

// DefaultSkills are matched case-insensitively and reported in this spelling.
var DefaultSkills = []string{
	"Python", "Java", "SQL", "AWS", "Azure", "GCP", "Docker", "Kubernetes",
	"React", "Angular", "Vue", "Node.js", "JavaScript", "TypeScript", "C++",
	"Ruby", "PHP", "HTML", "CSS", "REST", "API", "ML", "AI", "DevOps", "CI/CD",
	"Git", "Agile", "Scrum", "Golang", "PostgreSQL", "Terraform", "Linux", "GraphQL",
}

var qualificationKeywords = []string{"required", "must have", "qualification", "requirement"}

var (
	sentenceEnd   = regexp.MustCompile(`[.!?]+\s+|\n+`)
	yearsPattern  = regexp.MustCompile(`(?i)\b(\d+)\s*\+?\s*(?:years?|yrs?)\b`)
	spacesPattern = regexp.MustCompile(`[ \t]+`)
)

type Matcher struct {
	skills []string
}

func NewMatcher(skills ...string) *Matcher {
	if len(skills) == 0 {
		skills = DefaultSkills
	}
	return &Matcher{skills: skills}
}

// ExtractSkills returns the known skills mentioned in text, sorted.
func (m *Matcher) ExtractSkills(text string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, skill := range m.skills {
		if containsTerm(lower, strings.ToLower(skill)) {
			found = append(found, skill)
		}
	}
	sort.Strings(found)
	return found
}

// containsTerm finds term in text with word-ish boundaries on both sides.
// Symbols such as + and / belong to the term, so "C++" and "CI/CD" match but
// "AI" does not match inside "email".
func containsTerm(text, term string) bool {
	for off := 0; off < len(text); {
		i := strings.Index(text[off:], term)
		if i < 0 {
			return false
		}
		start := off + i
		end := start + len(term)
		if !isTermByte(byteAt(text, start-1)) && !isTermByte(byteAt(text, end)) {
			return true
		}
		off = start + 1
	}
	return false
}

func byteAt(s string, i int) byte {
	if i < 0 || i >= len(s) {
		return ' '
	}
	return s[i]
}

func isTermByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b == '+' || b == '#' || b == '_'
}

// Qualifications returns the job description sentences that state a
// requirement.
func Qualifications(jobDescription string) []string {
	var out []string
	for _, sentence := range sentenceEnd.Split(jobDescription, -1) {
		sentence = strings.TrimSpace(spacesPattern.ReplaceAllString(sentence, " "))
		if sentence == "" {
			continue
		}
		lower := strings.ToLower(sentence)
		for _, kw := range qualificationKeywords {
			if strings.Contains(lower, kw) {
				out = append(out, sentence)
				break
			}
		}
	}
	return out
}

// YearsExperience returns the year counts mentioned in text ("5 years",
// "3+ yrs").
func YearsExperience(text string) []string {
	var out []string
	for _, m := range yearsPattern.FindAllStringSubmatch(text, -1) {
		out = append(out, m[1])
	}
	return out
}

// Match compares a job description with resume text.
func (m *Matcher) Match(jobDescription, resumeText string) *types.MatchReport {
	jobSkills := m.ExtractSkills(jobDescription)
	resumeSkills := m.ExtractSkills(resumeText)

	have := make(map[string]bool, len(resumeSkills))
	for _, s := range resumeSkills {
		have[s] = true
	}

	report := &types.MatchReport{
		JobSkills:       nonNil(jobSkills),
		ResumeSkills:    nonNil(resumeSkills),
		MatchingSkills:  []string{},
		MissingSkills:   []string{},
		Qualifications:  nonNil(Qualifications(jobDescription)),
		YearsExperience: YearsExperience(resumeText),
	}
	for _, s := range jobSkills {
		if have[s] {
			report.MatchingSkills = append(report.MatchingSkills, s)
		} else {
			report.MissingSkills = append(report.MissingSkills, s)
		}
	}
	if len(jobSkills) > 0 {
		report.SkillsScore = round2(float64(len(report.MatchingSkills)) / float64(len(jobSkills)) * 100)
	}
	return report
}

// Score is the skills match percentage of resumeText against jobDescription.
func (m *Matcher) Score(jobDescription, resumeText string) float64 {
	return m.Match(jobDescription, resumeText).SkillsScore
}

// SectionText flattens a section map into plain text for matching.
func SectionText(secs *types.SectionMap) string {
	var b strings.Builder
	for _, k := range secs.Keys() {
		v, _ := secs.Get(k)
		b.WriteString(k)
		b.WriteString("\n")
		b.WriteString(v)
		b.WriteString("\n")
	}
	return b.String()
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
