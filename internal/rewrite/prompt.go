package rewrite

import (
	"encoding/json"
	"fmt"

	"github.com/p-shah256/resume-optimizer/pkg/types"
)

const systemPrompt = "You are a resume optimization expert who tailors resumes to specific job descriptions. You reply with JSON only."

const userPromptFormat = `Rewrite each section of this resume so it better matches the job description.

Rules:
1. Return a JSON object with exactly the same keys as the input. Do not add or remove keys.
2. Every value is a string. Keep the same number of lines (separated by \n) as the original value.
3. Work in keywords and skills from the job description where they are truthful for the candidate.
4. Keep all dates, company names, school names, and other proper nouns exactly as written.
5. Use strong action verbs and keep bullet glyphs at the start of lines that have them.

Resume sections:
%s

Job description:
%s`

// buildPrompt returns the system and user prompts for one rewrite request.
func buildPrompt(secs *types.SectionMap, jobDescription string) (string, string, error) {
	payload, err := json.MarshalIndent(secs, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal sections: %w", err)
	}
	return systemPrompt, fmt.Sprintf(userPromptFormat, payload, jobDescription), nil
}
