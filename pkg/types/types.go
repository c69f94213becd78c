package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// =============== Document TYPES ===============

// Paragraph is one paragraph of a parsed document. Bold and Italic are set
// when every non-empty run of the paragraph carries the attribute.
type Paragraph struct {
	Text      string `json:"text"`
	Bold      bool   `json:"is_bold"`
	Italic    bool   `json:"is_italic"`
	StyleName string `json:"style_name"`
}

// =============== Section TYPES ===============

// SectionMap maps section keys to newline-joined section bodies and keeps
// keys in insertion order.
type SectionMap struct {
	keys   []string
	values map[string]string
}

func NewSectionMap() *SectionMap {
	return &SectionMap{values: make(map[string]string)}
}

// Set stores body under key. An existing key keeps its position.
func (m *SectionMap) Set(key, body string) {
	if m.values == nil {
		m.values = make(map[string]string)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = body
}

func (m *SectionMap) Get(key string) (string, bool) {
	if m == nil {
		return "", false
	}
	v, ok := m.values[key]
	return v, ok
}

func (m *SectionMap) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

func (m *SectionMap) Delete(key string) {
	if !m.Has(key) {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Keys returns a copy of the keys in insertion order.
func (m *SectionMap) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

func (m *SectionMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

func (m *SectionMap) Clone() *SectionMap {
	out := NewSectionMap()
	for _, k := range m.Keys() {
		out.Set(k, m.values[k])
	}
	return out
}

func (m *SectionMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (m *SectionMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("section map must be a JSON object")
	}

	m.keys = nil
	m.values = make(map[string]string)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected key token %v", tok)
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("section %q: %w", key, err)
		}
		m.Set(key, value)
	}
	_, err = dec.Token()
	return err
}

// =============== Pipeline TYPES ===============

type Fallback struct {
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

type OptimizeResult struct {
	Filename       string      `json:"filename"`
	Document       []byte      `json:"-"`
	Original       *SectionMap `json:"original"`
	Rewritten      *SectionMap `json:"rewritten"`
	Fallbacks      []Fallback  `json:"fallbacks,omitempty"`
	Attempts       int         `json:"attempts"`
	OriginalScore  float64     `json:"original_score"`
	OptimizedScore float64     `json:"optimized_score"`
}

// =============== Storage TYPES ===============

type OptimizationRecord struct {
	ID             string    `json:"id"`
	RequestID      string    `json:"request_id"`
	Filename       string    `json:"filename"`
	SectionCount   int       `json:"section_count"`
	FallbackCount  int       `json:"fallback_count"`
	Attempts       int       `json:"attempts"`
	Status         string    `json:"status"`
	Error          string    `json:"error,omitempty"`
	DurationMs     int64     `json:"duration_ms"`
	OriginalScore  float64   `json:"original_score"`
	OptimizedScore float64   `json:"optimized_score"`
	CreatedAt      time.Time `json:"created_at"`
}

// =============== Matching TYPES ===============

type MatchReport struct {
	JobSkills       []string `json:"job_skills"`
	ResumeSkills    []string `json:"resume_skills"`
	MatchingSkills  []string `json:"matching_skills"`
	MissingSkills   []string `json:"missing_skills"`
	Qualifications  []string `json:"required_qualifications"`
	YearsExperience []string `json:"years_experience,omitempty"`
	SkillsScore     float64  `json:"skills_match_score"`
}
