package services

import (
	"strings"
	"unicode"
)

// defaultKeyPointCues are phrases that mark a final segment as worth
// remembering.
var defaultKeyPointCues = []string{
	"action item",
	"we decided",
	"let's make sure",
	"deadline",
	"follow up",
	"remember",
}

// KeyPointExtractor derives key points from final transcript segments by
// matching cue phrases. Interim segments are never considered.
type KeyPointExtractor struct {
	cues []string
}

// NewKeyPointExtractor creates an extractor for the given cue phrases.
// A nil slice selects the default cues; an empty slice disables extraction.
func NewKeyPointExtractor(cues []string) *KeyPointExtractor {
	if cues == nil {
		cues = defaultKeyPointCues
	}
	normalized := make([]string, 0, len(cues))
	for _, c := range cues {
		if c = normalize(c); c != "" {
			normalized = append(normalized, c)
		}
	}
	return &KeyPointExtractor{cues: normalized}
}

// Extract returns the key point text and matched cue for a final segment,
// or ok=false if no cue matches.
func (x *KeyPointExtractor) Extract(change SegmentChange) (text, cue string, ok bool) {
	if x == nil || !change.Final() {
		return "", "", false
	}
	body := normalize(change.Segment.Text)
	for _, c := range x.cues {
		if containsPhrase(body, c) {
			return strings.TrimSpace(change.Segment.Text), c, true
		}
	}
	return "", "", false
}

// normalize lowercases s and collapses punctuation and whitespace to single spaces.
func normalize(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	return strings.Join(fields, " ")
}

// containsPhrase matches whole words only.
func containsPhrase(body, phrase string) bool {
	padded := " " + body + " "
	return strings.Contains(padded, " "+phrase+" ")
}
