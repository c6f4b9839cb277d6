package jobs

import (
	"regexp"
	"strings"

	"github.com/movingops/jobreport-backend/pkg/enums"
)

var (
	lineBreakTag = regexp.MustCompile(`(?i)<\s*(br|/p|/div|/li)\s*/?>`)
	htmlTag      = regexp.MustCompile(`<[^>]*>`)
	sourceMarker = regexp.MustCompile(`(?i)\bsource\s*:\s*([^\r\n]*)`)
)

// DefaultColorSources is the fallback color table used when no marker is present.
var DefaultColorSources = map[string]enums.JobSource{
	"6": enums.JobSourceYelp,
	"2": enums.JobSourceGoogleLSA,
}

// Classifier resolves a job's booking source.
type Classifier struct {
	colors map[string]enums.JobSource
}

// NewClassifier builds a classifier from an "id -> source name" table. Unknown names map to Other.
func NewClassifier(colors map[string]string) *Classifier {
	if len(colors) == 0 {
		return &Classifier{colors: DefaultColorSources}
	}
	table := make(map[string]enums.JobSource, len(colors))
	for id, name := range colors {
		source, err := enums.ParseJobSource(name)
		if err != nil {
			source = enums.JobSourceOther
		}
		table[id] = source
	}
	return &Classifier{colors: table}
}

// Classify uses the default color table.
func Classify(description, colorID string) enums.JobSource {
	return (&Classifier{colors: DefaultColorSources}).Classify(description, colorID)
}

// Classify prefers an explicit "Source:" marker in the description; the color id is
// consulted only when no marker exists.
func (c *Classifier) Classify(description, colorID string) enums.JobSource {
	if value, ok := markerValue(description); ok {
		return sourceFromMarker(value)
	}
	if source, ok := c.colors[strings.TrimSpace(colorID)]; ok {
		return source
	}
	return enums.JobSourceOther
}

func markerValue(description string) (string, bool) {
	if strings.TrimSpace(description) == "" {
		return "", false
	}
	text := lineBreakTag.ReplaceAllString(description, "\n")
	text = htmlTag.ReplaceAllString(text, "")
	m := sourceMarker.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.ToLower(strings.TrimSpace(m[1])), true
}

func sourceFromMarker(value string) enums.JobSource {
	switch {
	case strings.Contains(value, "yelp"):
		return enums.JobSourceYelp
	case strings.Contains(value, "local service"), strings.Contains(value, "lsa"):
		return enums.JobSourceGoogleLSA
	default:
		return enums.JobSourceOther
	}
}
