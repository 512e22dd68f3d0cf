// Package appid extracts city-issued application identifiers such as
// "RZ 12-123456" from raw document text using a digit template.
//
// A template mixes literal characters, digit placeholders (X) and
// formatting characters (space, '#', '.'). Formatting characters are not
// required to appear in the text, so IDs that were split across lines or
// mangled by OCR still match, and every match is written back out in the
// template's canonical form.
package appid

import (
	"regexp"
	"strings"
	"sync"

	"github.com/agentstation/civicmap/pkg/errors"
)

// Placeholder marks a single digit in a template.
const Placeholder = 'X'

var (
	// nonIDChars matches everything removed from content before scanning.
	nonIDChars = regexp.MustCompile(`[^A-Za-z0-9-]+`)

	compiled sync.Map // template -> *Template
)

// Template is a compiled application-id template.
type Template struct {
	raw string
	re  *regexp.Regexp
}

// Compile builds a Template. A template without any placeholder compiles
// but never matches.
func Compile(template string) (*Template, error) {
	if strings.TrimSpace(template) == "" {
		return nil, errors.NewValidationError("template", template, "template is empty")
	}

	t := &Template{raw: template}
	if !strings.ContainsRune(template, Placeholder) {
		return t, nil
	}

	var b strings.Builder
	b.WriteString("(?i)")
	for _, r := range template {
		switch {
		case isFormatting(r):
			continue
		case r == Placeholder:
			b.WriteString("[0-9]")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, errors.WrapValidation("template", err)
	}
	t.re = re
	return t, nil
}

// String returns the template as written.
func (t *Template) String() string {
	return t.raw
}

// Extract returns the canonically formatted IDs found in content, unique and
// in first-seen order.
func (t *Template) Extract(content string) []string {
	if t.re == nil {
		return nil
	}

	stripped := nonIDChars.ReplaceAllString(content, "")
	matches := t.re.FindAllString(stripped, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		id := t.format(m)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// format re-inserts the template's formatting characters into a raw match.
// Literal characters are taken from the template so case is normalized.
func (t *Template) format(match string) string {
	var b strings.Builder
	b.Grow(len(t.raw))
	i := 0
	for _, r := range t.raw {
		switch {
		case isFormatting(r):
			b.WriteRune(r)
		case r == Placeholder:
			if i < len(match) {
				b.WriteByte(match[i])
			}
			i++
		default:
			b.WriteRune(r)
			i += len(string(r))
		}
	}
	return b.String()
}

// ExtractIDs compiles template (cached per template string) and extracts
// every matching ID from content. An unusable template yields no IDs.
func ExtractIDs(template, content string) []string {
	if v, ok := compiled.Load(template); ok {
		return v.(*Template).Extract(content)
	}
	t, err := Compile(template)
	if err != nil {
		return nil
	}
	compiled.Store(template, t)
	return t.Extract(content)
}

func isFormatting(r rune) bool {
	return r == ' ' || r == '#' || r == '.'
}
