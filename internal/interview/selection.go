package interview

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// Input is the participant's contribution to one turn. Selections, when
// present, are authoritative and listed in rank order; Message is free text
// and is only parsed for a selection when Selections is empty or invalid.
type Input struct {
	Message    string
	Selections []OptionKey
}

// Empty reports whether the participant said nothing this turn.
func (in Input) Empty() bool {
	return strings.TrimSpace(in.Message) == "" && len(in.Selections) == 0
}

// Text renders the input as the user turn stored in the transcript.
func (in Input) Text() string {
	if msg := strings.TrimSpace(in.Message); msg != "" {
		return msg
	}
	keys := make([]string, 0, len(in.Selections))
	for _, k := range in.Selections {
		if s := strings.TrimSpace(string(k)); s != "" {
			keys = append(keys, strings.ToUpper(s))
		}
	}
	switch len(keys) {
	case 0:
		return ""
	case 1:
		return "I choose " + keys[0] + "."
	default:
		return "My first choice is " + keys[0] + ", then " + strings.Join(keys[1:], ", then ") + "."
	}
}

// ResolveSelection returns the option keys the input selects for q, in rank
// order, truncated to q.MaxSelections. ok is false when nothing was selected.
func ResolveSelection(q Question, in Input) (keys []OptionKey, ok bool) {
	if keys := structuredSelection(q, in.Selections); len(keys) > 0 {
		return keys, true
	}
	keys = DetectSelection(q, in.Message)
	return keys, len(keys) > 0
}

func structuredSelection(q Question, sel []OptionKey) []OptionKey {
	var out []OptionKey
	seen := map[OptionKey]bool{}
	for _, k := range sel {
		k = OptionKey(strings.ToUpper(strings.TrimSpace(string(k))))
		if _, exists := q.Option(k); !exists || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
		if len(out) == q.MaxSelections() {
			break
		}
	}
	return out
}

var (
	upperLetterRe = regexp.MustCompile(`\b([A-E])\b`)
	cueLetterRe   = regexp.MustCompile(`(?i)\b(?:option|choice|answer|pick|choose)\s+([a-e])\b`)
	parenLetterRe = regexp.MustCompile(`(?i)(?:^|\s|\()([a-e])[).:](?:\s|$)`)
	letterOnly    = map[string]bool{"and": true, "then": true, "first": true, "second": true, "or": true}
)

type hit struct {
	pos int
	key OptionKey
}

// DetectSelection heuristically finds option choices in free text. It looks
// for option letters first and falls back to matching the leading words of an
// option's text. The heuristic is permissive: a stray capital "A" counts.
func DetectSelection(q Question, msg string) []OptionKey {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return nil
	}
	hits := letterOnlyHits(msg)
	if len(hits) == 0 {
		for _, re := range []*regexp.Regexp{cueLetterRe, parenLetterRe, upperLetterRe} {
			for _, m := range re.FindAllStringSubmatchIndex(msg, -1) {
				hits = append(hits, hit{pos: m[2], key: OptionKey(strings.ToUpper(msg[m[2]:m[3]]))})
			}
		}
	}
	if len(hits) == 0 {
		hits = overlapHits(q, msg)
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	var out []OptionKey
	seen := map[OptionKey]bool{}
	for _, h := range hits {
		if _, ok := q.Option(h.key); !ok || seen[h.key] {
			continue
		}
		seen[h.key] = true
		out = append(out, h.key)
		if len(out) == q.MaxSelections() {
			break
		}
	}
	return out
}

// letterOnlyHits handles terse replies such as "b", "b, d" or "c then a".
func letterOnlyHits(msg string) []hit {
	var hits []hit
	pos := 0
	for _, tok := range strings.FieldsFunc(strings.ToLower(msg), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		switch {
		case len(tok) == 1 && tok >= "a" && tok <= "e":
			hits = append(hits, hit{pos: pos, key: OptionKey(strings.ToUpper(tok))})
		case letterOnly[tok]:
		default:
			return nil
		}
		pos++
	}
	return hits
}

const leadingWordCount = 3

func overlapHits(q Question, msg string) []hit {
	haystack := " " + strings.Join(words(msg), " ") + " "
	var hits []hit
	for _, o := range q.Options {
		w := words(o.Text)
		if len(w) > leadingWordCount {
			w = w[:leadingWordCount]
		}
		if len(w) == 0 {
			continue
		}
		if i := strings.Index(haystack, " "+strings.Join(w, " ")+" "); i >= 0 {
			hits = append(hits, hit{pos: i, key: o.Key})
		}
	}
	return hits
}

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}
