// Package extract scans free-text content for embedded mentions: #tags,
// [[note links]], @"card titles", @URLs, @dates, and @#collection slugs.
// Extraction is pure and deterministic; it performs no I/O.
package extract

import (
	"regexp"
	"sort"
	"time"

	"github.com/soreine/mentis/internal/mention"
)

var (
	noteRe       = regexp.MustCompile(`\[\[(.*?)\]\]`)
	cardTitleRe  = regexp.MustCompile(`@"([^"\n]*)"`)
	collectionRe = regexp.MustCompile(`@#([A-Za-z0-9-]+)`)
	dateRe       = regexp.MustCompile(`@(\d{4}-\d{2}-\d{2})\b`)
	cardURLRe    = regexp.MustCompile(`@(https?://[^\s]+)`)
	tagRe        = regexp.MustCompile(`(?:^|\s)#(\w+)`)
)

type hit struct {
	pos int
	m   mention.Mention
}

// Extract returns every mention found in text, ordered by first position
// and de-duplicated by (kind, key).
//
// Patterns are scanned in a fixed priority order with consumed spans
// blanked out between passes, so explicit bracketed/quoted forms win over
// bare heuristics: a date-looking token inside a quoted card title is part
// of the title, not a date link.
func Extract(text string) []mention.Mention {
	work := []byte(text)
	var hits []hit

	consume := func(re *regexp.Regexp, build func(raw string) (mention.Mention, bool)) {
		for _, loc := range re.FindAllSubmatchIndex(work, -1) {
			raw := string(work[loc[2]:loc[3]])
			m, ok := build(raw)
			if !ok {
				continue
			}
			hits = append(hits, hit{pos: loc[2], m: m})
			blank(work, loc[0], loc[1])
		}
	}

	consume(noteRe, func(raw string) (mention.Mention, bool) {
		key := mention.NormalizeTitle(raw)
		if key == "" {
			return mention.Mention{}, false
		}
		return mention.Mention{Kind: mention.KindNote, Raw: raw, Key: key}, true
	})

	consume(cardTitleRe, func(raw string) (mention.Mention, bool) {
		key := mention.NormalizeTitle(raw)
		if key == "" {
			return mention.Mention{}, false
		}
		return mention.Mention{Kind: mention.KindCard, Raw: raw, Key: key}, true
	})

	consume(collectionRe, func(raw string) (mention.Mention, bool) {
		key := mention.NormalizeSlug(raw)
		if key == "" {
			return mention.Mention{}, false
		}
		return mention.Mention{Kind: mention.KindCollection, Raw: raw, Key: key}, true
	})

	consume(dateRe, func(raw string) (mention.Mention, bool) {
		// Calendar-validate: @2025-02-30 is plain text, not a mention.
		if _, err := time.Parse("2006-01-02", raw); err != nil {
			return mention.Mention{}, false
		}
		return mention.Mention{Kind: mention.KindDate, Raw: raw, Key: raw}, true
	})

	consume(cardURLRe, func(raw string) (mention.Mention, bool) {
		return mention.Mention{Kind: mention.KindCard, Raw: raw, Key: raw}, true
	})

	consume(tagRe, func(raw string) (mention.Mention, bool) {
		return mention.Mention{Kind: mention.KindTag, Raw: raw, Key: mention.NormalizeTag(raw)}, true
	})

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	seen := make(map[mention.Mention]struct{}, len(hits))
	out := make([]mention.Mention, 0, len(hits))
	for _, h := range hits {
		dedup := mention.Mention{Kind: h.m.Kind, Key: h.m.Key}
		if _, ok := seen[dedup]; ok {
			continue
		}
		seen[dedup] = struct{}{}
		out = append(out, h.m)
	}
	return out
}

func blank(b []byte, start, end int) {
	for i := start; i < end; i++ {
		b[i] = ' '
	}
}
