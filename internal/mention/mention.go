// Package mention defines the closed set of mention kinds found in
// note and bookmark content, plus their key normalization rules.
package mention

import (
	"strings"

	"github.com/gosimple/slug"
)

// Kind identifies what a mention refers to.
type Kind string

const (
	// KindTag is a #tag token. Tags are not records and never resolve.
	KindTag Kind = "tag"
	// KindNote is a [[Title]] link to a note.
	KindNote Kind = "note"
	// KindCard is an @"Title" or @https://... link to a bookmark card.
	KindCard Kind = "card"
	// KindDate is an @YYYY-MM-DD calendar link.
	KindDate Kind = "date"
	// KindCollection is an @#slug link to a collection.
	KindCollection Kind = "collection"
)

// Kinds lists every mention kind. Resolution and rendering switch over
// this set exhaustively; adding a kind without handling it is a bug.
var Kinds = []Kind{KindTag, KindNote, KindCard, KindDate, KindCollection}

// Mention is one syntactic pattern found in content. It is ephemeral:
// only the index rows derived from it are persisted.
type Mention struct {
	Kind Kind
	// Raw is the mention body as written (inner text of the syntax),
	// kept for display even when the target cannot be resolved.
	Raw string
	// Key is the normalized lookup key: lowercase tag, folded title,
	// verbatim URL, ISO date, or collection slug.
	Key string
}

// NormalizeTitle folds a note or card title for case-insensitive matching.
func NormalizeTitle(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeTag lowercases a tag token.
func NormalizeTag(s string) string {
	return strings.ToLower(s)
}

// NormalizeSlug canonicalizes a collection slug.
func NormalizeSlug(s string) string {
	return slug.Make(s)
}
