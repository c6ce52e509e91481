package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/soreine/mentis/internal/index"
)

// UpsertRecordRequest registers or updates a source record in the
// resolution registry.
type UpsertRecordRequest struct {
	ID      string `json:"id,omitempty"`
	Scope   string `json:"scope"`
	Kind    string `json:"kind"`
	Title   string `json:"title"`
	URL     string `json:"url,omitempty"`
	Deleted bool   `json:"deleted"`
}

// Validate validates the record payload.
func (r UpsertRecordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Scope, validation.Required),
		validation.Field(&r.Kind, validation.Required, validation.In(index.RecordNote, index.RecordBookmark)),
		validation.Field(&r.Title, validation.Required.When(r.Kind == index.RecordNote)),
		validation.Field(&r.URL, validation.Required.When(r.Kind == index.RecordBookmark && r.Title == "")),
	)
}

// UpsertCollectionRequest registers or updates a collection.
type UpsertCollectionRequest struct {
	ID      string `json:"id,omitempty"`
	Scope   string `json:"scope"`
	Slug    string `json:"slug"`
	Name    string `json:"name,omitempty"`
	Deleted bool   `json:"deleted"`
}

// Validate validates the collection payload.
func (r UpsertCollectionRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Scope, validation.Required),
		validation.Field(&r.Slug, validation.Required),
	)
}

// CommitContentRequest carries the freshly committed content of a source.
type CommitContentRequest struct {
	Content string `json:"content"`
}

// CommitContentResponse reports the reindex outcome.
type CommitContentResponse struct {
	SourceID string `json:"source_id"`
	Created  int    `json:"created"`
	Kept     int    `json:"kept"`
}

// BacklinksResponse wraps a backlink query result.
type BacklinksResponse struct {
	Backlinks []index.Backlink `json:"backlinks"`
}

// TagsResponse wraps the tag aggregation for a scope.
type TagsResponse struct {
	Tags []index.TagCount `json:"tags"`
}

// RecordsByTagResponse lists the record ids carrying one tag.
type RecordsByTagResponse struct {
	Records []string `json:"records"`
}

// ReferencesResponse lists a source's outgoing refs, dangling included.
type ReferencesResponse struct {
	References []index.OutgoingRef `json:"references"`
}
