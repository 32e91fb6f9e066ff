// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldBuildID   = "build_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldRule      = "rule"
	FieldSeverity  = "severity"

	// Content fields
	FieldPage   = "page"
	FieldSlug   = "slug"
	FieldLayout = "layout"

	// Path / URL fields
	FieldPath    = "path"
	FieldBaseURL = "base_url"
	FieldTarget  = "target"
)
