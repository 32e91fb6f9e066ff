// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the daemon.
const (
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"

	BuildIDKey    = "build.id"
	BuildPagesKey = "build.pages"
	BuildCacheKey = "build.cache_hits"

	PagePathKey = "page.path"
	PageSlugKey = "page.slug"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// BuildAttributes creates build span attributes.
func BuildAttributes(buildID string, pages, cacheHits int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(BuildIDKey, buildID),
		attribute.Int(BuildPagesKey, pages),
		attribute.Int(BuildCacheKey, cacheHits),
	}
}
