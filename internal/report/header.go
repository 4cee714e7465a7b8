package report

import (
	"strings"

	"github.com/agentic-research/spaceused/internal/header"
)

// HeaderMap returns the header fields keyed by snake_case names.
func HeaderMap(h *header.Header) map[string]any {
	return map[string]any{
		"seems_valid":           h.SeemsValid(),
		"magic":                 strings.TrimRight(string(h.Magic[:]), "\x00"),
		"page_size":             h.PageSize,
		"format_write_version":  h.WriteVersion,
		"format_read_version":   h.ReadVersion,
		"reserved_space":        h.ReservedSpace,
		"max_embedded_payload":  h.MaxEmbeddedPayload,
		"min_embedded_payload":  h.MinEmbeddedPayload,
		"leaf_payload":          h.LeafPayload,
		"change_counter":        h.ChangeCounter,
		"page_count":            h.PageCount,
		"freelist_start":        h.FreelistStart,
		"freelist_count":        h.FreelistCount,
		"schema_cookie":         h.SchemaCookie,
		"schema_format":         h.SchemaFormat,
		"page_cache_size":       h.PageCacheSize,
		"largest_root_page":     h.LargestRoot,
		"text_encoding":         h.TextEncoding.String(),
		"user_version":          h.UserVersion,
		"incremental_vacuum":    h.IncrementalVac,
		"vacuum_mode":           h.AutoVacuum().String(),
		"application_id":        h.ApplicationID,
		"reserved_is_zero":      h.ReservedIsZero(),
		"version_valid_for":     h.VersionValidFor,
		"sqlite_version_number": h.SQLiteVersion,
	}
}
