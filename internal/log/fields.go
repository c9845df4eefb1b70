// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRunID   = "run_id"
	FieldBatchID = "batch_id"
	FieldVideoID = "video_id"
	FieldChannel = "channel"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldStage     = "stage"
	FieldErrorType = "error_type"

	// Language fields
	FieldSourceLang = "source_lang"
	FieldTargetLang = "target_lang"

	// Chunk fields
	FieldChunkIndex = "chunk_index"
	FieldChunkTotal = "chunk_total"
	FieldChunkDone  = "chunk_done"

	// Path / URL fields
	FieldPath = "path"
	FieldURL  = "url"

	// Network fields
	FieldProxy = "proxy"
)
