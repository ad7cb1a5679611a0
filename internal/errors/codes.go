// Package errors provides structured error handling for docsift.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Ingestion errors (source files, conversion)
//   - 3XX: Storage errors (index file, SQLite)
//   - 4XX: Protocol and validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIngest indicates source-file and conversion errors.
	CategoryIngest Category = "INGEST"
	// CategoryStorage indicates index-file and SQLite errors.
	CategoryStorage Category = "STORAGE"
	// CategoryProtocol indicates request parsing and validation errors.
	CategoryProtocol Category = "PROTOCOL"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but the process can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigInvalid = "ERR_101_CONFIG_INVALID"

	// Ingestion errors (200-299)
	ErrCodeContentTooLarge   = "ERR_201_CONTENT_TOO_LARGE"
	ErrCodeNoSourceFiles     = "ERR_202_NO_SOURCE_FILES"
	ErrCodeNoPublishableDocs = "ERR_203_NO_PUBLISHABLE_DOCS"
	ErrCodeFileUnreadable    = "ERR_204_FILE_UNREADABLE"

	// Storage errors (300-399)
	ErrCodeStoreOpen    = "ERR_301_STORE_OPEN"
	ErrCodeStoreWrite   = "ERR_302_STORE_WRITE"
	ErrCodeStoreQuery   = "ERR_303_STORE_QUERY"
	ErrCodeBuildLocked  = "ERR_304_BUILD_LOCKED"
	ErrCodeIndexReplace = "ERR_305_INDEX_REPLACE"

	// Protocol errors (400-499)
	ErrCodeBadRequest   = "ERR_401_BAD_REQUEST"
	ErrCodeUnauthorized = "ERR_402_UNAUTHORIZED"

	// Internal errors (500-599)
	ErrCodeInternal = "ERR_501_INTERNAL"
)

// categoryFromCode extracts the category from an error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIngest
	case '3':
		return CategoryStorage
	case '4':
		return CategoryProtocol
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeConfigInvalid,
		ErrCodeNoSourceFiles, ErrCodeNoPublishableDocs,
		ErrCodeStoreOpen:
		return SeverityFatal
	case ErrCodeContentTooLarge, ErrCodeFileUnreadable:
		return SeverityWarning
	}
	return SeverityError
}
