package extract

import "errors"

// Sentinel errors for the extract package.
var (
	// ErrUnsupportedType indicates a file whose content type carries no extractable text.
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrFileNotFound indicates the input file does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrFileTooLarge indicates the input exceeds the configured size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrInvalidPDF indicates a PDF that could not be parsed.
	ErrInvalidPDF = errors.New("invalid PDF")

	// ErrInvalidEncoding indicates text that could not be decoded to UTF-8.
	ErrInvalidEncoding = errors.New("invalid text encoding")
)
