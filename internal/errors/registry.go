package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Upload area setup (U001-U099)
	// ============================================

	"U001": {
		Category:   CategorySetup,
		Message:    "Parent form not found",
		Detail:     "An upload area uploads to the action of its nearest enclosing form. The element was attached without a form ancestor.",
		Suggestion: "Place the upload area inside a <form action=\"...\"> element before attaching it.",
	},
	"U002": {
		Category:   CategorySetup,
		Message:    "Invalid upload target",
		Detail:     "The form action could not be resolved to an absolute URL.",
		Suggestion: "Use an absolute action URL, or configure a base URL for relative actions.",
	},
	"U003": {
		Category: CategoryTransfer,
		Message:  "Upload failed",
		Detail:   "The server did not confirm the upload with a 200 OK response.",
	},

	// ============================================
	// Upload server (S001-S099)
	// ============================================

	"S001": {
		Category:   CategoryServer,
		Message:    "Missing file name",
		Detail:     "Uploads must carry the original file name in the File-Name header.",
		Suggestion: "Send the request with a File-Name header.",
	},
	"S002": {
		Category: CategoryServer,
		Message:  "File type not accepted",
		Detail:   "The file's name and Content-Type do not match the server accept-list.",
	},
	"S003": {
		Category: CategoryServer,
		Message:  "File too large",
		Detail:   "The request body exceeds the configured maximum upload size.",
	},
	"S004": {
		Category: CategoryServer,
		Message:  "Storage failure",
		Detail:   "The upload could not be written to the storage backend.",
	},
	"S005": {
		Category: CategoryServer,
		Message:  "Stored file not found",
	},

	// ============================================
	// Configuration (C001-C099)
	// ============================================

	"C001": {
		Category:   CategoryConfig,
		Message:    "Invalid configuration",
		Suggestion: "Check fotbroms.yaml, FOTBROMS_* environment variables and command-line flags.",
	},
	"C002": {
		Category: CategoryCLI,
		Message:  "Invalid command-line arguments",
	},
}

// Lookup returns the template registered for code.
func Lookup(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
