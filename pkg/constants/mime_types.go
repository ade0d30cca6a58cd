package constants

// MIME types for request and response bodies
const (
	MimeTypeJSON = "application/json"
	MimeTypeCSV  = "text/csv"
)

// HTTP headers
const (
	HeaderContentType  = "Content-Type"
	HeaderAccept       = "Accept"
	HeaderRequestID    = "X-Request-ID"
	HeaderForwardedFor = "X-Forwarded-For"
	HeaderRealIP       = "X-Real-IP"
	HeaderSearchID     = "X-Search-ID"
)

// FileExtensions maps export formats to file extensions
var FileExtensions = map[string]string{
	"csv":  ".csv",
	"json": ".json",
}

