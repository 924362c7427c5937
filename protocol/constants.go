package protocol

// Header names
const (
	HeaderContentLength = "Content-Length"
	HeaderContentType   = "Content-Type"
	HeaderAccept        = "Accept"
	HeaderDate          = "Date"
	HeaderLocation      = "Location"
	HeaderHost          = "Host"
)

// Mime types
const (
	MimeTextPlain      = "text/plain"
	MimeAppJson        = "application/json"
	MimeAppXml         = "application/xml"
	MimeAppOctetStream = "application/octet-stream"
)

const crlf = "\r\n"
