package response

import (
	"strconv"

	"example.com/rawhttpd/internal/request"
)

const headerTerminator = "\r\n\r\n"

// assemble serializes b into a single buffer:
//
//	HTTP/1.1 {status}\n{accept-ranges}\ncontent-type: {type}\ncontent-length: {n}\r\n\r\n{body}
//
// With strict set, the header lines end in CRLF instead of LF.
func assemble(currentPath string, b *body, strict bool) *HttpResponse {
	eol := "\n"
	if strict {
		eol = "\r\n"
	}
	version := request.V1_1
	contentLength := len(b.data)

	head := make([]byte, 0, 128)
	head = append(head, version.String()...)
	head = append(head, ' ')
	head = append(head, b.status.String()...)
	head = append(head, eol...)
	head = append(head, b.acceptRanges.String()...)
	head = append(head, eol...)
	head = append(head, "content-type: "...)
	head = append(head, b.contentType...)
	head = append(head, eol...)
	head = append(head, "content-length: "...)
	head = strconv.AppendInt(head, int64(contentLength), 10)
	head = append(head, headerTerminator...)

	buf := make([]byte, 0, len(head)+contentLength)
	buf = append(buf, head...)
	buf = append(buf, b.data...)

	return &HttpResponse{
		Version:       version,
		Status:        b.status,
		ContentLength: contentLength,
		AcceptRanges:  b.acceptRanges,
		ContentType:   b.contentType,
		CurrentPath:   currentPath,
		ResponseBody:  buf,
		headerLen:     len(head),
	}
}
