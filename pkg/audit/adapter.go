package audit

import (
	"context"
	"net/http"

	"github.com/getmockd/reqaudit/pkg/entry"
	"github.com/getmockd/reqaudit/pkg/mask"
	"github.com/getmockd/reqaudit/pkg/payload"
)

// Adapter extracts entry fields from one side of an HTTP exchange.
type Adapter[R any] interface {
	// GetRequest resolves the request that produced resp.
	GetRequest(ctx context.Context, resp R) (*http.Request, error)

	// BuildRequest returns the request fields of the entry. Fields left
	// unset keep the template defaults.
	BuildRequest(ctx context.Context, req *http.Request) (entry.Request, error)

	// BuildResponse returns the response fields of the entry.
	BuildResponse(ctx context.Context, resp R) (entry.Response, error)
}

// RequestFields builds the request half of an entry from its parts. The
// body is decoded according to the request's Content-Type and masked with
// cfg; an empty body gives a null payload.
func RequestFields(url string, req *http.Request, body []byte, cfg mask.Config) (entry.Request, error) {
	decoded, err := payload.FromBody(req.Header.Get("Content-Type"), body)
	if err != nil {
		return entry.Request{}, &DecodeError{Part: PartRequest, Err: err}
	}

	return entry.Request{
		URL:     entry.String(url),
		Method:  entry.String(req.Method),
		Headers: entry.HeadersFrom(req.Header),
		Payload: mask.Mask(decoded, cfg),
	}, nil
}

// ResponseData converts a response body to text for the entry's data field.
func ResponseData(contentType string, body []byte) (*string, error) {
	text, err := payload.DecodeText(contentType, body)
	if err != nil {
		return nil, &DecodeError{Part: PartResponse, Err: err}
	}
	return entry.String(text), nil
}
