package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/beevik/etree"
	"golang.org/x/net/html/charset"
)

// Content types recognised by FromBody.
const (
	ContentTypeJSON      = "application/json"
	ContentTypeForm      = "application/x-www-form-urlencoded"
	ContentTypeMultipart = "multipart/form-data"
	ContentTypeXML       = "application/xml"
	ContentTypeTextXML   = "text/xml"
)

// SyntaxError reports a body that could not be decoded in the expected format.
type SyntaxError struct {
	// Format is the format that was expected: json, form, multipart, xml or text.
	Format string
	Err    error
}

func (e *SyntaxError) Error() string {
	return "payload: invalid " + e.Format + ": " + e.Err.Error()
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

// FromBody decodes a request body according to its Content-Type header value.
// An empty body returns (nil, nil).
func FromBody(contentType string, body []byte) (any, error) {
	if len(body) == 0 {
		return nil, nil
	}

	mediaType, params, _ := mime.ParseMediaType(contentType)
	switch {
	case mediaType == ContentTypeForm:
		return DecodeForm(body)
	case mediaType == ContentTypeMultipart:
		return DecodeMultipart(body, params["boundary"])
	case IsXML(mediaType):
		return DecodeXML(body)
	default:
		return DecodeJSON(body)
	}
}

// IsXML reports whether a media type carries an XML document.
func IsXML(mediaType string) bool {
	return mediaType == ContentTypeXML ||
		mediaType == ContentTypeTextXML ||
		strings.HasSuffix(mediaType, "+xml")
}

// DecodeJSON decodes a single JSON document, keeping object key order.
// Numbers are returned as json.Number so they re-encode unchanged.
func DecodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeValue(dec)
	if err != nil {
		return nil, &SyntaxError{Format: "json", Err: err}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &SyntaxError{Format: "json", Err: errors.New("unexpected data after top-level value")}
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}

	switch delim {
	case '{':
		obj := NewObject()
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := keyTok.(string)
			if !ok {
				return nil, fmt.Errorf("object key is %T, not string", keyTok)
			}
			val, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			obj.Set(key, val)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return obj, nil
	case '[':
		arr := []any{}
		for dec.More() {
			val, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, val)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return arr, nil
	default:
		return nil, fmt.Errorf("unexpected delimiter %q", rune(delim))
	}
}

// DecodeForm decodes an application/x-www-form-urlencoded body into an Object.
// Fields keep the order they were sent in; a repeated field keeps its first value.
func DecodeForm(data []byte) (*Object, error) {
	obj := NewObject()
	for _, field := range strings.Split(string(data), "&") {
		if field == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(field, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return nil, &SyntaxError{Format: "form", Err: err}
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return nil, &SyntaxError{Format: "form", Err: err}
		}
		if _, seen := obj.Get(key); seen {
			continue
		}
		obj.Set(key, value)
	}
	return obj, nil
}

// DecodeMultipart decodes the fields of a multipart/form-data body.
// File parts contribute their file name rather than their content.
func DecodeMultipart(data []byte, boundary string) (*Object, error) {
	if boundary == "" {
		return nil, &SyntaxError{Format: "multipart", Err: errors.New("missing boundary")}
	}

	obj := NewObject()
	mr := multipart.NewReader(bytes.NewReader(data), boundary)
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return obj, nil
		}
		if err != nil {
			return nil, &SyntaxError{Format: "multipart", Err: err}
		}

		name := part.FormName()
		if name == "" {
			_ = part.Close()
			continue
		}

		var value string
		if filename := part.FileName(); filename != "" {
			value = filename
		} else {
			b, err := io.ReadAll(part)
			if err != nil {
				_ = part.Close()
				return nil, &SyntaxError{Format: "multipart", Err: err}
			}
			value = string(b)
		}
		_ = part.Close()

		if _, seen := obj.Get(name); !seen {
			obj.Set(name, value)
		}
	}
}

// DecodeXML converts an XML document into an Object keyed by the root element.
// Attributes become "@name" keys, text beside attributes or children becomes
// "#text", and repeated child elements collapse into an array.
func DecodeXML(data []byte) (*Object, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, &SyntaxError{Format: "xml", Err: err}
	}
	root := doc.Root()
	if root == nil {
		return nil, &SyntaxError{Format: "xml", Err: errors.New("no root element")}
	}

	obj := NewObject()
	obj.Set(root.Tag, xmlValue(root))
	return obj, nil
}

func xmlValue(el *etree.Element) any {
	children := el.ChildElements()
	text := strings.TrimSpace(el.Text())
	if len(children) == 0 && len(el.Attr) == 0 {
		return text
	}

	obj := NewObject()
	for _, attr := range el.Attr {
		obj.Set("@"+attr.Key, attr.Value)
	}
	if text != "" {
		obj.Set("#text", text)
	}
	for _, child := range children {
		value := xmlValue(child)
		existing, seen := obj.Get(child.Tag)
		if !seen {
			obj.Set(child.Tag, value)
			continue
		}
		if list, ok := existing.([]any); ok {
			obj.Set(child.Tag, append(list, value))
		} else {
			obj.Set(child.Tag, []any{existing, value})
		}
	}
	return obj
}

// DecodeText converts a body to a UTF-8 string, honouring a charset parameter
// on the Content-Type. Bodies that are not valid text are rejected.
func DecodeText(contentType string, body []byte) (string, error) {
	_, params, _ := mime.ParseMediaType(contentType)
	label := strings.ToLower(strings.TrimSpace(params["charset"]))

	if label != "" && label != "utf-8" && label != "utf8" {
		r, err := charset.NewReaderLabel(label, bytes.NewReader(body))
		if err != nil {
			return "", &SyntaxError{Format: "text", Err: err}
		}
		decoded, err := io.ReadAll(r)
		if err != nil {
			return "", &SyntaxError{Format: "text", Err: err}
		}
		body = decoded
	}

	if !utf8.Valid(body) {
		return "", &SyntaxError{Format: "text", Err: errors.New("body is not valid UTF-8")}
	}
	return string(body), nil
}
