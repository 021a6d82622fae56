// Package payload decodes HTTP bodies into JSON-compatible values that keep
// the key order of the original document.
//
// Objects decode to *Object, an insertion-ordered map, so that masking and
// re-encoding reproduce the payload's shape exactly. Arrays decode to []any,
// numbers to json.Number, and the remaining scalars to string, bool or nil.
//
// FromBody picks a decoder from the Content-Type:
//
//   - application/x-www-form-urlencoded: DecodeForm
//   - multipart/form-data: DecodeMultipart
//   - application/xml, text/xml, *+xml: DecodeXML
//   - anything else: DecodeJSON
//
// An empty body always yields a nil payload.
package payload
