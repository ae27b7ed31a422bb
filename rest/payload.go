package rest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"sort"
	"strings"

	"github.com/FrenchMajesty/yuko/utils/errs"
)

// ContentType selects how a payload is encoded
type ContentType string

const (
	ContentTypeJSON      ContentType = "application/json"
	ContentTypeMultipart ContentType = "multipart/form-data"
)

// File is one attachment of a multipart request
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Multipart is the payload of a ContentTypeMultipart request. JSON, when set, is encoded
// into the payload_json part; files are sent as files[0], files[1], ...
type Multipart struct {
	JSON   any
	Fields map[string]string
	Files  []File
}

// encodedPayload is encoded once and replayed on every attempt
type encodedPayload struct {
	body        []byte
	contentType string
}

func encodePayload(payload any, contentType ContentType) (encodedPayload, error) {
	if payload == nil {
		return encodedPayload{}, nil
	}

	switch contentType {
	case "", ContentTypeJSON:
		return encodeJSON(payload)
	case ContentTypeMultipart:
		switch p := payload.(type) {
		case Multipart:
			return encodeMultipart(&p)
		case *Multipart:
			return encodeMultipart(p)
		}
		return encodedPayload{}, fmt.Errorf("multipart payload must be a Multipart, got %T: %w", payload, errs.ErrInvalidArgument)
	default:
		return encodedPayload{}, fmt.Errorf("content type %q: %w", contentType, errs.ErrInvalidArgument)
	}
}

func encodeJSON(payload any) (encodedPayload, error) {
	var body []byte
	switch p := payload.(type) {
	case json.RawMessage:
		body = p
	case []byte:
		body = p
	default:
		encoded, err := json.Marshal(payload)
		if err != nil {
			return encodedPayload{}, fmt.Errorf("failed to encode payload: %v: %w", err, errs.ErrInvalidArgument)
		}
		body = encoded
	}

	if !json.Valid(body) {
		return encodedPayload{}, fmt.Errorf("payload is not valid JSON: %w", errs.ErrInvalidArgument)
	}
	return encodedPayload{body: body, contentType: string(ContentTypeJSON)}, nil
}

func encodeMultipart(payload *Multipart) (encodedPayload, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if payload.JSON != nil {
		encoded, err := encodeJSON(payload.JSON)
		if err != nil {
			return encodedPayload{}, err
		}
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", `form-data; name="payload_json"`)
		header.Set("Content-Type", string(ContentTypeJSON))
		part, err := writer.CreatePart(header)
		if err != nil {
			return encodedPayload{}, fmt.Errorf("failed to write payload_json: %w", err)
		}
		part.Write(encoded.body)
	}

	keys := make([]string, 0, len(payload.Fields))
	for key := range payload.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := writer.WriteField(key, payload.Fields[key]); err != nil {
			return encodedPayload{}, fmt.Errorf("failed to write field %s: %w", key, err)
		}
	}

	for i, file := range payload.Files {
		if file.Name == "" {
			return encodedPayload{}, fmt.Errorf("file %d has no name: %w", i, errs.ErrInvalidArgument)
		}
		contentType := file.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files[%d]"; filename="%s"`, i, escapeQuotes(file.Name)))
		header.Set("Content-Type", contentType)
		part, err := writer.CreatePart(header)
		if err != nil {
			return encodedPayload{}, fmt.Errorf("failed to write file %s: %w", file.Name, err)
		}
		part.Write(file.Data)
	}

	if err := writer.Close(); err != nil {
		return encodedPayload{}, fmt.Errorf("failed to close multipart body: %w", err)
	}
	return encodedPayload{body: buf.Bytes(), contentType: writer.FormDataContentType()}, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
