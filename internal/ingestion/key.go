package ingestion

import (
	"net/url"
	"strings"

	apperrors "sheetload/internal/errors"
)

// DecodeKey undoes the URL encoding object keys carry in storage event
// notifications ("+" for space, %XX escapes)
func DecodeKey(raw string) (string, error) {
	key, err := url.QueryUnescape(raw)
	if err != nil {
		return "", apperrors.NewAppError(apperrors.ErrTypeMalformedKey, "key is not valid URL encoding", err).
			WithContext("key", raw)
	}
	return key, nil
}

// ParseLabel splits a key of the form label/filename. The label is the first
// path segment; everything after the first separator is the file name.
func ParseLabel(key string) (label, fileName string, err error) {
	label, fileName, found := strings.Cut(key, "/")
	if !found || label == "" || fileName == "" || strings.HasSuffix(fileName, "/") {
		return "", "", apperrors.NewMalformedKeyError(key)
	}
	return label, fileName, nil
}

// OutputKey returns label/name
func OutputKey(label, name string) string {
	return label + "/" + name
}
