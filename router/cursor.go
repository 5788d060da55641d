package router

import (
	"encoding/base64"
	"encoding/json"

	"github.com/gravyprompts/discovery/store"
)

// EncodeCursor wraps a store continuation key for a client as unpadded
// URL-safe base64, so the token survives a query string unescaped. A nil key gives the
// empty cursor, which means no more results.
func EncodeCursor(k store.Key) string {
	if len(k) == 0 {
		return ""
	}
	raw, err := json.Marshal(k)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCursor unwraps a cursor made by EncodeCursor. Padded and standard
// base64 are also accepted since clients often re-encode tokens. ok is false
// for an empty or malformed cursor.
func DecodeCursor(s string) (k store.Key, ok bool) {
	if s == "" {
		return nil, false
	}
	raw, err := decodeBase64(s)
	if err != nil {
		return nil, false
	}
	if err := json.Unmarshal(raw, &k); err != nil || len(k) == 0 {
		return nil, false
	}
	return k, true
}

var cursorEncodings = []*base64.Encoding{
	base64.RawURLEncoding,
	base64.URLEncoding,
	base64.StdEncoding,
	base64.RawStdEncoding,
}

func decodeBase64(s string) (raw []byte, err error) {
	for _, enc := range cursorEncodings {
		if raw, err = enc.DecodeString(s); err == nil {
			return raw, nil
		}
	}
	return nil, err
}
