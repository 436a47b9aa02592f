package ss

import (
	"encoding/base64"
	"errors"
	"net"
	"strconv"
	"strings"
	"unicode/utf8"
)

// encodings are tried in order; providers mix padded, unpadded and
// URL-safe alphabets freely.
var encodings = []*base64.Encoding{
	base64.StdEncoding,
	base64.URLEncoding,
	base64.RawStdEncoding,
	base64.RawURLEncoding,
}

// decodeBase64Text decodes s with any of the common alphabets, ignoring
// embedded whitespace, and requires the result to be UTF-8.
func decodeBase64Text(s string) (string, error) {
	s = strings.Join(strings.Fields(s), "")
	var err error
	for _, enc := range encodings {
		var b []byte
		if b, err = enc.DecodeString(s); err == nil {
			if !utf8.Valid(b) {
				return "", errors.New("decoded text is not valid utf-8")
			}
			return string(b), nil
		}
	}
	return "", err
}

// splitCredentials splits "method:password". The password may contain ':'.
func splitCredentials(s string) (method, password string, err error) {
	method, password, ok := strings.Cut(s, ":")
	if !ok {
		return "", "", errors.New("missing ':' between method and password")
	}
	method = strings.TrimSpace(method)
	password = strings.TrimSpace(password)
	switch {
	case method == "" || password == "":
		return "", "", errors.New("empty method or password")
	case strings.ContainsAny(method+password, "\r\n\x00"):
		return "", "", errors.New("control character in method or password")
	}
	return method, password, nil
}

func splitHostPort(s string) (string, int, error) {
	host, p, err := net.SplitHostPort(s)
	if err != nil {
		return "", 0, err
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return "", 0, errors.New("empty host")
	}
	port, err := strconv.Atoi(strings.TrimSpace(p))
	if err != nil {
		return "", 0, err
	}
	if port < 1 || port > 65535 {
		return "", 0, errors.New("port out of range")
	}
	return host, port, nil
}
