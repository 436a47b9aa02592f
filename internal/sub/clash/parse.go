// Package clash reads the proxies section of a Clash configuration.
package clash

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/John-Robertt/submerge/internal/model"
)

type ParseError struct {
	AppError model.AppError
	Cause    error
}

func (e *ParseError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

type document struct {
	Proxies []yaml.Node `yaml:"proxies"`
}

// LooksLikeConfig reports whether text has a top-level "proxies:" key.
func LooksLikeConfig(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimRight(line, " \t\r"), "proxies:") {
			return true
		}
	}
	return false
}

// ParseProxies decodes every mapping entry under "proxies". Entries that are
// not mappings are skipped. An empty or missing list is an error.
func ParseProxies(sourceURL string, data []byte) ([]model.Node, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, newParseError(sourceURL, "CLASH_YAML_ERROR", "Clash 配置 YAML 解析失败", err)
	}

	out := make([]model.Node, 0, len(doc.Proxies))
	var errs []error
	for i := range doc.Proxies {
		var n model.Node
		if err := doc.Proxies[i].Decode(&n); err != nil {
			errs = append(errs, err)
			continue
		}
		if n.Len() == 0 {
			continue
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, newParseError(sourceURL, "SUB_PARSE_ERROR", "Clash 配置中没有任何可用节点", errors.Join(errs...))
	}
	return out, nil
}

func newParseError(sourceURL, code, message string, cause error) error {
	return &ParseError{
		AppError: model.AppError{
			Code:    code,
			Message: message,
			Stage:   "parse_clash",
			URL:     sourceURL,
		},
		Cause: cause,
	}
}
