// Package ss decodes Shadowsocks share links (SIP002 and the legacy
// all-base64 form) from raw or base64 subscription text.
package ss

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/John-Robertt/submerge/internal/model"
)

const (
	codeParse  = "SUB_PARSE_ERROR"
	codeBase64 = "SUB_BASE64_DECODE_ERROR"
	stage      = "parse_sub"
	maxSnippet = 200
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

func textError(sourceURL, code, message, snippet string, cause error) error {
	return &ParseError{
		AppError: model.AppError{Code: code, Message: message, Stage: stage, URL: sourceURL, Snippet: snippet},
		Cause:    cause,
	}
}

// Parse decodes every ss:// link in content, which is either a plain list
// or its base64 encoding.
//
// Other schemes and malformed ss:// lines are skipped. An error is returned
// only when no link survives: the first line error if there was one.
func Parse(sourceURL, content string) ([]Link, error) {
	text := strings.TrimSpace(strings.TrimPrefix(content, "\uFEFF"))
	if text == "" {
		return nil, textError(sourceURL, codeParse, "订阅内容为空", "", nil)
	}

	if !strings.Contains(text, "://") {
		decoded, err := decodeBase64Text(text)
		if err != nil {
			return nil, textError(sourceURL, codeBase64, "订阅 base64 解码失败", snippet(text), err)
		}
		text = strings.TrimSpace(strings.TrimPrefix(decoded, "\uFEFF"))
		if text == "" {
			return nil, textError(sourceURL, codeParse, "订阅内容为空", "", nil)
		}
	}

	var (
		links    []Link
		firstErr error
	)
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "ss://") {
			continue
		}
		lp := lineParser{url: sourceURL, no: i + 1, text: line}
		l, err := lp.parse()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		links = append(links, l)
	}
	if len(links) == 0 {
		if firstErr != nil {
			return nil, firstErr
		}
		return nil, textError(sourceURL, codeParse, "订阅中没有任何 ss 节点", "", nil)
	}
	return links, nil
}

// lineParser decodes one ss:// line and reports errors with its position.
type lineParser struct {
	url  string
	no   int
	text string
}

func (p lineParser) fail(message string, cause error) error {
	return &ParseError{
		AppError: model.AppError{
			Code:    codeParse,
			Message: message,
			Stage:   stage,
			URL:     p.url,
			Line:    p.no,
			Snippet: snippet(p.text),
		},
		Cause: cause,
	}
}

func (p lineParser) parse() (Link, error) {
	rest, fragment, _ := strings.Cut(strings.TrimPrefix(p.text, "ss://"), "#")
	rest, query, _ := strings.Cut(rest, "?")

	l := Link{Type: "ss"}
	if fragment != "" {
		name, err := url.PathUnescape(fragment)
		if err != nil {
			return Link{}, p.fail("节点名称 URL 解码失败", err)
		}
		l.Name = strings.TrimSpace(name)
		if strings.ContainsAny(l.Name, "\r\n\x00") {
			return Link{}, p.fail("节点名称包含非法控制字符", nil)
		}
	}

	var err error
	if l.PluginName, l.PluginOpts, err = p.plugin(query); err != nil {
		return Link{}, err
	}
	if rest == "" {
		return Link{}, p.fail("ss:// 后缺少内容", nil)
	}

	var creds, hostPort string
	if userinfo, host, ok := strings.Cut(rest, "@"); ok {
		// SIP002: base64(method:password)@host:port[/]
		if userinfo == "" || host == "" {
			return Link{}, p.fail("ss uri 格式不合法", nil)
		}
		if h, path, ok := strings.Cut(host, "/"); ok {
			if path != "" {
				return Link{}, p.fail("ss uri path 不支持（仅允许空或 /）", nil)
			}
			host = h
		}
		if creds, err = decodeBase64Text(userinfo); err != nil {
			return Link{}, p.fail("ss userinfo base64 解码失败", err)
		}
		hostPort = host
	} else {
		// Legacy: base64(method:password@host:port)
		decoded, err := decodeBase64Text(rest)
		if err != nil {
			return Link{}, p.fail("ss base64 解码失败", err)
		}
		at := strings.LastIndex(decoded, "@")
		if at < 0 {
			return Link{}, p.fail("ss base64 解码结果缺少 @ 分隔符", nil)
		}
		creds, hostPort = decoded[:at], decoded[at+1:]
	}

	if l.Cipher, l.Password, err = splitCredentials(creds); err != nil {
		return Link{}, p.fail("cipher 或 password 不合法", err)
	}
	if l.Server, l.Port, err = splitHostPort(hostPort); err != nil {
		return Link{}, p.fail("服务器地址或端口不合法", err)
	}
	return l, nil
}

// plugin extracts the SIP003 "plugin" parameter ("name;k=v;k=v"). The query
// is split by hand because url.ParseQuery rejects the raw ';' some
// providers emit. Parameters other than plugin are ignored.
func (p lineParser) plugin(query string) (string, []PluginOpt, error) {
	var value string
	found := false
	for _, part := range strings.Split(query, "&") {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		key, err := url.PathUnescape(k)
		if err != nil {
			return "", nil, p.fail("query 参数解码失败", err)
		}
		if key != "plugin" {
			continue
		}
		if found {
			return "", nil, p.fail("重复的 plugin 参数", nil)
		}
		if value, err = url.PathUnescape(v); err != nil {
			return "", nil, p.fail("query 参数解码失败", err)
		}
		found = true
	}
	if !found {
		return "", nil, nil
	}

	segs := strings.Split(value, ";")
	name := strings.TrimSpace(segs[0])
	if name == "" {
		return "", nil, p.fail("plugin 名称不能为空", nil)
	}
	var opts []PluginOpt
	for _, seg := range segs[1:] {
		if seg == "" {
			continue
		}
		k, v, ok := strings.Cut(seg, "=")
		if k = strings.TrimSpace(k); !ok || k == "" {
			return "", nil, p.fail("plugin 选项必须是 k=v 形式", nil)
		}
		opts = append(opts, PluginOpt{Key: k, Value: v})
	}
	return name, opts, nil
}

func snippet(s string) string {
	s = strings.NewReplacer("\r", "", "\n", "").Replace(s)
	if len(s) > maxSnippet {
		return s[:maxSnippet]
	}
	return s
}

