package link

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/John-Robertt/loonsub/internal/model"
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

// ParseSubscriptionText parses one subscription document into nodes.
//
// Auto-detect rule: a document containing "://" is a raw link list; anything
// else is treated as base64 and decoded first.
func ParseSubscriptionText(sourceURL string, content string) ([]model.Node, error) {
	s := stripUTF8BOM(content)
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, newParseError(sourceURL, 0, "", "SUB_PARSE_ERROR", "订阅内容为空", "", nil)
	}

	if strings.Contains(s, "://") {
		return parseRawList(sourceURL, s)
	}

	decoded, err := decodeSubscriptionBase64(s)
	if err != nil {
		return nil, newParseError(sourceURL, 0, truncateSnippet(s, 200), "SUB_BASE64_DECODE_ERROR", "订阅 base64 解码失败", "", err)
	}
	decoded = strings.TrimSpace(stripUTF8BOM(decoded))
	if decoded == "" {
		return nil, newParseError(sourceURL, 0, "", "SUB_PARSE_ERROR", "订阅内容为空", "", nil)
	}
	return parseRawList(sourceURL, decoded)
}

func parseRawList(sourceURL, raw string) ([]model.Node, error) {
	// \n split + trailing \r trim keeps CRLF inputs working.
	lines := strings.Split(raw, "\n")
	out := make([]model.Node, 0, len(lines))
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		n, err := parseLink(sourceURL, i+1, line)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, newParseError(sourceURL, 0, "", "SUB_PARSE_ERROR", "订阅中没有任何可用节点", "", nil)
	}
	return out, nil
}

func parseLink(sourceURL string, lineNo int, line string) (model.Node, error) {
	scheme, _, ok := strings.Cut(line, "://")
	if !ok {
		return model.Node{}, newParseError(sourceURL, lineNo, truncateSnippet(line, 200), "SUB_PARSE_ERROR", "链接缺少 scheme", "expected: <scheme>://...", nil)
	}
	switch scheme {
	case "ss":
		return parseSS(sourceURL, lineNo, line)
	case "ssr":
		return parseSSR(sourceURL, lineNo, line)
	case "vmess":
		return parseVMess(sourceURL, lineNo, line)
	case "trojan":
		return parseTrojan(sourceURL, lineNo, line)
	case "http", "https":
		return parseHTTPProxy(sourceURL, lineNo, line)
	case "wg", "wireguard":
		return parseWireGuard(sourceURL, lineNo, line)
	default:
		return model.Node{}, newParseError(sourceURL, lineNo, truncateSnippet(line, 200), "SUB_UNSUPPORTED_SCHEME", fmt.Sprintf("不支持的链接协议：%s", scheme), "supported: ss/ssr/vmess/trojan/http/https/wg", nil)
	}
}

// cutFragmentName splits off the #fragment and percent-decodes it into the
// node name. Every link scheme here uses the fragment the same way.
func cutFragmentName(sourceURL string, lineNo int, s string) (rest string, name string, err error) {
	rest, frag, hasFrag := strings.Cut(s, "#")
	if !hasFrag {
		return rest, "", nil
	}
	decoded, err := url.PathUnescape(frag)
	if err != nil {
		return "", "", newParseError(sourceURL, lineNo, truncateSnippet(s, 200), "SUB_PARSE_ERROR", "节点名称 URL 解码失败", "", err)
	}
	name = strings.TrimSpace(decoded)
	if strings.ContainsAny(name, "\r\n\x00") {
		return "", "", newParseError(sourceURL, lineNo, truncateSnippet(s, 200), "SUB_PARSE_ERROR", "节点名称包含非法控制字符", "forbidden: \\r \\n \\0", nil)
	}
	return rest, name, nil
}

func parseHostPort(s string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return "", 0, err
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return "", 0, errors.New("empty host")
	}
	port, err := strconv.Atoi(strings.TrimSpace(portStr))
	if err != nil {
		return "", 0, err
	}
	if port < 1 || port > 65535 {
		return "", 0, errors.New("port out of range")
	}
	return host, port, nil
}

func decodeSubscriptionBase64(s string) (string, error) {
	b, err := decodeB64ToBytes(removeSpaceTabCRLF(s))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", errors.New("decoded subscription is not valid utf-8")
	}
	return string(b), nil
}

func decodeB64ToString(s string) (string, error) {
	b, err := decodeB64ToBytes(s)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", errors.New("decoded value is not valid utf-8")
	}
	return string(b), nil
}

func decodeB64ToBytes(s string) ([]byte, error) {
	// Subscriptions mix alphabets and padding styles freely; try them all.
	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.RawURLEncoding,
	}
	var lastErr error
	for _, enc := range encodings {
		b, err := enc.DecodeString(s)
		if err == nil {
			return b, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func removeSpaceTabCRLF(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\r', '\n':
			continue
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func stripUTF8BOM(s string) string {
	return strings.TrimPrefix(s, "\uFEFF")
}

func truncateSnippet(s string, max int) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func newParseError(sourceURL string, lineNo int, snippet string, code string, message string, hint string, cause error) error {
	return &ParseError{
		AppError: model.AppError{
			Code:    code,
			Message: message,
			Stage:   "parse_sub",
			URL:     sourceURL,
			Line:    lineNo,
			Snippet: snippet,
			Hint:    hint,
		},
		Cause: cause,
	}
}
