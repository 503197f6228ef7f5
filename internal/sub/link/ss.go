package link

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/John-Robertt/loonsub/internal/model"
)

// parseSS handles both SIP002 (b64(method:password)@host:port) and the
// legacy fully-base64 form. The simple-obfs plugin collapses into the
// node's Obfs/ObfsHost fields.
func parseSS(sourceURL string, lineNo int, s string) (model.Node, error) {
	withoutFrag, name, err := cutFragmentName(sourceURL, lineNo, s)
	if err != nil {
		return model.Node{}, err
	}

	withoutQuery, query, hasQuery := strings.Cut(withoutFrag, "?")
	obfs, obfsHost, err := parseSSPluginQuery(sourceURL, lineNo, query, hasQuery, s)
	if err != nil {
		return model.Node{}, err
	}

	rest := strings.TrimPrefix(withoutQuery, "ss://")
	if rest == "" {
		return model.Node{}, newParseError(sourceURL, lineNo, truncateSnippet(s, 200), "SUB_PARSE_ERROR", "ss:// 后缺少内容", "", nil)
	}

	n := model.Node{Type: model.TypeSS, Name: name, Obfs: obfs, ObfsHost: obfsHost}

	if strings.Contains(rest, "@") {
		// SIP002 form.
		userB64, hostPart, _ := strings.Cut(rest, "@")
		if userB64 == "" || hostPart == "" {
			return model.Node{}, newParseError(sourceURL, lineNo, truncateSnippet(s, 200), "SUB_PARSE_ERROR", "ss uri 格式不合法", "", nil)
		}
		hostPart = strings.TrimSuffix(hostPart, "/")

		cred, err := decodeB64ToString(userB64)
		if err != nil {
			return model.Node{}, newParseError(sourceURL, lineNo, truncateSnippet(s, 200), "SUB_PARSE_ERROR", "ss userinfo base64 解码失败", "", err)
		}
		n.Cipher, n.Password, err = splitMethodPassword(cred)
		if err != nil {
			return model.Node{}, newParseError(sourceURL, lineNo, truncateSnippet(s, 200), "SUB_PARSE_ERROR", "cipher 或 password 不合法", "", err)
		}

		n.Server, n.Port, err = parseHostPort(hostPart)
		if err != nil {
			return model.Node{}, newParseError(sourceURL, lineNo, truncateSnippet(s, 200), "SUB_PARSE_ERROR", "服务器地址或端口不合法", "", err)
		}
		return n, nil
	}

	// Legacy form: ss://b64(method:password@host:port)
	decoded, err := decodeB64ToString(rest)
	if err != nil {
		return model.Node{}, newParseError(sourceURL, lineNo, truncateSnippet(s, 200), "SUB_PARSE_ERROR", "ss base64 解码失败", "", err)
	}
	at := strings.LastIndex(decoded, "@")
	if at < 0 {
		return model.Node{}, newParseError(sourceURL, lineNo, truncateSnippet(s, 200), "SUB_PARSE_ERROR", "ss base64 解码结果缺少 @ 分隔符", "", nil)
	}
	n.Cipher, n.Password, err = splitMethodPassword(decoded[:at])
	if err != nil {
		return model.Node{}, newParseError(sourceURL, lineNo, truncateSnippet(s, 200), "SUB_PARSE_ERROR", "cipher 或 password 不合法", "", err)
	}
	n.Server, n.Port, err = parseHostPort(decoded[at+1:])
	if err != nil {
		return model.Node{}, newParseError(sourceURL, lineNo, truncateSnippet(s, 200), "SUB_PARSE_ERROR", "服务器地址或端口不合法", "", err)
	}
	return n, nil
}

func splitMethodPassword(cred string) (string, string, error) {
	colon := strings.IndexByte(cred, ':')
	if colon <= 0 {
		return "", "", errors.New("missing ':'")
	}
	method := strings.TrimSpace(cred[:colon])
	password := strings.TrimSpace(cred[colon+1:])
	if method == "" || password == "" {
		return "", "", errors.New("empty method or password")
	}
	if strings.ContainsAny(method, "\r\n\x00") || strings.ContainsAny(password, "\r\n\x00") {
		return "", "", errors.New("control chars in method/password")
	}
	return method, password, nil
}

// parseSSPluginQuery extracts the SIP003 plugin parameter. Only simple-obfs
// (and its obfs-local alias) map onto the Loon model; other plugins are a
// parse error because the node would silently lose its transport.
func parseSSPluginQuery(sourceURL string, lineNo int, query string, hasQuery bool, fullLine string) (obfs string, obfsHost string, err error) {
	if !hasQuery || query == "" {
		return "", "", nil
	}

	// SIP002 plugin values carry raw semicolons, which net/url.ParseQuery
	// rejects; split on '&' by hand.
	var pluginValue string
	for _, part := range strings.Split(query, "&") {
		if part == "" {
			continue
		}
		kRaw, vRaw, hasEq := strings.Cut(part, "=")
		if !hasEq {
			return "", "", newParseError(sourceURL, lineNo, truncateSnippet(fullLine, 200), "SUB_PARSE_ERROR", "query 参数必须是 key=value 形式", "", nil)
		}
		k, kerr := url.PathUnescape(kRaw)
		v, verr := url.PathUnescape(vRaw)
		if kerr != nil || verr != nil {
			return "", "", newParseError(sourceURL, lineNo, truncateSnippet(fullLine, 200), "SUB_PARSE_ERROR", "query 参数解码失败", "", errors.Join(kerr, verr))
		}
		if k != "plugin" {
			return "", "", newParseError(sourceURL, lineNo, truncateSnippet(fullLine, 200), "SUB_PARSE_ERROR", "出现未知 query 参数（仅支持 plugin）", "only allow: plugin", nil)
		}
		if pluginValue != "" {
			return "", "", newParseError(sourceURL, lineNo, truncateSnippet(fullLine, 200), "SUB_PARSE_ERROR", "重复的 plugin 参数", "", nil)
		}
		pluginValue = v
	}
	if strings.TrimSpace(pluginValue) == "" {
		return "", "", nil
	}

	segs := strings.Split(pluginValue, ";")
	pluginName := strings.TrimSpace(segs[0])
	if pluginName != "simple-obfs" && pluginName != "obfs-local" {
		return "", "", newParseError(sourceURL, lineNo, truncateSnippet(fullLine, 200), "SUB_UNSUPPORTED_PLUGIN", fmt.Sprintf("不支持的 SS plugin：%s", pluginName), "supported: simple-obfs/obfs-local", nil)
	}
	for _, seg := range segs[1:] {
		if seg == "" {
			continue
		}
		k, v, ok := strings.Cut(seg, "=")
		if !ok {
			return "", "", newParseError(sourceURL, lineNo, truncateSnippet(fullLine, 200), "SUB_PARSE_ERROR", "plugin 选项必须是 k=v 形式", "", nil)
		}
		switch strings.TrimSpace(k) {
		case "obfs":
			obfs = strings.TrimSpace(v)
		case "obfs-host":
			obfsHost = strings.TrimSpace(v)
		}
	}
	if obfs == "" {
		return "", "", newParseError(sourceURL, lineNo, truncateSnippet(fullLine, 200), "SUB_PARSE_ERROR", "simple-obfs 缺少必需选项 obfs=<mode>", "example: ?plugin=simple-obfs;obfs=tls;obfs-host=example.com", nil)
	}
	return obfs, obfsHost, nil
}
