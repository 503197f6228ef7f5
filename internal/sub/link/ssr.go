package link

import (
	"strings"

	"github.com/John-Robertt/loonsub/internal/model"
)

// parseSSR decodes ssr://b64(host:port:protocol:method:obfs:b64pass/?params)
// where obfsparam/protoparam/remarks params are themselves base64.
func parseSSR(sourceURL string, lineNo int, s string) (model.Node, error) {
	payload, err := decodeB64ToString(strings.TrimPrefix(s, "ssr://"))
	if err != nil {
		return model.Node{}, newParseError(sourceURL, lineNo, truncateSnippet(s, 200), "SUB_PARSE_ERROR", "ssr base64 解码失败", "", err)
	}

	main, query, _ := strings.Cut(payload, "/?")

	parts := strings.Split(main, ":")
	if len(parts) < 6 {
		return model.Node{}, newParseError(sourceURL, lineNo, truncateSnippet(s, 200), "SUB_PARSE_ERROR", "ssr 链接字段不足（需要 host:port:protocol:method:obfs:password）", "", nil)
	}
	// Host may itself contain ':' (IPv6); the last five fields are fixed.
	tail := parts[len(parts)-5:]
	host := strings.Join(parts[:len(parts)-5], ":")

	passB64 := tail[4]
	password, err := decodeB64ToString(passB64)
	if err != nil {
		return model.Node{}, newParseError(sourceURL, lineNo, truncateSnippet(s, 200), "SUB_PARSE_ERROR", "ssr password base64 解码失败", "", err)
	}

	hostPort := host + ":" + tail[0]
	server, port, err := parseHostPort(hostPort)
	if err != nil {
		return model.Node{}, newParseError(sourceURL, lineNo, truncateSnippet(s, 200), "SUB_PARSE_ERROR", "服务器地址或端口不合法", "", err)
	}

	n := model.Node{
		Type:     model.TypeSSR,
		Server:   server,
		Port:     port,
		Protocol: tail[1],
		Cipher:   tail[2],
		Obfs:     tail[3],
		Password: password,
	}

	for _, part := range strings.Split(query, "&") {
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		switch k {
		case "obfsparam":
			n.ObfsParam, err = decodeB64ToString(v)
		case "protoparam":
			n.ProtoParam, err = decodeB64ToString(v)
		case "remarks":
			var remarks string
			remarks, err = decodeB64ToString(v)
			n.Name = strings.TrimSpace(remarks)
		default:
			// group and other params carry no renderable information.
			continue
		}
		if err != nil {
			return model.Node{}, newParseError(sourceURL, lineNo, truncateSnippet(s, 200), "SUB_PARSE_ERROR", "ssr 参数 base64 解码失败", "param: "+k, err)
		}
	}

	return n, nil
}
