package link

import (
	"net/url"
	"strings"

	"github.com/John-Robertt/loonsub/internal/model"
)

// parseTrojan handles trojan://password@host:port?sni=&type=ws&path=&host=#name.
func parseTrojan(sourceURL string, lineNo int, s string) (model.Node, error) {
	u, err := url.Parse(s)
	if err != nil {
		return model.Node{}, newParseError(sourceURL, lineNo, truncateSnippet(s, 200), "SUB_PARSE_ERROR", "trojan 链接解析失败", "", err)
	}
	if u.User == nil || u.User.Username() == "" {
		return model.Node{}, newParseError(sourceURL, lineNo, truncateSnippet(s, 200), "SUB_PARSE_ERROR", "trojan 链接缺少 password", "", nil)
	}

	server, port, err := parseHostPort(u.Host)
	if err != nil {
		return model.Node{}, newParseError(sourceURL, lineNo, truncateSnippet(s, 200), "SUB_PARSE_ERROR", "服务器地址或端口不合法", "", err)
	}

	q := u.Query()
	n := model.Node{
		Type:           model.TypeTrojan,
		Name:           strings.TrimSpace(u.Fragment),
		Server:         server,
		Port:           port,
		Password:       u.User.Username(),
		SNI:            strings.TrimSpace(firstOf(q.Get("sni"), q.Get("peer"))),
		SkipCertVerify: q.Get("allowInsecure") == "1" || q.Get("allowInsecure") == "true",
	}

	if q.Get("type") == "ws" {
		n.Network = "ws"
		n.WSPath = strings.TrimSpace(q.Get("path"))
		if host := strings.TrimSpace(q.Get("host")); host != "" {
			n.WSHeaders = []model.KV{{Key: "Host", Value: host}}
		}
	}
	return n, nil
}
