package link

import (
	"net/url"
	"strings"

	"github.com/John-Robertt/loonsub/internal/model"
)

// parseHTTPProxy handles http://[user:pass@]host[:port]#name and the https
// variant. A missing port falls back to the scheme default.
func parseHTTPProxy(sourceURL string, lineNo int, s string) (model.Node, error) {
	u, err := url.Parse(s)
	if err != nil {
		return model.Node{}, newParseError(sourceURL, lineNo, truncateSnippet(s, 200), "SUB_PARSE_ERROR", "http 代理链接解析失败", "", err)
	}

	typ := model.TypeHTTP
	defaultPort := 80
	if u.Scheme == "https" {
		typ = model.TypeHTTPS
		defaultPort = 443
	}

	host := u.Host
	server, port, err := parseHostPort(host)
	if err != nil {
		if u.Hostname() == "" {
			return model.Node{}, newParseError(sourceURL, lineNo, truncateSnippet(s, 200), "SUB_PARSE_ERROR", "服务器地址不合法", "", err)
		}
		server, port = u.Hostname(), defaultPort
	}

	n := model.Node{
		Type:   typ,
		Name:   strings.TrimSpace(u.Fragment),
		Server: server,
		Port:   port,
	}
	if u.User != nil {
		n.Username = u.User.Username()
		n.Password, _ = u.User.Password()
	}
	if typ == model.TypeHTTPS {
		q := u.Query()
		n.SNI = strings.TrimSpace(q.Get("sni"))
		n.SkipCertVerify = q.Get("allowInsecure") == "1" || q.Get("allowInsecure") == "true"
	}
	return n, nil
}
