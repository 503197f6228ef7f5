package link

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/John-Robertt/loonsub/internal/model"
)

// parseWireGuard handles the query-parameter share form:
//
//	wg://host:port?privateKey=...&publicKey=...&ip=10.0.0.2[&ipv6=...]
//	  [&mtu=1420][&dns=1.1.1.1,2606:4700:4700::1111][&presharedKey=...]
//	  [&allowedIPs=0.0.0.0/0,::/0][&reserved=1,2,3][&keepalive=25]#name
//
// The endpoint in the authority becomes the single peer.
func parseWireGuard(sourceURL string, lineNo int, s string) (model.Node, error) {
	u, err := url.Parse(s)
	if err != nil {
		return model.Node{}, newParseError(sourceURL, lineNo, truncateSnippet(s, 200), "SUB_PARSE_ERROR", "wireguard 链接解析失败", "", err)
	}

	endpointHost, endpointPort, err := parseHostPort(u.Host)
	if err != nil {
		return model.Node{}, newParseError(sourceURL, lineNo, truncateSnippet(s, 200), "SUB_PARSE_ERROR", "wireguard endpoint 不合法", "", err)
	}

	q := u.Query()
	privateKey := strings.TrimSpace(firstOf(q.Get("privateKey"), q.Get("private-key"), q.Get("pk")))
	publicKey := strings.TrimSpace(firstOf(q.Get("publicKey"), q.Get("public-key"), q.Get("pub")))
	selfIP := strings.TrimSpace(firstOf(q.Get("ip"), q.Get("address")))
	if privateKey == "" || publicKey == "" || selfIP == "" {
		return model.Node{}, newParseError(sourceURL, lineNo, truncateSnippet(s, 200), "SUB_PARSE_ERROR", "wireguard 链接缺少 privateKey/publicKey/ip", "", nil)
	}

	n := model.Node{
		Type:       model.TypeWireGuard,
		Name:       strings.TrimSpace(u.Fragment),
		SelfIP:     selfIP,
		SelfIPv6:   strings.TrimSpace(q.Get("ipv6")),
		PrivateKey: privateKey,
	}

	if mtuStr := q.Get("mtu"); mtuStr != "" {
		mtu, err := strconv.Atoi(mtuStr)
		if err != nil || mtu <= 0 {
			return model.Node{}, newParseError(sourceURL, lineNo, truncateSnippet(s, 200), "SUB_PARSE_ERROR", "wireguard mtu 不合法", "", err)
		}
		n.MTU = mtu
	}
	if dns := strings.TrimSpace(q.Get("dns")); dns != "" {
		for _, d := range strings.Split(dns, ",") {
			if d = strings.TrimSpace(d); d != "" {
				n.DNSServers = append(n.DNSServers, d)
			}
		}
	}

	peer := model.Peer{
		PublicKey:    publicKey,
		Endpoint:     endpointHost + ":" + strconv.Itoa(endpointPort),
		AllowedIPs:   strings.TrimSpace(firstOf(q.Get("allowedIPs"), q.Get("allowed-ips"))),
		PresharedKey: strings.TrimSpace(firstOf(q.Get("presharedKey"), q.Get("preshared-key"))),
		Reserved:     strings.TrimSpace(q.Get("reserved")),
	}
	if kaStr := q.Get("keepalive"); kaStr != "" {
		ka, err := strconv.Atoi(kaStr)
		if err != nil || ka < 0 {
			return model.Node{}, newParseError(sourceURL, lineNo, truncateSnippet(s, 200), "SUB_PARSE_ERROR", "wireguard keepalive 不合法", "", err)
		}
		peer.Keepalive = ka
	}
	n.Peers = []model.Peer{peer}
	return n, nil
}
