package render

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"github.com/John-Robertt/loonsub/internal/filter"
	"github.com/John-Robertt/loonsub/internal/model"
)

// DefaultNameSeparator joins node names when the caller does not supply a
// separator.
const DefaultNameSeparator = ", "

// NodeLines renders the [Proxy] section of a Loon config: one directive line
// per representable node, joined with "\n". Nodes whose type or obfs mode
// cannot be expressed in the format are dropped with a warning; the batch is
// never aborted by a single node. Zero surviving nodes yield "".
func NodeLines(nodes []model.Node, f filter.Filter, warn Warner) (string, error) {
	selected, err := applyFilter(nodes, f)
	if err != nil {
		return "", err
	}
	if warn == nil {
		warn = logWarner
	}

	lines := make([]string, 0, len(selected))
	for _, n := range selected {
		line, ok := loonNodeLine(n, warn)
		if !ok {
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n"), nil
}

// listableTypes is the fixed allow-list for NodeNames. It is intentionally
// its own set rather than "whatever loonNodeLine accepts": name listing only
// ever covers these seven types.
var listableTypes = map[string]struct{}{
	model.TypeSS:        {},
	model.TypeSSR:       {},
	model.TypeVMess:     {},
	model.TypeTrojan:    {},
	model.TypeHTTP:      {},
	model.TypeHTTPS:     {},
	model.TypeWireGuard: {},
}

// NodeNames renders a human-readable node-name list: restrict to the listable
// types, apply the filter, join the names. An empty sep means
// DefaultNameSeparator.
func NodeNames(nodes []model.Node, f filter.Filter, sep string) (string, error) {
	if sep == "" {
		sep = DefaultNameSeparator
	}

	listable := make([]model.Node, 0, len(nodes))
	for _, n := range nodes {
		if _, ok := listableTypes[n.Type]; ok {
			listable = append(listable, n)
		}
	}

	selected, err := applyFilter(listable, f)
	if err != nil {
		return "", err
	}

	names := make([]string, 0, len(selected))
	for _, n := range selected {
		names = append(names, n.Name)
	}
	return strings.Join(names, sep), nil
}

// loonNodeLine maps one node to its directive line. ok=false means the node
// is skipped (a warning has been emitted).
func loonNodeLine(n model.Node, warn Warner) (line string, ok bool) {
	switch n.Type {
	case model.TypeSS:
		return loonSS(n, warn)
	case model.TypeSSR:
		return loonSSR(n), true
	case model.TypeVMess:
		return loonVMess(n, warn), true
	case model.TypeTrojan:
		return loonTrojan(n, warn), true
	case model.TypeHTTPS:
		return loonHTTPS(n), true
	case model.TypeHTTP:
		return loonHTTP(n), true
	case model.TypeWireGuard:
		return loonWireGuard(n, warn)
	default:
		warn.Warn(fmt.Sprintf("跳过节点 %s：Loon 不支持节点类型 %s", n.Name, n.Type))
		return "", false
	}
}

func loonSS(n model.Node, warn Warner) (string, bool) {
	line := fmt.Sprintf("%s = Shadowsocks,%s,%d,%s,%s",
		n.Name, n.Server, n.Port, n.Cipher, quoted(n.Password))

	switch n.Obfs {
	case "":
	case "http", "tls":
		line += "," + n.Obfs + "," + firstNonEmpty(n.ObfsHost, n.Server)
	default:
		warn.Warn(fmt.Sprintf("跳过节点 %s：Loon 不支持 obfs 模式 %s", n.Name, n.Obfs))
		return "", false
	}

	if n.TFO {
		line += ",fast-open=true"
	}
	if n.UDP {
		line += ",udp=true"
	}
	return line, true
}

func loonSSR(n model.Node) string {
	line := fmt.Sprintf("%s = ShadowsocksR,%s,%d,%s,%s,protocol=%s,protocol-param=%s,obfs=%s,obfs-param=%s",
		n.Name, n.Server, n.Port, n.Cipher, quoted(n.Password),
		n.Protocol, n.ProtoParam, n.Obfs, n.ObfsParam)

	if n.TFO {
		line += ",fast-open=true"
	}
	if n.UDP {
		line += ",udp=true"
	}
	return line
}

func loonVMess(n model.Node, warn Warner) string {
	// Loon has no "auto" cipher; pin the AEAD cipher clients negotiate.
	method := n.Cipher
	if method == "auto" {
		method = "chacha20-ietf-poly1305"
	}

	line := fmt.Sprintf("%s = vmess,%s,%d,method=%s,%s,transport=%s",
		n.Name, n.Server, n.Port, method, quoted(n.UUID),
		firstNonEmpty(n.Network, "tcp"))

	if n.Network == "ws" {
		line += ",path=" + firstNonEmpty(n.Path, "/")
		line += ",host=" + firstNonEmpty(n.Host, n.Server)
		warnExtraWSHeaders(n, warn)
	}

	if n.TLS {
		line += ",over-tls=true"
		line += ",tls-name=" + firstNonEmpty(n.Host, n.Server)
		line += ",skip-cert-verify=" + strconv.FormatBool(n.SkipCertVerify)
	}
	return line
}

func loonTrojan(n model.Node, warn Warner) string {
	line := fmt.Sprintf("%s = trojan,%s,%d,%s,tls-name=%s,skip-cert-verify=%s",
		n.Name, n.Server, n.Port, quoted(n.Password),
		firstNonEmpty(n.SNI, n.Server), strconv.FormatBool(n.SkipCertVerify))

	if n.Network == "ws" {
		line += ",transport=ws,path=" + firstNonEmpty(n.WSPath, "/")
		if host := wsHeaderHost(n.WSHeaders); host != "" {
			line += ",host=" + host
		}
		warnExtraWSHeaders(n, warn)
	}

	if n.TFO {
		line += ",fast-open=true"
	}
	if n.UDP {
		line += ",udp=true"
	}
	return line
}

func loonHTTPS(n model.Node) string {
	return fmt.Sprintf("%s = https,%s,%d,%s,%s,tls-name=%s,skip-cert-verify=%s",
		n.Name, n.Server, n.Port, n.Username, quoted(n.Password),
		firstNonEmpty(n.SNI, n.Server), strconv.FormatBool(n.SkipCertVerify))
}

func loonHTTP(n model.Node) string {
	return fmt.Sprintf("%s = http,%s,%d,%s,%s",
		n.Name, n.Server, n.Port, n.Username, quoted(n.Password))
}

func loonWireGuard(n model.Node, warn Warner) (string, bool) {
	if len(n.Peers) == 0 {
		warn.Warn(fmt.Sprintf("跳过节点 %s：wireguard 节点缺少 peer", n.Name))
		return "", false
	}

	line := fmt.Sprintf("%s = wireguard,interface-ip=%s,private-key=%s",
		n.Name, n.SelfIP, quoted(n.PrivateKey))

	if n.SelfIPv6 != "" {
		line += ",interface-ipV6=" + n.SelfIPv6
	}
	if n.MTU > 0 {
		line += ",mtu=" + strconv.Itoa(n.MTU)
	}
	for _, d := range n.DNSServers {
		if isIPv4(d) {
			line += ",dns=" + d
		} else {
			line += ",dnsV6=" + d
		}
	}

	// Loon reads keepalive at the interface level; only the first peer's
	// value survives. Preserved as-is even with multiple peers.
	if ka := n.Peers[0].Keepalive; ka > 0 {
		line += ",keepalive=" + strconv.Itoa(ka)
	}

	recs := make([]string, 0, len(n.Peers))
	for _, p := range n.Peers {
		var b strings.Builder
		b.WriteString("{public-key=")
		b.WriteString(quoted(p.PublicKey))
		b.WriteString(",endpoint=")
		b.WriteString(p.Endpoint)
		if p.AllowedIPs != "" {
			b.WriteString(",allowed-ips=")
			b.WriteString(quoted(p.AllowedIPs))
		}
		if p.PresharedKey != "" {
			b.WriteString(",preshared-key=")
			b.WriteString(quoted(p.PresharedKey))
		}
		if p.Reserved != "" {
			b.WriteString(",reserved=")
			b.WriteString(quoted(p.Reserved))
		}
		b.WriteByte('}')
		recs = append(recs, b.String())
	}
	line += ",peers=[" + strings.Join(recs, ",") + "]"
	return line, true
}

// warnExtraWSHeaders reports ws headers Loon cannot carry. The node is still
// emitted; only "host" is representable.
func warnExtraWSHeaders(n model.Node, warn Warner) {
	for _, kv := range n.WSHeaders {
		if strings.EqualFold(kv.Key, "host") {
			continue
		}
		warn.Warn(fmt.Sprintf("节点 %s：Loon 不支持 ws header %s（已忽略）", n.Name, kv.Key))
	}
}

func wsHeaderHost(headers []model.KV) string {
	for _, kv := range headers {
		if strings.EqualFold(kv.Key, "host") {
			return kv.Value
		}
	}
	return ""
}

// quoted wraps a value in double quotes, escaping backslash and quote so
// that secrets with commas or quotes cannot break the line grammar.
func quoted(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// isIPv4 is a pure address-syntax test; hostnames and v6 literals both fall
// through to the dnsV6 branch.
func isIPv4(s string) bool {
	addr, err := netip.ParseAddr(s)
	return err == nil && addr.Is4()
}
