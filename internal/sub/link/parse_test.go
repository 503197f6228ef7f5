package link

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/John-Robertt/loonsub/internal/model"
)

const srcURL = "https://example.com/sub.txt"

func TestParseSubscriptionText_RawMixedList(t *testing.T) {
	raw := strings.Join([]string{
		"# comment",
		"",
		"ss://YWVzLTEyOC1nY206cGFzcw==@example.com:8388#Node%201",
		"trojan://pw@example.com:443?sni=sni.example.com#T",
		"",
	}, "\n")

	nodes, err := ParseSubscriptionText(srcURL, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("len=%d, want=2", len(nodes))
	}
	if nodes[0].Type != model.TypeSS || nodes[0].Name != "Node 1" {
		t.Fatalf("node0=%+v", nodes[0])
	}
	if nodes[1].Type != model.TypeTrojan || nodes[1].SNI != "sni.example.com" {
		t.Fatalf("node1=%+v", nodes[1])
	}
}

func TestParseSubscriptionText_Base64Document(t *testing.T) {
	raw := "ss://YWVzLTEyOC1nY206cGFzcw==@example.com:8388#N\n"
	b64 := base64.StdEncoding.EncodeToString([]byte(raw))

	nodes, err := ParseSubscriptionText(srcURL, b64)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(nodes) != 1 || nodes[0].Name != "N" {
		t.Fatalf("nodes=%v", nodes)
	}
}

func TestParseSubscriptionText_Empty(t *testing.T) {
	_, err := ParseSubscriptionText(srcURL, "  \n ")
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %T: %v", err, err)
	}
	if pe.AppError.Code != "SUB_PARSE_ERROR" {
		t.Fatalf("code=%q", pe.AppError.Code)
	}
}

func TestParseSubscriptionText_UnsupportedScheme(t *testing.T) {
	_, err := ParseSubscriptionText(srcURL, "vless://whatever@example.com:443#x")
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %T: %v", err, err)
	}
	if pe.AppError.Code != "SUB_UNSUPPORTED_SCHEME" {
		t.Fatalf("code=%q, want SUB_UNSUPPORTED_SCHEME", pe.AppError.Code)
	}
	if pe.AppError.Line != 1 {
		t.Fatalf("line=%d, want 1", pe.AppError.Line)
	}
}

func TestParseSS_PluginSimpleObfs(t *testing.T) {
	raw := "ss://YWVzLTEyOC1nY206cGFzcw==@example.com:8388/?plugin=simple-obfs%3Bobfs%3Dtls%3Bobfs-host%3De.com#obfs"
	nodes, err := ParseSubscriptionText(srcURL, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n := nodes[0]
	if n.Obfs != "tls" || n.ObfsHost != "e.com" {
		t.Fatalf("obfs=%q host=%q", n.Obfs, n.ObfsHost)
	}
}

func TestParseSS_UnsupportedPlugin(t *testing.T) {
	raw := "ss://YWVzLTEyOC1nY206cGFzcw==@example.com:8388/?plugin=v2ray-plugin%3Bmode%3Dwebsocket#x"
	_, err := ParseSubscriptionText(srcURL, raw)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %T: %v", err, err)
	}
	if pe.AppError.Code != "SUB_UNSUPPORTED_PLUGIN" {
		t.Fatalf("code=%q, want SUB_UNSUPPORTED_PLUGIN", pe.AppError.Code)
	}
}

func TestParseSS_LegacyBase64Form(t *testing.T) {
	payload := base64.RawURLEncoding.EncodeToString([]byte("aes-256-gcm:secret@example.com:8388"))
	nodes, err := ParseSubscriptionText(srcURL, "ss://"+payload+"#legacy")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n := nodes[0]
	if n.Cipher != "aes-256-gcm" || n.Password != "secret" || n.Port != 8388 {
		t.Fatalf("node=%+v", n)
	}
}

func TestParseSSR(t *testing.T) {
	passB64 := base64.RawURLEncoding.EncodeToString([]byte("pass"))
	obfsParam := base64.RawURLEncoding.EncodeToString([]byte("e.com"))
	remarks := base64.RawURLEncoding.EncodeToString([]byte("SSR Node"))
	payload := "example.com:8388:auth_aes128_md5:aes-128-ctr:tls1.2_ticket_auth:" + passB64 +
		"/?obfsparam=" + obfsParam + "&remarks=" + remarks
	link := "ssr://" + base64.RawURLEncoding.EncodeToString([]byte(payload))

	nodes, err := ParseSubscriptionText(srcURL, link)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n := nodes[0]
	if n.Type != model.TypeSSR || n.Name != "SSR Node" {
		t.Fatalf("node=%+v", n)
	}
	if n.Protocol != "auth_aes128_md5" || n.Cipher != "aes-128-ctr" || n.Obfs != "tls1.2_ticket_auth" {
		t.Fatalf("protocol fields wrong: %+v", n)
	}
	if n.Password != "pass" || n.ObfsParam != "e.com" {
		t.Fatalf("decoded params wrong: %+v", n)
	}
}

func TestParseVMess(t *testing.T) {
	body, _ := json.Marshal(map[string]any{
		"v": "2", "ps": "VM", "add": "example.com", "port": "443",
		"id": "11111111-2222-3333-4444-555555555555", "scy": "auto",
		"net": "ws", "host": "cdn.example.com", "path": "/ws", "tls": "tls",
	})
	link := "vmess://" + base64.StdEncoding.EncodeToString(body)

	nodes, err := ParseSubscriptionText(srcURL, link)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n := nodes[0]
	if n.Type != model.TypeVMess || n.Name != "VM" || n.Port != 443 {
		t.Fatalf("node=%+v", n)
	}
	if n.Network != "ws" || n.Path != "/ws" || n.Host != "cdn.example.com" || !n.TLS {
		t.Fatalf("transport fields wrong: %+v", n)
	}
}

func TestParseVMess_NumericPortAndBadUUID(t *testing.T) {
	body, _ := json.Marshal(map[string]any{
		"ps": "VM", "add": "example.com", "port": 8443,
		"id": "11111111-2222-3333-4444-555555555555",
	})
	nodes, err := ParseSubscriptionText(srcURL, "vmess://"+base64.StdEncoding.EncodeToString(body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if nodes[0].Port != 8443 || nodes[0].Cipher != "auto" {
		t.Fatalf("node=%+v", nodes[0])
	}

	bad, _ := json.Marshal(map[string]any{"ps": "x", "add": "e.com", "port": 1, "id": "not-a-uuid"})
	_, err = ParseSubscriptionText(srcURL, "vmess://"+base64.StdEncoding.EncodeToString(bad))
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError for bad uuid, got %T: %v", err, err)
	}
}

func TestParseTrojan_WS(t *testing.T) {
	link := "trojan://pw@example.com:443?sni=s.example.com&allowInsecure=1&type=ws&path=%2Ft&host=ws.example.com#T%20J"
	nodes, err := ParseSubscriptionText(srcURL, link)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n := nodes[0]
	if n.Name != "T J" || n.Password != "pw" || !n.SkipCertVerify {
		t.Fatalf("node=%+v", n)
	}
	if n.Network != "ws" || n.WSPath != "/t" {
		t.Fatalf("ws fields wrong: %+v", n)
	}
	if len(n.WSHeaders) != 1 || n.WSHeaders[0].Value != "ws.example.com" {
		t.Fatalf("ws headers wrong: %+v", n.WSHeaders)
	}
}

func TestParseHTTPProxy(t *testing.T) {
	nodes, err := ParseSubscriptionText(srcURL, strings.Join([]string{
		"http://user:pw@example.com:8080#H",
		"https://example.com#S",
	}, "\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h, s := nodes[0], nodes[1]
	if h.Type != model.TypeHTTP || h.Username != "user" || h.Password != "pw" || h.Port != 8080 {
		t.Fatalf("http node=%+v", h)
	}
	if s.Type != model.TypeHTTPS || s.Port != 443 {
		t.Fatalf("https node=%+v", s)
	}
}

func TestParseWireGuard(t *testing.T) {
	link := "wg://e.example.com:51820?privateKey=priv&publicKey=pub&ip=10.0.0.2&ipv6=fd00::2" +
		"&mtu=1420&dns=1.1.1.1,2606:4700:4700::1111&presharedKey=psk&allowedIPs=0.0.0.0/0&reserved=1,2,3&keepalive=25#WG"
	nodes, err := ParseSubscriptionText(srcURL, link)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n := nodes[0]
	if n.Type != model.TypeWireGuard || n.SelfIP != "10.0.0.2" || n.SelfIPv6 != "fd00::2" || n.MTU != 1420 {
		t.Fatalf("node=%+v", n)
	}
	if len(n.DNSServers) != 2 {
		t.Fatalf("dns=%v", n.DNSServers)
	}
	if len(n.Peers) != 1 {
		t.Fatalf("peers=%v", n.Peers)
	}
	p := n.Peers[0]
	if p.Endpoint != "e.example.com:51820" || p.PublicKey != "pub" || p.PresharedKey != "psk" ||
		p.AllowedIPs != "0.0.0.0/0" || p.Reserved != "1,2,3" || p.Keepalive != 25 {
		t.Fatalf("peer=%+v", p)
	}
}

func TestParseWireGuard_MissingKeys(t *testing.T) {
	_, err := ParseSubscriptionText(srcURL, "wg://e.example.com:51820?ip=10.0.0.2#x")
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %T: %v", err, err)
	}
}
