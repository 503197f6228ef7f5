package model

type KV struct {
	Key   string
	Value string
}

// Node types understood by the pipeline. Renderers may support fewer.
const (
	TypeSS        = "ss"
	TypeSSR       = "ssr"
	TypeVMess     = "vmess"
	TypeTrojan    = "trojan"
	TypeHTTP      = "http"
	TypeHTTPS     = "https"
	TypeWireGuard = "wireguard"
)

// Node is the protocol-tagged node representation used across the pipeline.
// Only the fields relevant to Node.Type are meaningful; the rest stay zero.
//
// Nodes are built by the sub/link parsers, cleaned up by normalize, and read
// (never mutated) by the renderers.
type Node struct {
	Type string

	// Name comes from the subscription fragment/remark. It may be empty and
	// is not guaranteed unique; normalize assigns the final name.
	Name string

	Server string
	Port   int

	// ss / ssr
	Cipher   string
	Password string // also trojan / http / https

	// ss simple-obfs
	Obfs     string // "http" | "tls" (anything else is unrepresentable in Loon)
	ObfsHost string

	// ssr
	Protocol   string
	ProtoParam string
	ObfsParam  string

	// vmess
	UUID string

	// vmess / trojan transport
	Network   string // "" (tcp) | "ws"
	Path      string // vmess ws path
	WSPath    string // trojan ws path
	Host      string // vmess ws host
	WSHeaders []KV   // ordered; renderers only honor the "host" header

	TLS            bool
	SkipCertVerify bool
	SNI            string // trojan / https

	// http / https
	Username string

	TFO bool
	UDP bool

	// wireguard
	SelfIP     string
	SelfIPv6   string
	PrivateKey string
	MTU        int
	DNSServers []string // mixed v4/v6, order matters
	Peers      []Peer
}

// Peer is one WireGuard peer entry. AllowedIPs and Reserved are kept as the
// already-joined comma lists because they are emitted as single quoted
// values.
type Peer struct {
	PublicKey    string
	Endpoint     string // host:port
	AllowedIPs   string
	PresharedKey string
	Reserved     string
	Keepalive    int // seconds; 0 means unset
}
