package normalize

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/John-Robertt/loonsub/internal/model"
)

type NormalizeError struct {
	AppError model.AppError
	Cause    error
}

func (e *NormalizeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *NormalizeError) Unwrap() error { return e.Cause }

// Nodes applies the determinism rules to parsed subscription nodes:
// field cleanup + validation, dedup (first occurrence wins in merge order),
// deterministic unique naming, then a stable sort by final name.
//
// A node that fails validation aborts the whole batch: a malformed node at
// this stage means the upstream parser is broken, not the subscription.
func Nodes(in []model.Node) ([]model.Node, error) {
	cleaned := make([]model.Node, 0, len(in))
	for _, n := range in {
		n2, err := cleanNode(n)
		if err != nil {
			return nil, &NormalizeError{
				AppError: model.AppError{
					Code:    "NODE_VALIDATE_ERROR",
					Message: "节点字段不合法",
					Stage:   "normalize",
					Snippet: n.Name,
				},
				Cause: err,
			}
		}
		cleaned = append(cleaned, n2)
	}

	seen := make(map[string]struct{}, len(cleaned))
	deduped := make([]model.Node, 0, len(cleaned))
	for _, n := range cleaned {
		key := dedupKey(n)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		deduped = append(deduped, n)
	}

	assignNames(deduped)

	sort.Slice(deduped, func(i, j int) bool {
		return deduped[i].Name < deduped[j].Name
	})
	return deduped, nil
}

func cleanNode(n model.Node) (model.Node, error) {
	n.Name = sanitizeName(n.Name)
	if strings.ContainsAny(n.Name, "\r\n\x00") {
		return model.Node{}, errors.New("node name contains control chars")
	}

	if n.Type != model.TypeWireGuard {
		n.Server = strings.ToLower(strings.TrimSpace(n.Server))
		if n.Server == "" {
			return model.Node{}, errors.New("empty server")
		}
		if n.Port < 1 || n.Port > 65535 {
			return model.Node{}, errors.New("port out of range")
		}
	}

	switch n.Type {
	case model.TypeSS:
		n.Cipher = strings.ToLower(strings.TrimSpace(n.Cipher))
		if n.Cipher == "" || n.Password == "" {
			return model.Node{}, errors.New("ss requires cipher and password")
		}
		n.Obfs = strings.TrimSpace(n.Obfs)
		n.ObfsHost = strings.TrimSpace(n.ObfsHost)
	case model.TypeSSR:
		n.Cipher = strings.ToLower(strings.TrimSpace(n.Cipher))
		if n.Cipher == "" || n.Password == "" {
			return model.Node{}, errors.New("ssr requires cipher and password")
		}
		if n.Protocol == "" || n.Obfs == "" {
			return model.Node{}, errors.New("ssr requires protocol and obfs")
		}
	case model.TypeVMess:
		if n.UUID == "" {
			return model.Node{}, errors.New("vmess requires uuid")
		}
		if n.Cipher == "" {
			n.Cipher = "auto"
		}
	case model.TypeTrojan:
		if n.Password == "" {
			return model.Node{}, errors.New("trojan requires password")
		}
	case model.TypeHTTP, model.TypeHTTPS:
		// Username/password are optional.
	case model.TypeWireGuard:
		if n.SelfIP == "" || n.PrivateKey == "" {
			return model.Node{}, errors.New("wireguard requires interface ip and private key")
		}
		if len(n.Peers) == 0 {
			return model.Node{}, errors.New("wireguard requires at least one peer")
		}
		for _, p := range n.Peers {
			if p.PublicKey == "" || p.Endpoint == "" {
				return model.Node{}, errors.New("wireguard peer requires public key and endpoint")
			}
		}
	default:
		// Unknown types survive normalization; renderers decide what to do
		// with them (skip-with-warning).
	}

	return n, nil
}

// sanitizeName strips the two characters the Loon line grammar cannot carry
// in a node name. Secrets are quoted at render time, names are not.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "=", "")
	name = strings.ReplaceAll(name, ",", "")
	return name
}

func dedupKey(n model.Node) string {
	var b strings.Builder
	b.WriteString(n.Type)
	b.WriteByte('\n')
	switch n.Type {
	case model.TypeWireGuard:
		b.WriteString(n.SelfIP)
		b.WriteByte('\n')
		b.WriteString(n.PrivateKey)
		b.WriteByte('\n')
		for _, p := range n.Peers {
			b.WriteString(p.PublicKey)
			b.WriteByte('@')
			b.WriteString(p.Endpoint)
			b.WriteByte(';')
		}
	default:
		fmt.Fprintf(&b, "%s\n%d\n", n.Server, n.Port)
		b.WriteString(n.Cipher)
		b.WriteByte('\n')
		b.WriteString(n.Password)
		b.WriteByte('\n')
		b.WriteString(n.UUID)
		b.WriteByte('\n')
		b.WriteString(n.Username)
		b.WriteByte('\n')
		b.WriteString(n.Protocol)
		b.WriteByte('\n')
		b.WriteString(n.Obfs)
		b.WriteByte('\n')
		b.WriteString(n.Network)
	}
	return b.String()
}

// assignNames fills empty names and makes all names unique, in merge order.
func assignNames(nodes []model.Node) {
	used := make(map[string]struct{}, len(nodes))
	for i := range nodes {
		base := nodes[i].Name
		if base == "" {
			if nodes[i].Type == model.TypeWireGuard {
				base = nodes[i].SelfIP
			} else {
				base = fmt.Sprintf("%s:%d", nodes[i].Server, nodes[i].Port)
			}
		}

		name := base
		// Loon reserves these policy names.
		if name == "DIRECT" || name == "REJECT" {
			name = ""
		}
		if name != "" {
			if _, ok := used[name]; ok {
				name = ""
			}
		}
		if name == "" {
			for n := 2; ; n++ {
				try := fmt.Sprintf("%s-%d", base, n)
				if _, ok := used[try]; !ok {
					name = try
					break
				}
			}
		}

		nodes[i].Name = name
		used[name] = struct{}{}
	}
}
