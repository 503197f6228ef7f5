package link

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/John-Robertt/loonsub/internal/model"
)

// vmessJSON is the de-facto v2rayN share format: vmess://b64(JSON).
// Port shows up as both number and string in the wild, hence json.Number.
type vmessJSON struct {
	V    json.Number `json:"v"`
	PS   string      `json:"ps"`
	Add  string      `json:"add"`
	Port json.Number `json:"port"`
	ID   string      `json:"id"`
	Scy  string      `json:"scy"`
	Net  string      `json:"net"`
	Host string      `json:"host"`
	Path string      `json:"path"`
	TLS  string      `json:"tls"`
	SNI  string      `json:"sni"`
}

func parseVMess(sourceURL string, lineNo int, s string) (model.Node, error) {
	body, err := decodeB64ToString(strings.TrimPrefix(s, "vmess://"))
	if err != nil {
		return model.Node{}, newParseError(sourceURL, lineNo, truncateSnippet(s, 200), "SUB_PARSE_ERROR", "vmess base64 解码失败", "", err)
	}

	var v vmessJSON
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return model.Node{}, newParseError(sourceURL, lineNo, truncateSnippet(s, 200), "SUB_PARSE_ERROR", "vmess JSON 解析失败", "", err)
	}

	id := strings.TrimSpace(v.ID)
	if _, err := uuid.Parse(id); err != nil {
		return model.Node{}, newParseError(sourceURL, lineNo, truncateSnippet(s, 200), "SUB_PARSE_ERROR", "vmess id 不是合法 UUID", "", err)
	}

	port64, err := v.Port.Int64()
	if err != nil {
		return model.Node{}, newParseError(sourceURL, lineNo, truncateSnippet(s, 200), "SUB_PARSE_ERROR", "vmess port 不合法", "", err)
	}
	server := strings.TrimSpace(v.Add)
	if server == "" || port64 < 1 || port64 > 65535 {
		return model.Node{}, newParseError(sourceURL, lineNo, truncateSnippet(s, 200), "SUB_PARSE_ERROR", "vmess 服务器地址或端口不合法", "", nil)
	}

	network := strings.TrimSpace(v.Net)
	if network == "" {
		network = "tcp"
	}

	n := model.Node{
		Type:    model.TypeVMess,
		Name:    strings.TrimSpace(v.PS),
		Server:  server,
		Port:    int(port64),
		UUID:    id,
		Cipher:  strings.TrimSpace(v.Scy),
		Network: network,
		Path:    strings.TrimSpace(v.Path),
		Host:    strings.TrimSpace(firstOf(v.SNI, v.Host)),
		TLS:     strings.TrimSpace(v.TLS) == "tls",
	}
	if n.Cipher == "" {
		n.Cipher = "auto"
	}
	if n.Network == "ws" && v.Host != "" {
		n.WSHeaders = []model.KV{{Key: "Host", Value: strings.TrimSpace(v.Host)}}
	}
	return n, nil
}

func firstOf(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
