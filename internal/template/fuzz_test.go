package template

import (
	"strings"
	"testing"
)

func FuzzInject(f *testing.F) {
	tmpl := "[General]\ndns-server = system\n[Proxy]\n  #@PROXIES@#\n[Proxy Group]\nAuto = select,DIRECT\n#@NAMES@#\n"
	tmplCRLF := "[Proxy]\r\n\t#@PROXIES@#\r\n\r\n#@NAMES@#\r\n"

	proxies := "A = Shadowsocks,a.com,1,aes-256-gcm,\"p\"\nB = trojan,b.com,443,\"p\",tls-name=b.com,skip-cert-verify=false"
	names := "A, B"

	f.Add(tmpl, proxies, names)
	f.Add(tmplCRLF, proxies, names)
	f.Add("", "", "")

	f.Fuzz(func(t *testing.T, templateText, proxiesBlock, namesBlock string) {
		out, err := Inject(templateText, proxiesBlock, namesBlock, InjectOptions{
			TemplateURL: "https://example.com/loon.conf",
		})
		if err != nil {
			return
		}
		if strings.Contains(proxiesBlock, AnchorProxies) || strings.Contains(namesBlock, AnchorProxies) {
			return
		}
		// Success must never leave the proxies anchor in the output.
		if strings.Contains(out, AnchorProxies) {
			t.Fatalf("anchor %s leaked into output", AnchorProxies)
		}
	})
}
