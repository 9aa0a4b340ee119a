package specmodel

import (
	"strings"

	"gopkg.in/yaml.v3"
)

var languageAliases = map[string]string{
	"shell":   "curl",
	"bash":    "curl",
	"sh":      "curl",
	"node":    "javascript",
	"nodejs":  "javascript",
	"node.js": "javascript",
	"js":      "javascript",
	"golang":  "go",
	"py":      "python",
	"python3": "python",
}

// NormalizeLanguage lower-cases a code-sample language and resolves aliases.
func NormalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if alias, ok := languageAliases[lang]; ok {
		return alias
	}
	return lang
}

// vendorSamples collects code samples from x-codeSamples, x-oaiMeta and
// x-examples. The first sample seen for a language wins.
func vendorSamples(op *yaml.Node) map[string]string {
	out := map[string]string{}
	add := func(lang, code string) {
		lang = NormalizeLanguage(lang)
		if lang == "" || strings.TrimSpace(code) == "" {
			return
		}
		if _, ok := out[lang]; !ok {
			out[lang] = code
		}
	}

	for _, key := range []string{"x-codeSamples", "x-code-samples"} {
		for _, it := range items(field(op, key)) {
			lang := str(it, "lang")
			if lang == "" {
				lang = str(it, "label")
			}
			add(lang, str(it, "source"))
		}
	}

	if examples := field(field(op, "x-oaiMeta"), "examples"); examples != nil {
		list := items(examples)
		if list == nil {
			list = []*yaml.Node{examples}
		}
		for _, ex := range list {
			for _, p := range sortedPairs(ex) {
				switch p.key {
				case "request":
					if p.value.Kind == yaml.ScalarNode {
						add("curl", p.value.Value)
						continue
					}
					for _, rp := range sortedPairs(p.value) {
						if rp.value.Kind == yaml.ScalarNode {
							add(rp.key, rp.value.Value)
						}
					}
				case "response", "title", "name", "group":
				default:
					if p.value.Kind == yaml.ScalarNode {
						add(p.key, p.value.Value)
					}
				}
			}
		}
	}

	for _, p := range sortedPairs(field(op, "x-examples")) {
		if p.value.Kind == yaml.ScalarNode {
			add(p.key, p.value.Value)
		}
	}

	if len(out) == 0 {
		return nil
	}
	return out
}
