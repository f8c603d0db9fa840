package discovery

import (
	_ "embed"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed dorks.yaml
var dorksYAML []byte

type dorkSet struct {
	Competitor []string `yaml:"competitor"`
	Intent     []string `yaml:"intent"`
}

var dorks dorkSet

func init() {
	if err := yaml.Unmarshal(dorksYAML, &dorks); err != nil {
		panic("discovery: bad dorks.yaml: " + err.Error())
	}
}

// dorkFor rotates through templates by page so successive pages hit
// different sources instead of paging deeper into one.
func dorkFor(templates []string, page int, q string) string {
	if page < 1 {
		page = 1
	}
	tpl := templates[(page-1)%len(templates)]
	return strings.ReplaceAll(tpl, "{q}", q)
}
