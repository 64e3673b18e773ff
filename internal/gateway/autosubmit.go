package gateway

import (
	"html/template"
	"sort"
	"strings"
)

// autosubmitTemplate is the HTML page performing a POST redirection to a
// payment page: a hidden form submitted as soon as the page loads.
var autosubmitTemplate = template.Must(template.New("autosubmit").Parse(`<!DOCTYPE html>
<html>
  <head>
    <script type="text/javascript">
      window.onload=function(){
        document.getElementById('autosubmit-form').submit();
      }
    </script>
  </head>

  <body>
    <h1>Redirecting...</h1>
    <form method="POST" id="autosubmit-form" action="{{.Action}}">
{{- range .Fields}}
      <input type="hidden" name="{{.Name}}" value="{{.Value}}"/>
{{- end}}
    </form>
  </body>
</html>
`))

type autosubmitField struct {
	Name  string
	Value string
}

// AutosubmitForm renders the auto-submitted POST form for the given action
// URL and fields. Fields are emitted in stable (alphabetical) order.
func AutosubmitForm(action string, fields map[string]string) string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	ordered := make([]autosubmitField, 0, len(names))
	for _, name := range names {
		ordered = append(ordered, autosubmitField{Name: name, Value: fields[name]})
	}

	var b strings.Builder
	// The template only fails on unrenderable values, which string pairs
	// cannot produce.
	_ = autosubmitTemplate.Execute(&b, struct {
		Action string
		Fields []autosubmitField
	}{Action: action, Fields: ordered})

	return b.String()
}
