package dns

import "hostconfd/internal/template"

var zoneTemplate = template.Must("zone", `; {{ .Name }} serial {{ .Serial }}, generated by hostconfd
$ORIGIN {{ .Name }}.
$TTL {{ .TTL }}
@	IN	SOA	{{ .Primary }} {{ .Hostmaster }} (
	{{ .Serial }}	; serial
	{{ .Refresh }}	; refresh
	{{ .Retry }}	; retry
	{{ .Expire }}	; expire
	{{ .Minimum }} )	; minimum
{{ range .Records -}}
{{ .Name }}	{{ with .TTL }}{{ . }}{{ end }}	IN	{{ .Type }}	{{ if or (eq .Type "MX") (eq .Type "SRV") }}{{ .Priority }} {{ end }}{{ if and (eq .Type "TXT") (not (hasPrefix "\"" .Data)) }}{{ quote .Data }}{{ else }}{{ .Data }}{{ end }}
{{ end -}}
`)

var confTemplate = template.Must("zones.conf", `// generated by hostconfd
{{ range . -}}
zone "{{ .Name }}" IN {
	type master;
	file "{{ .File }}";
};
{{ end -}}
`)

type confZone struct {
	Name string
	File string
}
