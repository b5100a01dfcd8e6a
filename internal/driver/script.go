package driver

import (
	"bytes"
	"text/template"
)

// scriptData feeds jobScript.
type scriptData struct {
	Name       string
	Dir        string
	InputFile  string
	InputURL   string // set when the sample is not on a shared filesystem
	OutputFile string
	OutputURL  string // presigned upload target for OutputFile, same condition
	Simulator  string
	Steady     bool
}

var jobScript = template.Must(template.New(ScriptFile).Parse(`#!/bin/bash
#$ -S /bin/bash
#$ -N {{.Name}}
#$ -cwd
#$ -o {{.Name}}.out
#$ -e {{.Name}}.err
set -euo pipefail
{{- if .InputURL}}
mkdir -p {{.Dir}}
cd {{.Dir}}
curl -fsS -o {{.InputFile}} '{{.InputURL}}'
{{- end}}
{{.Simulator}} --input {{.InputFile}} --output {{.OutputFile}}{{if .Steady}} --ss{{end}}
{{- if .OutputURL}}
curl -fsS --upload-file {{.OutputFile}} '{{.OutputURL}}'
{{- end}}
`))

func renderScript(d scriptData) ([]byte, error) {
	var buf bytes.Buffer
	if err := jobScript.Execute(&buf, d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
