package processor

import (
	"bytes"
	"io"
	"strconv"

	"github.com/edisonguo/jet"
	"github.com/nci/voxrgb/utils"
)

const summaryTemplate = `{{ if .Mode == "all" }}All pixel values of input image are mapped to RGB colors. The range is [{{ .Min }},{{ .Max }}].{{ else if .Mode == "proportion" }}Tailed pixels are abandoned when mapping to RGB colors. Proportion range is [{{ .MinP }},{{ .MaxP }}]. Pixel range is [{{ .Min }},{{ .Max }}].{{ else }}Tailed pixels are abandoned when mapping to RGB colors. The range is [{{ .Min }},{{ .Max }}].{{ end }}`

// SummaryPrinter renders the progress line describing the active policy
// and the resolved window.
type SummaryPrinter struct {
	template *jet.Template
}

type summaryData struct {
	Mode       string
	MinP, MaxP string
	Min, Max   string
}

func NewSummaryPrinter() (*SummaryPrinter, error) {
	view := jet.NewSet(jet.SafeWriter(func(w io.Writer, b []byte) {
		w.Write(b)
	}), ".")

	template, err := view.LoadTemplate("summary", summaryTemplate)
	if err != nil {
		return nil, err
	}
	return &SummaryPrinter{template: template}, nil
}

// Summary describes the window resolved under policy.
func (sp *SummaryPrinter) Summary(policy utils.WindowPolicy, window utils.Window) (string, error) {
	data := &summaryData{
		Mode: policy.Kind.String(),
		MinP: formatFloat(policy.Min),
		MaxP: formatFloat(policy.Max),
		Min:  formatFloat(window.Min),
		Max:  formatFloat(window.Max),
	}

	var buf bytes.Buffer
	vars := make(jet.VarMap)
	if err := sp.template.Execute(&buf, vars, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func formatFloat(x float64) string {
	return strconv.FormatFloat(x, 'g', 6, 64)
}
