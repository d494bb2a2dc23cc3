package engine

import (
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// pdfConfig returns the pdfcpu configuration used by all PDF operations.
// Validation is relaxed: user uploads are frequently produced by sloppy
// generators and still render fine.
func pdfConfig() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}
