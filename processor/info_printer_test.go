package processor

import (
	"testing"

	"github.com/nci/voxrgb/utils"
)

func TestSummary(t *testing.T) {
	sp, err := NewSummaryPrinter()
	if err != nil {
		t.Fatalf("failed to load template: %v", err)
	}

	cases := []struct {
		policy   utils.WindowPolicy
		window   utils.Window
		expected string
	}{
		{
			utils.AllWindow(), utils.Window{Min: -1.5, Max: 300},
			"All pixel values of input image are mapped to RGB colors. The range is [-1.5,300].",
		},
		{
			utils.DefaultWindow(), utils.Window{Min: 2, Max: 9},
			"Tailed pixels are abandoned when mapping to RGB colors. Proportion range is [0.01,0.99]. Pixel range is [2,9].",
		},
		{
			utils.RangeWindow(0, 1), utils.Window{Min: 0, Max: 1},
			"Tailed pixels are abandoned when mapping to RGB colors. The range is [0,1].",
		},
	}
	for _, c := range cases {
		got, err := sp.Summary(c.policy, c.window)
		if err != nil {
			t.Errorf("%v: %v", c.policy, err)
			continue
		}
		if got != c.expected {
			t.Errorf("%v: got %q, expected %q", c.policy, got, c.expected)
		}
	}
}
