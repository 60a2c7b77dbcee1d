package visualize

import "github.com/cwbudde/algo-mimic/analysis"

const timeLabel = "Time (normalized)"

// ComparisonPanels lays out the reference and attempt features as three
// panels: waveforms, amplitude envelopes and max-normalized energy contours.
func ComparisonPanels(ref, att *analysis.Features) []Panel {
	return []Panel{
		{
			Title:  "Waveform Comparison",
			XLabel: timeLabel,
			YLabel: "Amplitude",
			Series: []Series{
				{Name: "Reference", Values: ref.Waveform, Color: ReferenceColor, Faint: true},
				{Name: "Your Attempt", Values: att.Waveform, Color: AttemptColor, Faint: true},
			},
		},
		{
			Title:  "Amplitude Envelope",
			XLabel: timeLabel,
			YLabel: "Envelope",
			Series: []Series{
				{Name: "Reference", Values: ref.Envelope, Color: ReferenceColor},
				{Name: "Your Attempt", Values: att.Envelope, Color: AttemptColor},
			},
		},
		{
			Title:  "Energy Contour",
			XLabel: timeLabel,
			YLabel: "Normalized Energy",
			Series: []Series{
				{Name: "Reference", Values: analysis.NormalizeMax(ref.Energy), Color: ReferenceColor},
				{Name: "Your Attempt", Values: analysis.NormalizeMax(att.Energy), Color: AttemptColor},
			},
		},
	}
}

// RenderComparison writes the comparison figure for c to path.
func RenderComparison(path string, c *analysis.Comparison, opts Options) error {
	return RenderFile(path, ComparisonPanels(c.Reference, c.Attempt), opts)
}
