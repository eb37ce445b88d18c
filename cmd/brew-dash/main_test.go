package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCommandReportsRejectedFrames(t *testing.T) {
	in := strings.NewReader("brewing, pull, 2, 9, 60, 1.5, 93\n\nbrewing, pull\nbrewing, pull, x, 9, 60, 1.5, 93\n")
	var out bytes.Buffer

	err := parseCommand([]string{"--quiet"}, in, &out)
	require.Error(t, err)
	require.Contains(t, out.String(), "1 accepted, 2 rejected")
	require.Contains(t, out.String(), "malformed frame")
	require.Contains(t, out.String(), "invalid number")
	require.NotContains(t, out.String(), "w=2")
}

func TestParseCommandAcceptsCleanInput(t *testing.T) {
	var out bytes.Buffer
	err := parseCommand(nil, strings.NewReader("preinfusion, warm, 0, 1, 40, 0, 95\n"), &out)
	require.NoError(t, err)
	require.Contains(t, out.String(), "preinfusion")
	require.Contains(t, out.String(), "1 accepted, 0 rejected")
}

func TestScrapeSumsLabelledSeries(t *testing.T) {
	exposition := `# HELP brew_frames_rejected_total Frames dropped by the parser.
# TYPE brew_frames_rejected_total counter
brew_frames_rejected_total{reason="malformed_frame"} 2
brew_frames_rejected_total{reason="invalid_number"} 3
brew_frames_received_total 40
brew_session_samples 12
`
	got, err := scrape(strings.NewReader(exposition), statsTargets)
	require.NoError(t, err)
	require.Equal(t, 5.0, got["brew_frames_rejected_total"])
	require.Equal(t, 40.0, got["brew_frames_received_total"])
	require.Equal(t, 12.0, got["brew_session_samples"])
	require.Zero(t, got["brew_outbox_length"])
}
