// SPDX-License-Identifier: MIT

package subtitle

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSRT = `1
00:00:01,000 --> 00:00:03,500
Hello world

2
00:00:04,000 --> 00:00:06,000
Second cue
with two lines

3
00:01:02,345 --> 00:01:04,000
Third
`

func TestParseSRT(t *testing.T) {
	cues, err := Parse(sampleSRT)
	require.NoError(t, err)
	require.Len(t, cues, 3)

	assert.Equal(t, 1, cues[0].Index)
	assert.Equal(t, time.Second, cues[0].Start)
	assert.Equal(t, 3500*time.Millisecond, cues[0].End)
	assert.Equal(t, []string{"Hello world"}, cues[0].Lines)

	assert.Equal(t, []string{"Second cue", "with two lines"}, cues[1].Lines)
	assert.Equal(t, time.Minute+2*time.Second+345*time.Millisecond, cues[2].Start)
}

func TestParseSRTTolerant(t *testing.T) {
	// CRLF, BOM, missing index numbers.
	raw := "\ufeff00:00:01,000 --> 00:00:02,000\r\nFirst\r\n\r\n00:00:03,000 --> 00:00:04,000\r\nSecond\r\n"
	cues, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, cues, 2)
	assert.Equal(t, []string{"First"}, cues[0].Lines)
}

func TestParseSRTEmpty(t *testing.T) {
	_, err := Parse("not a subtitle at all")
	assert.Error(t, err)
}

func TestFormatRoundTrip(t *testing.T) {
	cues, err := Parse(sampleSRT)
	require.NoError(t, err)

	out := Format(cues)
	again, err := Parse(out)
	require.NoError(t, err)
	require.Len(t, again, len(cues))
	for i := range cues {
		assert.Equal(t, cues[i].Start, again[i].Start)
		assert.Equal(t, cues[i].End, again[i].End)
		assert.Equal(t, cues[i].Lines, again[i].Lines)
	}

	// Formatted output uses SRT comma timestamps.
	assert.Contains(t, out, "00:01:02,345 --> 00:01:04,000")
}

func TestCueTextLen(t *testing.T) {
	cue := Cue{Lines: []string{"héllo", "wörld"}}
	assert.Equal(t, 10, cue.TextLen())
	assert.Equal(t, "héllo\nwörld", cue.Text())
}

const sampleVTT = `WEBVTT
Kind: captions
Language: en

NOTE this block is skipped

00:00:01.000 --> 00:00:03.500 align:start position:0%
Hello <c.colorCCCCCC>world</c>

cue-42
00:01:02.345 --> 00:01:04.000
Tagged <00:01:02.500>inline</c> text
`

func TestParseVTT(t *testing.T) {
	cues, err := Convert([]byte(sampleVTT))
	require.NoError(t, err)
	require.Len(t, cues, 2)

	assert.Equal(t, time.Second, cues[0].Start)
	assert.Equal(t, 3500*time.Millisecond, cues[0].End)
	assert.Equal(t, []string{"Hello world"}, cues[0].Lines)
	assert.Equal(t, []string{"Tagged inline text"}, cues[1].Lines)
}

const sampleJSON3 = `{"events":[
  {"tStartMs":0,"dDurMs":2000,"segs":[{"utf8":"Hello "},{"utf8":"world"}]},
  {"tStartMs":2500,"segs":[{"utf8":"\n"}]},
  {"tStartMs":3000,"dDurMs":1500,"segs":[{"utf8":"Second line"}]}
]}`

func TestParseJSON3(t *testing.T) {
	cues, err := Convert([]byte(sampleJSON3))
	require.NoError(t, err)
	require.Len(t, cues, 2)

	assert.Equal(t, []string{"Hello world"}, cues[0].Lines)
	assert.Equal(t, 2*time.Second, cues[0].End)
	assert.Equal(t, 3*time.Second, cues[1].Start)
	assert.Equal(t, 4500*time.Millisecond, cues[1].End)
}

const sampleSRV3 = `<?xml version="1.0" encoding="utf-8"?>
<timedtext format="3">
  <body>
    <p t="1000" d="2500">Hello world</p>
    <p t="4000" d="2000"><s>Seg</s><s>mented</s></p>
    <p t="7000" d="1000"></p>
  </body>
</timedtext>`

func TestParseSRV3(t *testing.T) {
	cues, err := Convert([]byte(sampleSRV3))
	require.NoError(t, err)
	require.Len(t, cues, 2)

	assert.Equal(t, []string{"Hello world"}, cues[0].Lines)
	assert.Equal(t, time.Second, cues[0].Start)
	assert.Equal(t, 3500*time.Millisecond, cues[0].End)
	assert.Equal(t, []string{"Segmented"}, cues[1].Lines)
}

func TestDetectKind(t *testing.T) {
	assert.Equal(t, KindVTT, DetectKind([]byte(sampleVTT)))
	assert.Equal(t, KindJSON3, DetectKind([]byte(sampleJSON3)))
	assert.Equal(t, KindSRV3, DetectKind([]byte(sampleSRV3)))
	assert.Equal(t, KindSRT, DetectKind([]byte(sampleSRT)))
	assert.Equal(t, KindUnknown, DetectKind([]byte("plain text")))
}

func TestConvertUnknown(t *testing.T) {
	_, err := Convert([]byte("genuinely not captions"))
	assert.Error(t, err)
}

func TestPlaintextCollapsesRollingDuplicates(t *testing.T) {
	cues := []Cue{
		{Lines: []string{"Hello"}},
		{Lines: []string{"Hello world"}},
		{Lines: []string{"Hello world"}},
		{Lines: []string{"Next line"}},
	}
	got := Plaintext(cues)
	assert.Equal(t, "Hello world\nNext line", got)
}

func TestPlaintextPlain(t *testing.T) {
	cues, err := Parse(sampleSRT)
	require.NoError(t, err)
	got := Plaintext(cues)
	assert.Equal(t, "Hello world\nSecond cue\nwith two lines\nThird", got)
}

func TestMergeBilingual(t *testing.T) {
	source := []Cue{
		{Index: 1, Start: 0, End: time.Second, Lines: []string{"Hello"}},
		{Index: 2, Start: time.Second, End: 2 * time.Second, Lines: []string{"World"}},
	}
	translated := []Cue{
		{Index: 1, Start: 0, End: time.Second, Lines: []string{"Hallo"}},
	}

	merged := MergeBilingual(translated, source)
	require.Len(t, merged, 2)
	assert.Equal(t, []string{"Hallo", "Hello"}, merged[0].Lines)
	assert.Equal(t, []string{"World"}, merged[1].Lines)

	out := Format(merged)
	assert.True(t, strings.Contains(out, "Hallo\nHello"))
}
