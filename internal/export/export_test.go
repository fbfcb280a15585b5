package export

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vrm-expression-exporter/internal/expression"
	"vrm-expression-exporter/internal/extract"
	"vrm-expression-exporter/internal/scene/scenetest"
)

func aliceSet(t *testing.T) *expression.CharacterSet {
	t.Helper()
	res := extract.Extract(scenetest.Alice())
	require.True(t, res.OK())
	return res.Set
}

func bobSet(t *testing.T) *expression.CharacterSet {
	t.Helper()
	res := extract.Extract(scenetest.Bob())
	require.True(t, res.OK())
	return res.Set
}

func TestDetailAlice(t *testing.T) {
	set := aliceSet(t)
	set.Entries[0].MorphBindings = append(set.Entries[0].MorphBindings,
		expression.MorphBinding{MeshPath: "Face", TargetIndex: 0, TargetName: "Blink", Weight01: 0})

	got := Detail(set)
	want := Table{
		Header: []string{"Expression Name", "Type", "Preview Image Path", "Face:Blink", "Face:MouthSmile"},
		Rows:   [][]string{{"happy", "Preset", "", "0.00", "80.00"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Detail() mismatch (-want +got):\n%s", diff)
	}
}

func TestDetailMissingIsZero(t *testing.T) {
	got := Detail(bobSet(t))

	col := map[string]int{}
	for i, h := range got.Header {
		col[h] = i
	}
	require.Contains(t, col, "Body/Head:Blink")

	blink := got.Rows[2]
	require.Equal(t, "blink", blink[0])
	assert.Equal(t, "100.00", blink[col["Body/Head:Blink"]])
	assert.Equal(t, "0", blink[col["Body/Head:Mouth_A"]])
	assert.Equal(t, "0", blink[col["Ghost:Index_0"]])
}

func TestDetailColumnsStable(t *testing.T) {
	set := bobSet(t)
	want := DetailColumns(set)

	reversed := *set
	reversed.Entries = make([]expression.Entry, len(set.Entries))
	for i, e := range set.Entries {
		reversed.Entries[len(set.Entries)-1-i] = e
	}
	assert.Equal(t, want, DetailColumns(&reversed))
	assert.True(t, sortedStrings(want))
	assert.Equal(t, want, DetailColumns(set), "repeat call")
}

func sortedStrings(s []string) bool {
	for i := 1; i < len(s); i++ {
		if s[i-1] > s[i] {
			return false
		}
	}
	return true
}

func TestSummary(t *testing.T) {
	bob := bobSet(t).WithPreviewPaths(map[int]string{0: "img/bob/angry.png"})
	got := Summary([]*expression.CharacterSet{aliceSet(t), bob})

	want := [][]string{
		{"Alice", "alice", "1", "1", "0", "No"},
		{"bob_v2", "bob_v2", "6", "3", "3", "Yes"},
	}
	assert.Equal(t, summaryHeader, got.Header)
	assert.Equal(t, want, got.Rows)
}

func TestExpressionList(t *testing.T) {
	got := ExpressionList([]*expression.CharacterSet{bobSet(t)}, false)

	assert.Len(t, got.Header, 5)
	// angry has no morph bindings
	assert.Equal(t, []string{"bob_v2", "angry", "", NoBindings, "0"}, got.Rows[0])
	assert.Equal(t, []string{"bob_v2", "aa", "Body/Head", "Mouth_A", "100.0"}, got.Rows[1])
	assert.Equal(t, []string{"bob_v2", "aa", "Body/Head", "Index_9", "50.0"}, got.Rows[2])

	withImages := ExpressionList([]*expression.CharacterSet{bobSet(t)}, true)
	assert.Equal(t, "Image Path", withImages.Header[5])
	assert.Len(t, withImages.Rows[0], 6)
}

func TestEncodeCSVRoundTrip(t *testing.T) {
	table := Table{
		Header: []string{"Expression Name", "Type"},
		Rows: [][]string{
			{`smile, "big"`, "Custom"},
			{"line\nbreak", "Custom"},
			{"にっこり", "Custom"},
		},
	}

	tests := []struct {
		name string
		bom  bool
	}{
		{"plain", false},
		{"bom", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, EncodeCSV(&buf, table, CSVOptions{WriteBOM: tt.bom}))

			data := buf.Bytes()
			hasBOM := bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF})
			assert.Equal(t, tt.bom, hasBOM)
			data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

			records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
			require.NoError(t, err)
			assert.Equal(t, append([][]string{table.Header}, table.Rows...), records)
		})
	}
}

func TestHTML(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "out/images/bob_v2/aa.png", []byte("png"), 0644))

	bob := bobSet(t).WithPreviewPaths(map[int]string{
		1: "out/images/bob_v2/aa.png",
		2: "out/images/bob_v2/blink.png", // never written
	})
	page, err := HTML(fs, []*expression.CharacterSet{bob}, "out", HTMLOptions{})
	require.NoError(t, err)
	html := string(page)

	assert.Contains(t, html, `<img src="images/bob_v2/aa.png" alt="aa">`)
	assert.Equal(t, len(bob.Entries)-1, strings.Count(html, "No Preview"))
	assert.Contains(t, html, "<td>Wink_L</td>")
	// zero-weight bindings stay out of the details table
	assert.Equal(t, 1, strings.Count(html, "<td>Wink_L</td>"))
}

func TestHTMLEscapes(t *testing.T) {
	set := &expression.CharacterSet{
		CharacterName:      "<script>alert(1)</script>",
		ObjectInstanceName: "x",
		Entries:            []expression.Entry{{Name: `a&b"c`, Kind: expression.KindCustom}},
	}
	page, err := HTML(afero.NewMemMapFs(), []*expression.CharacterSet{set}, ".", HTMLOptions{})
	require.NoError(t, err)
	assert.NotContains(t, string(page), "<script>alert")
	assert.Contains(t, string(page), "&lt;script&gt;")
}

func TestHTMLMinWeight(t *testing.T) {
	set := bobSet(t)
	page, err := HTML(afero.NewMemMapFs(), []*expression.CharacterSet{set}, ".", HTMLOptions{MinWeight: 50})
	require.NoError(t, err)
	assert.NotContains(t, string(page), "<td>Index_9</td>", "a 50 percent binding is not above the threshold")
	assert.Contains(t, string(page), "<td>Mouth_A</td>")
}

func TestHTMLDetailsOnlyWithVisibleBindings(t *testing.T) {
	set := &expression.CharacterSet{
		CharacterName:      "Faint",
		ObjectInstanceName: "faint",
		Entries: []expression.Entry{{
			Name: "sigh",
			Kind: expression.KindCustom,
			MorphBindings: []expression.MorphBinding{
				{MeshPath: "Face", TargetIndex: 0, TargetName: "Blink", Weight01: 0.3},
			},
		}},
	}

	tests := []struct {
		name      string
		minWeight float64
		want      bool
	}{
		{"above threshold", 10, true},
		{"all filtered", 50, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := HTML(afero.NewMemMapFs(), []*expression.CharacterSet{set}, ".", HTMLOptions{MinWeight: tt.minWeight})
			require.NoError(t, err)
			assert.Equal(t, tt.want, strings.Contains(string(page), "<details>"))
		})
	}
}

func TestExporterExport(t *testing.T) {
	fs := afero.NewMemMapFs()
	exp := &Exporter{Fs: fs, CSV: CSVOptions{WriteBOM: true}, Logger: log.New(io.Discard)}

	clash := aliceSet(t)
	clash.CharacterName = "Alice_2"
	paths, err := exp.Export("out", []*expression.CharacterSet{aliceSet(t), bobSet(t), aliceSet(t), clash})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"out/" + SummaryFile,
		"out/" + ListFile,
		"out/Alice_Expressions.csv",
		"out/bob_v2_Expressions.csv",
		"out/Alice_2_Expressions.csv",
		"out/Alice_2_2_Expressions.csv",
		"out/" + ViewerFile,
	}, paths)
	for _, p := range paths {
		ok, err := afero.Exists(fs, p)
		require.NoError(t, err)
		assert.True(t, ok, p)
	}
}
