package orgs

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilhicas/webex-partner-ops/internal/fetcher"
)

func TestFixRow(t *testing.T) {
	tests := []struct {
		name string
		row  []string
		want []string
	}{
		{
			"split name",
			[]string{"Acme", "Inc", "org-1", "a", "b", "c", "d"},
			[]string{"Acme Inc", "org-1"},
		},
		{
			"name split twice",
			[]string{"Big", "Corp", "Ltd", "org-2", "a", "b", "c", "d"},
			[]string{"Big Corp Ltd", "org-2"},
		},
		{
			"aligned",
			[]string{"Acme", "org-1", "a", "b", "c", "d"},
			[]string{"Acme", "org-1", "a", "b", "c", "d"},
		},
		{
			"short row padded",
			[]string{"Acme", "org-1"},
			[]string{"Acme", "org-1", "", "", "", ""},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FixRow(tt.row))
		})
	}
}

func TestCleanThenLoad(t *testing.T) {
	raw := strings.Join([]string{
		"Customer Name,Customer Org ID,Sub,Units,Used,Over",
		"Acme, Inc,org-1,s,10,12,2",
		"Globex,org-2,s,5,5,0",
		"lonely",
		"Globex,org-2,s,5,5,0",
		"",
	}, "\n")

	var cleaned bytes.Buffer
	n, err := Clean(strings.NewReader(raw), &cleaned)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "Customer Name,Customer Org ID\nAcme Inc,org-1\nGlobex,org-2\nGlobex,org-2\n", cleaned.String())

	entries, err := Load(&cleaned)
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{CustomerName: "Acme Inc", OrgID: "org-1"},
		{CustomerName: "Globex", OrgID: "org-2"},
	}, entries)
}

func TestParseFlags(t *testing.T) {
	entries, err := ParseFlags([]string{"id1=OrgA", "id2"})
	require.NoError(t, err)
	assert.Equal(t, []Entry{{OrgID: "id1", CustomerName: "OrgA"}, {OrgID: "id2"}}, entries)

	_, err = ParseFlags([]string{"=nameonly"})
	assert.Error(t, err)
}

func TestCollect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orgs.csv")
	require.NoError(t, os.WriteFile(path, []byte("Customer Name,Customer Org ID\nOrgA,id1\n"), 0o644))

	entries, err := Collect(path, []string{"id1=Dup", "id2=OrgB"})
	require.NoError(t, err)
	assert.Equal(t, []Entry{{CustomerName: "OrgA", OrgID: "id1"}, {CustomerName: "OrgB", OrgID: "id2"}}, entries)

	handles := Handles(entries)
	require.Len(t, handles, 2)
	assert.Equal(t, fetcher.Unactivated, handles[0].Status)
	assert.Equal(t, "OrgA", handles[0].Name())

	_, err = Collect("", nil)
	assert.Error(t, err)
}
