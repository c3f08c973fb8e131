package sde

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func tritanium() Item {
	return Item{
		ID: 34,
		Name: Names{
			DE: "Tritanium", EN: "Tritanium", ES: "Tritanium", FR: "Tritanium",
			JA: "トリタニウム", RU: "Tritanium", ZH: "三钛合金",
		},
		GroupID: 18,
	}
}

func sampleItems() []Item {
	return []Item{
		tritanium(),
		{ID: 35, Name: Names{EN: "Pyerite", ZH: "类晶体胶矿", DE: "Pyerite"}, GroupID: 18},
		{ID: 44992, Name: Names{EN: "PLEX", ZH: "伊甸币"}, GroupID: 1875},
	}
}

func writeCatalog(t *testing.T, items []Item) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, items))
	path := filepath.Join(t.TempDir(), "types.json.gz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}
