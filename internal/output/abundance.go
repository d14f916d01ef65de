package output

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/inodb/vibe-talon/internal/registry"
)

// WriteAbundance writes one "transcript_ID  dataset  count" line per
// transcript and dataset, sorted by transcript then dataset ID. names maps
// dataset IDs to names; unknown IDs are written as numbers.
func WriteAbundance(w io.Writer, rows []registry.AbundanceRow, names map[int64]string) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString("transcript_ID\tdataset\tcount\n"); err != nil {
		return err
	}
	for _, row := range rows {
		dataset, ok := names[row.DatasetID]
		if !ok {
			dataset = strconv.FormatInt(row.DatasetID, 10)
		}
		values := []string{
			strconv.FormatInt(row.TranscriptID, 10),
			dataset,
			strconv.FormatInt(row.Count, 10),
		}
		if _, err := bw.WriteString(strings.Join(values, "\t") + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}
