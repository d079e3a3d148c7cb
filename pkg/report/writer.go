package report

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/opaudit/opaudit/pkg/domain"
)

// Header is the fixed column order of the report artifact. Downstream
// consumers depend on it; do not reorder.
var Header = []string{"User Name", "User Email", "Vault Name", "Permissions", "Access Via"}

// WriteCSV serializes the report rows. A run with zero rows still writes the
// header so consumers can tell an empty audit from a failed one.
func WriteCSV(w io.Writer, rows []domain.ReportRow) error {
	writer := csv.NewWriter(w)
	// The artifact contract uses CRLF row terminators.
	writer.UseCRLF = true

	if err := writer.Write(Header); err != nil {
		return fmt.Errorf("failed to write report header: %w", err)
	}
	for _, row := range rows {
		record := []string{row.UserName, row.UserEmail, row.VaultName, row.Permissions, row.AccessVia}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write report row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush report: %w", err)
	}
	return nil
}
