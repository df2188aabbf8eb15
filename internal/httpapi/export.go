package httpapi

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/sentinel-access/sentinel/server/internal/sentinel/types"
)

const exportTimeLayout = "2006-01-02T15:04:05.000Z07:00"

var exportHeader = []string{
	"Log ID", "Timestamp", "User ID", "User Name", "Department",
	"Device", "Method", "Status", "Audit Notes",
}

// WriteAuditCSV writes logs in the PCI DSS audit export layout, one row per
// event in the order given.
func WriteAuditCSV(w io.Writer, logs []types.AccessEvent) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, ev := range logs {
		row := []string{
			ev.ID,
			ev.Timestamp.UTC().Format(exportTimeLayout),
			ev.UserID,
			ev.UserName,
			ev.Department,
			ev.DeviceLabel(),
			string(ev.Method),
			string(ev.Status),
			ev.Detail,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func exportFilename(date string) string {
	return fmt.Sprintf("PCI_DSS_Audit_Log_%s.csv", date)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	logs := s.monitor.Snapshot().FilteredLogs(r.URL.Query().Get("device"))
	name := exportFilename(s.now().UTC().Format("2006-01-02"))

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	if err := WriteAuditCSV(w, logs); err != nil {
		s.logger.Warn("audit export interrupted", zap.Error(err))
	}
}
