package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/raushankrgupta/meal-planner/export"
	"github.com/raushankrgupta/meal-planner/planner"
	"github.com/raushankrgupta/meal-planner/utils"
)

// ExportHandler downloads the current plan as a PDF. With no plan on screen
// it just returns to the dashboard.
func (s *Server) ExportHandler(w http.ResponseWriter, r *http.Request) {
	var logMessageBuilder strings.Builder
	defer utils.FlushLogMessage(r, &logMessageBuilder)
	utils.AddToLogMessage(&logMessageBuilder, "[Export PDF API]")

	sess, board := s.board(r)
	done := board.BeginExport()
	defer done()

	doc, err := s.exporter.Export(r.Context(), board.Plan(), s.now())
	if errors.Is(err, export.ErrNothingToExport) {
		utils.AddToLogMessage(&logMessageBuilder, "Nothing to export")
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	if err != nil {
		utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Export failed: %v", err))
		board.SetNotice(planner.MsgExportFailed)
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	utils.AddToLogMessage(&logMessageBuilder, fmt.Sprintf("Exported %s (%d pages)", doc.Filename, doc.Pages))

	if len(s.sinks) > 0 {
		user := sess.User
		go export.Deliver(context.WithoutCancel(r.Context()), user, doc, s.sinks...)
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.Data)
}
