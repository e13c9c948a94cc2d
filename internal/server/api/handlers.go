package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"dirplan/internal/core"
	"dirplan/internal/editor"
	"dirplan/internal/server/service"
	"dirplan/internal/server/storage"
	"dirplan/internal/template"

	"github.com/labstack/echo/v4"
)

// HealthChecker reports whether a backing store is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Handler contains the HTTP handlers for the dirplan API.
type Handler struct {
	svc *service.StructureService
	db  HealthChecker
}

// NewHandler creates a new handler. db may be nil when templates are not
// kept in a database.
func NewHandler(svc *service.StructureService, db HealthChecker) *Handler {
	return &Handler{svc: svc, db: db}
}

type textRequest struct {
	Text string `json:"text"`
}

type foldersRequest struct {
	Parent string   `json:"parent"`
	Names  []string `json:"names"`
}

type generateRequest struct {
	Parent string `json:"parent"`
	Base   string `json:"base"`
	Count  int    `json:"count"`
}

type renameRequest struct {
	OldName string `json:"old_name"`
	NewName string `json:"new_name"`
}

type moveRequest struct {
	Name      string `json:"name"`
	Direction string `json:"direction"`
}

type materializeRequest struct {
	Path   string `json:"path"`
	DryRun bool   `json:"dry_run"`
}

type nameRequest struct {
	Name string `json:"name"`
}

func bindJSON(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return &core.ValidationError{Field: "body", Cause: "request body must be valid JSON", Err: err}
	}
	return nil
}

// HandleCreateSession handles POST /api/sessions.
// Accepts an optional {"text": "..."} body holding an indented outline.
func (h *Handler) HandleCreateSession(c echo.Context) error {
	var req textRequest
	if err := bindJSON(c, &req); err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, h.svc.CreateSession(req.Text))
}

// HandleGetSession handles GET /api/sessions/:id.
func (h *Handler) HandleGetSession(c echo.Context) error {
	view, err := h.svc.GetSession(c.Param("id"))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// HandleReplaceText handles PUT /api/sessions/:id/text.
// Reparses the session buffer from the submitted outline.
func (h *Handler) HandleReplaceText(c echo.Context) error {
	var req textRequest
	if err := bindJSON(c, &req); err != nil {
		return mapServiceError(c, err)
	}
	view, err := h.svc.ReplaceText(c.Param("id"), req.Text)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// HandleClearSession handles POST /api/sessions/:id/clear.
func (h *Handler) HandleClearSession(c echo.Context) error {
	view, err := h.svc.ClearSession(c.Param("id"))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// HandleDeleteSession handles DELETE /api/sessions/:id.
func (h *Handler) HandleDeleteSession(c echo.Context) error {
	if err := h.svc.DeleteSession(c.Param("id")); err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "session deleted successfully"})
}

// HandleAddFolders handles POST /api/sessions/:id/folders.
// Without a parent the names become top-level folders.
func (h *Handler) HandleAddFolders(c echo.Context) error {
	var req foldersRequest
	if err := bindJSON(c, &req); err != nil {
		return mapServiceError(c, err)
	}
	view, err := h.svc.AddFolders(c.Param("id"), req.Parent, req.Names)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// HandleGenerate handles POST /api/sessions/:id/generate.
func (h *Handler) HandleGenerate(c echo.Context) error {
	var req generateRequest
	if err := bindJSON(c, &req); err != nil {
		return mapServiceError(c, err)
	}
	view, err := h.svc.GenerateSubfolders(c.Param("id"), req.Parent, req.Base, req.Count)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// HandleRename handles POST /api/sessions/:id/rename.
// Every folder with the old name is renamed.
func (h *Handler) HandleRename(c echo.Context) error {
	var req renameRequest
	if err := bindJSON(c, &req); err != nil {
		return mapServiceError(c, err)
	}
	view, renamed, err := h.svc.RenameFolder(c.Param("id"), req.OldName, req.NewName)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"renamed": renamed,
		"session": view,
	})
}

// HandleDeleteFolder handles DELETE /api/sessions/:id/folders/:name.
func (h *Handler) HandleDeleteFolder(c echo.Context) error {
	view, err := h.svc.DeleteFolder(c.Param("id"), c.Param("name"))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// HandleMove handles POST /api/sessions/:id/move.
func (h *Handler) HandleMove(c echo.Context) error {
	var req moveRequest
	if err := bindJSON(c, &req); err != nil {
		return mapServiceError(c, err)
	}
	view, err := h.svc.MoveFolder(c.Param("id"), req.Name, req.Direction)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// HandleMaterialize handles POST /api/sessions/:id/materialize.
// The path is relative to the server's materialize root.
func (h *Handler) HandleMaterialize(c echo.Context) error {
	var req materializeRequest
	if err := bindJSON(c, &req); err != nil {
		return mapServiceError(c, err)
	}
	res, err := h.svc.Materialize(c.Request().Context(), c.Param("id"), req.Path, req.DryRun)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"dry_run":   req.DryRun,
		"attempted": res.Attempted,
		"created":   res.Created,
	})
}

// HandleExportZip handles POST /api/sessions/:id/export.
// Stores a ZIP of the structure and returns its download link.
func (h *Handler) HandleExportZip(c echo.Context) error {
	var req nameRequest
	if err := bindJSON(c, &req); err != nil {
		return mapServiceError(c, err)
	}
	res, err := h.svc.ExportZip(c.Request().Context(), c.Param("id"), req.Name)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"id":           res.ID,
		"download_url": res.DownloadURL,
		"filename":     res.Filename,
		"size":         res.Size,
		"size_human":   humanizeBytes(res.Size),
		"expires_at":   res.ExpiresAt,
	})
}

// HandleExportJSON handles GET /api/sessions/:id/export.json.
func (h *Handler) HandleExportJSON(c echo.Context) error {
	export, err := h.svc.ExportJSON(c.Param("id"), c.QueryParam("name"))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, export)
}

// HandleImportJSON handles POST /api/sessions/:id/import.
// Accepts an export envelope or a bare structure list.
func (h *Handler) HandleImportJSON(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, service.MaxImportSize))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "failed to read request body"})
	}
	view, err := h.svc.ImportJSON(c.Param("id"), body)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// HandleImportZip handles POST /api/sessions/:id/import/zip.
// Accepts a multipart form with a "file" field and an optional
// "strip_root" field.
func (h *Handler) HandleImportZip(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": "file is required (use form field 'file')",
		})
	}

	src, err := fileHeader.Open()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "failed to read uploaded file",
		})
	}
	defer src.Close()

	stripRoot := c.FormValue("strip_root") == "true"
	view, err := h.svc.ImportZip(c.Param("id"), src, fileHeader.Size, stripRoot)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// HandleSaveTemplate handles POST /api/sessions/:id/template.
func (h *Handler) HandleSaveTemplate(c echo.Context) error {
	var req nameRequest
	if err := bindJSON(c, &req); err != nil {
		return mapServiceError(c, err)
	}
	if err := h.svc.SaveTemplate(c.Request().Context(), c.Param("id"), req.Name); err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "template saved", "name": req.Name})
}

// HandleLoadTemplate handles POST /api/sessions/:id/template/load.
func (h *Handler) HandleLoadTemplate(c echo.Context) error {
	var req nameRequest
	if err := bindJSON(c, &req); err != nil {
		return mapServiceError(c, err)
	}
	view, err := h.svc.LoadTemplate(c.Request().Context(), c.Param("id"), req.Name)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// HandleLoadPredefined handles POST /api/sessions/:id/predefined.
func (h *Handler) HandleLoadPredefined(c echo.Context) error {
	var req nameRequest
	if err := bindJSON(c, &req); err != nil {
		return mapServiceError(c, err)
	}
	view, err := h.svc.LoadPredefined(c.Param("id"), req.Name)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// HandleListTemplates handles GET /api/templates.
func (h *Handler) HandleListTemplates(c echo.Context) error {
	list, err := h.svc.ListTemplates(c.Request().Context())
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"templates": list})
}

// HandleGetTemplate handles GET /api/templates/:name.
func (h *Handler) HandleGetTemplate(c echo.Context) error {
	name := c.Param("name")
	tree, err := h.svc.GetTemplate(c.Request().Context(), name)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"name": name, "structure": tree})
}

// HandleDeleteTemplate handles DELETE /api/templates/:name.
func (h *Handler) HandleDeleteTemplate(c echo.Context) error {
	if err := h.svc.DeleteTemplate(c.Request().Context(), c.Param("name")); err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "template deleted successfully"})
}

// HandleSeedTemplates handles POST /api/templates/seed.
// Copies the predefined templates into the store without overwriting.
func (h *Handler) HandleSeedTemplates(c echo.Context) error {
	added, err := h.svc.SeedPredefined(c.Request().Context())
	if err != nil {
		return mapServiceError(c, err)
	}
	if added == nil {
		added = []string{}
	}
	return c.JSON(http.StatusOK, echo.Map{"added": added})
}

// HandleListPredefined handles GET /api/predefined.
func (h *Handler) HandleListPredefined(c echo.Context) error {
	list, err := h.svc.ListPredefined()
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"templates": list})
}

// HandleValidate handles POST /api/validate.
// Checks a JSON structure without storing it.
func (h *Handler) HandleValidate(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, service.MaxImportSize))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "failed to read request body"})
	}
	res, err := h.svc.Validate(body)
	if err != nil {
		var validationErr *core.ValidationError
		if errors.As(err, &validationErr) {
			return c.JSON(http.StatusOK, echo.Map{
				"valid": false,
				"field": validationErr.Field,
				"error": validationErr.Error(),
			})
		}
		return mapServiceError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// HandleDownload handles GET /d/:id.
// Serves a stored export as an attachment.
func (h *Handler) HandleDownload(c echo.Context) error {
	filePath, filename, err := h.svc.Download(c.Param("id"))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.Attachment(filePath, filename)
}

// HandleHealth handles GET /health.
// Returns the health status of the server, including database connectivity
// when templates are kept in PostgreSQL.
func (h *Handler) HandleHealth(c echo.Context) error {
	status := "healthy"
	dbStatus := "not configured"

	if h.db != nil {
		dbStatus = "connected"
		if err := h.db.HealthCheck(c.Request().Context()); err != nil {
			status = "degraded"
			dbStatus = fmt.Sprintf("error: %v", err)
		}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"status":   status,
		"database": dbStatus,
	})
}

// HandleStats handles GET /api/stats.
func (h *Handler) HandleStats(c echo.Context) error {
	stats, err := h.svc.GetStats(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error": "failed to retrieve stats",
		})
	}
	return c.JSON(http.StatusOK, stats)
}

// mapServiceError translates service-layer errors into appropriate HTTP responses.
func mapServiceError(c echo.Context, err error) error {
	var validationErr *core.ValidationError
	var materializeErr *editor.MaterializeError

	switch {
	case errors.Is(err, service.ErrInvalidZip):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or corrupt ZIP file"})
	case errors.As(err, &validationErr):
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": validationErr.Error(),
			"field": validationErr.Field,
		})
	case errors.Is(err, service.ErrSessionNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
	case errors.Is(err, editor.ErrNotFound), errors.Is(err, editor.ErrParentNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, template.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, storage.ErrExportNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "export not found"})
	case errors.Is(err, editor.ErrEmpty):
		return c.JSON(http.StatusConflict, echo.Map{"error": "folder structure is empty"})
	case errors.Is(err, editor.ErrCannotMove):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrImportTooLarge):
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{
			"error": "archive exceeds maximum allowed size",
		})
	case errors.As(err, &materializeErr):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{
			"error": materializeErr.Error(),
			"path":  materializeErr.Path,
		})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
}

// humanizeBytes formats a byte count into a human-readable string.
func humanizeBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
