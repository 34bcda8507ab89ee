package echoapi

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/avalia/avalia/core"
	"github.com/avalia/avalia/core/academic"
	"github.com/avalia/avalia/core/roster"
)

// file names looked up in the roster source directory when nothing is uploaded
const (
	classesFileName = "classes.json"
	membersFileName = "class_members.json"
)

type rosterApi struct {
	importer  *roster.Importer
	academic  academic.Repository
	sourceDir string
}

func registerRosterAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	importer *roster.Importer,
	academicRepo academic.Repository,
	sourceDir string,
) {
	api := rosterApi{
		importer:  importer,
		academic:  academicRepo,
		sourceDir: sourceDir,
	}

	g.POST("/roster/import", api.importRoster, jwt, adminMiddleware())
	g.GET("/groups/:code/enrollments", api.queryEnrollments, jwt, adminMiddleware())
}

func rosterSourceDir(conf *core.Config) string {
	if filepath.IsAbs(conf.Roster.SourceDir) {
		return conf.Roster.SourceDir
	}
	return filepath.Join(conf.WorkDir, conf.Roster.SourceDir)
}

// Handlers

func (api *rosterApi) importRoster(ctx echo.Context) error {
	classes, err := api.document(ctx, roster.ClassesDocument, classesFileName)
	if err != nil {
		return &importError{err: err}
	}
	members, err := api.document(ctx, roster.MembersDocument, membersFileName)
	if err != nil {
		return &importError{err: err}
	}

	rep, err := api.importer.ImportRaw(ctx.Request().Context(), classes, members)
	if err != nil {
		return &importError{err: err}
	}
	return ctx.JSON(http.StatusOK, rep.Envelope())
}

// document reads the uploaded file of field, or falls back to name in the source directory.
func (api *rosterApi) document(ctx echo.Context, field, name string) ([]byte, error) {
	fh, err := ctx.FormFile(field)
	switch err {
	case nil:
		f, err := fh.Open()
		if err != nil {
			return nil, errors.Wrapf(err, "opening uploaded %s document", field)
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		return data, errors.Wrapf(err, "reading uploaded %s document", field)
	case http.ErrMissingFile, http.ErrNotMultipart:
	default:
		return nil, &roster.MalformedInputError{Document: field, Err: err}
	}

	data, err := os.ReadFile(filepath.Join(api.sourceDir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errDocumentNotFound, name)
		}
		return nil, errors.Wrapf(err, "reading %s", name)
	}
	return data, nil
}

func (api *rosterApi) queryEnrollments(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()

	grp, err := api.academic.GetGroupByCode(reqCtx, ctx.Param("code"))
	if err != nil {
		if errors.Cause(err) == academic.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding group by code")
	}

	enrs, err := api.academic.QueryEnrollments(reqCtx, grp.ID)
	if err != nil {
		return errors.Wrap(err, "querying enrollments of group "+strconv.FormatInt(grp.ID, 10))
	}
	if enrs == nil {
		enrs = []academic.Enrollment{}
	}
	return ctx.JSON(http.StatusOK, enrs)
}
