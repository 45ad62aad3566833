package web

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/debemdeboas/race-posts/internal/config"
	"github.com/debemdeboas/race-posts/internal/form"
	"github.com/debemdeboas/race-posts/internal/gateway"
	"github.com/debemdeboas/race-posts/internal/intake"
	"github.com/debemdeboas/race-posts/internal/model"
	"github.com/debemdeboas/race-posts/internal/routes"
	"github.com/debemdeboas/race-posts/internal/session"
	"github.com/debemdeboas/race-posts/internal/util"
)

const MsgSubmitInProgress = "Your post is still being saved."

type previewData struct {
	Image string
	Error string
}

type formPage struct {
	Heading   string
	Action    string
	SessionID session.ID
	Title     string
	Body      string
	Preview   previewData
	Error     string
	ErrorKind string
}

type indexPage struct {
	Posts []model.Post
	Error string
}

func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != routes.RootPath {
		http.Redirect(w, r, routes.RootPath, http.StatusFound)
		return
	}

	// Concurrent page loads share one store round trip.
	v, err, shared := s.listing.Do("posts", func() (any, error) {
		return s.backend.ListPosts(context.WithoutCancel(r.Context()))
	})

	data := indexPage{}
	status := http.StatusOK
	if err != nil {
		s.logger.Error().Err(err).Msg(config.ErrListPosts)
		data.Error = config.ErrListPosts
		status = http.StatusBadGateway
	} else {
		data.Posts = v.([]model.Post)
	}
	s.logger.Debug().Bool("shared", shared).Int("posts", len(data.Posts)).Msg("Listing served")

	s.render(w, config.TemplateIndex, status, data)
}

func (s *Server) serveCreate(w http.ResponseWriter, r *http.Request) {
	sess, err := s.newCreateSession()
	if err != nil {
		s.fail(w, err)
		return
	}
	s.renderForm(w, sess, http.StatusOK)
}

func (s *Server) serveEdit(w http.ResponseWriter, r *http.Request) {
	id := model.PostID(r.PathValue("id"))

	sess, err := s.newEditSession(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.renderForm(w, sess, http.StatusOK)
}

func (s *Server) submitCreate(w http.ResponseWriter, r *http.Request) {
	s.submit(w, r, "", s.newCreateSession)
}

func (s *Server) submitEdit(w http.ResponseWriter, r *http.Request) {
	id := model.PostID(r.PathValue("id"))
	s.submit(w, r, id, func() (*session.Session, error) {
		return s.newEditSession(r.Context(), id)
	})
}

// submit binds the posted fields to the session's form and runs the save.
// A missing or expired session is replaced by a fresh one so a long-open
// page can still be submitted.
func (s *Server) submit(w http.ResponseWriter, r *http.Request, id model.PostID, fresh func() (*session.Session, error)) {
	if err := r.ParseMultipartForm(config.MaxFormMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		http.Error(w, config.ErrInvalidForm, http.StatusBadRequest)
		return
	}

	sess, err := s.sessions.Get(session.ID(r.FormValue(config.FieldSessionID)))
	if err != nil || sess.PostID != id {
		if sess, err = fresh(); err != nil {
			s.fail(w, err)
			return
		}
	}

	f := sess.Form
	f.SetTitle(r.FormValue(config.FieldTitle))
	f.SetBody(r.FormValue(config.FieldBody))

	if ok := s.bindImage(r, f); !ok {
		s.renderForm(w, sess, swapStatus(r, http.StatusUnprocessableEntity))
		return
	}

	err = f.Submit(r.Context())
	if errors.Is(err, form.ErrBusy) {
		http.Error(w, MsgSubmitInProgress, http.StatusConflict)
		return
	}
	if err != nil {
		s.logger.Info().Err(err).Str("session_id", string(sess.ID)).Msg("Submit rejected")
		s.renderForm(w, sess, swapStatus(r, http.StatusUnprocessableEntity))
		return
	}

	route, ok := sess.Redirect.Take()
	if !ok {
		route = routes.RootPath
	}
	s.sessions.Delete(sess.ID)

	// htmx follows HX-Redirect; a plain form post follows the 303.
	w.Header().Set(config.HHXRedirect, route)
	if r.Header.Get(config.HHXRequest) != "" {
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, route, http.StatusSeeOther)
}

// bindImage feeds an uploaded file, if any, to the form and waits for its
// preview. It reports false when the file was rejected.
func (s *Server) bindImage(r *http.Request, f *form.Form) bool {
	file, err := s.uploadedFile(r)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Unreadable upload")
	}
	if file == nil {
		return true
	}

	res, ok := <-f.SelectImage(r.Context(), file)
	if !ok {
		return true
	}
	return res.Err == nil || errors.Is(res.Err, form.ErrSuperseded)
}

// uploadedFile returns the posted image. Files within the size limit are
// copied into memory so the session can keep them past this request.
func (s *Server) uploadedFile(r *http.Request) (intake.File, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	headers := r.MultipartForm.File[config.FieldImage]
	if len(headers) == 0 {
		return nil, nil
	}
	return detach(headers[0], s.policy)
}

func detach(fh *multipart.FileHeader, policy intake.Policy) (intake.File, error) {
	file := intake.FromMultipart(fh)
	if policy.Check(file) != nil {
		return file, nil
	}
	payload, err := intake.ReadPayload(file)
	if errors.Is(err, intake.ErrImageUnsupported) {
		// Left to the form so the rejection shows up in its error slot.
		return file, nil
	}
	if err != nil {
		return nil, err
	}
	return intake.NewBytesFile(payload.Name, payload.ContentType, payload.Data), nil
}

func (s *Server) servePreview(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(config.MaxFormMemory); err != nil {
		http.Error(w, config.ErrInvalidForm, http.StatusBadRequest)
		return
	}

	sess, err := s.sessions.Get(session.ID(r.FormValue(config.FieldSessionID)))
	if err != nil {
		s.writePreview(w, swapStatus(r, http.StatusGone), previewData{Image: config.ImagePlaceholder, Error: config.ErrSessionExpired})
		return
	}

	status := http.StatusOK
	if !s.bindImage(r, sess.Form) {
		status = swapStatus(r, http.StatusUnprocessableEntity)
	}

	d := sess.Form.Draft()
	s.writePreview(w, status, previewData{Image: d.Image, Error: sess.Form.ErrorMessage()})
}

// swapStatus keeps rejected htmx requests on 200 since htmx drops the body of
// an error response instead of swapping it in.
func swapStatus(r *http.Request, status int) int {
	if r.Header.Get(config.HHXRequest) != "" {
		return http.StatusOK
	}
	return status
}

func (s *Server) writePreview(w http.ResponseWriter, status int, data previewData) {
	var buf bytes.Buffer
	if err := s.preview.ExecuteTemplate(&buf, config.TemplatePreview, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set(config.HCType, config.CTypeHTML)
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func (s *Server) renderForm(w http.ResponseWriter, sess *session.Session, status int) {
	d := sess.Form.Draft()

	page := formPage{
		Heading:   "Create post",
		Action:    routes.CreatePost,
		SessionID: sess.ID,
		Title:     d.Title,
		Body:      d.Body,
		Preview:   previewData{Image: d.Image},
	}
	if sess.IsUpdate() {
		page.Heading = "Edit post"
		page.Action = routes.EditPostPath(string(sess.PostID))
	}
	if d.Err != nil {
		page.Error = d.Err.Message
		page.ErrorKind = d.Err.Kind.String()
	}

	s.render(w, config.TemplateForm, status, page)
}

// render executes page into a buffer so a template error never leaves a half
// written response, and tags the result with its content hash.
func (s *Server) render(w http.ResponseWriter, page string, status int, data any) {
	tmpl, ok := s.pages[page]
	if !ok {
		http.Error(w, config.ErrInternalServerError, http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, config.TemplateLayout, data); err != nil {
		s.logger.Error().Err(err).Str("template", page).Msg("Template execution failed")
		http.Error(w, config.ErrInternalServerError, http.StatusInternalServerError)
		return
	}

	w.Header().Set(config.HCType, config.CTypeHTML)
	w.Header().Set(config.HETag, util.ContentHash(buf.Bytes()))
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	if errors.Is(err, gateway.ErrNotFound) {
		http.Error(w, config.ErrPostNotFound, http.StatusNotFound)
		return
	}
	s.logger.Error().Err(err).Msg("Request failed")
	http.Error(w, config.ErrInternalServerError, http.StatusBadGateway)
}
